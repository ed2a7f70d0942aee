// Package events is a typed publish/subscribe bus.
//
// A Kind[P] names one category of event whose payloads have type P.
// Listeners register against a kind and receive its payloads in
// registration order. Because the kind and the listener share P, handing a
// listener the wrong payload shape does not compile.
//
//	var EventSpawned = events.NewKind[Spawned]("spawned")
//
//	h := events.On(em, EventSpawned, func(ctx context.Context, ev Spawned) error {
//	    log.Printf("spawned at %s", ev.Entity.Position())
//	    return nil
//	})
//	defer em.Off(h)
//
//	err := events.Emit(ctx, em, EventSpawned, Spawned{Entity: e})
//
// Payloads are built by the producer before Emit, or only when someone is
// listening with EmitLazy and EmitEach.
//
// Each emission pass works on a snapshot of the kind's listeners: listeners
// added during a pass wait for the next one, and a listener removed during
// a pass still gets the current payload if it was in the snapshot. A
// listener that fails or panics never keeps the rest of the snapshot from
// being delivered.
package events
