package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrRemoveListener may be returned by a listener to unregister itself.
// It is not reported as a failure.
var ErrRemoveListener = errors.New("remove listener")

var kindSeq atomic.Uint64

// Kind identifies one category of event whose payloads have type P.
// Kinds compare by identity: two calls to NewKind never return equal kinds,
// even with the same name.
type Kind[P any] struct {
	id   uint64
	name string
}

// NewKind declares a new event kind. Families declare their kinds once, as
// package-level variables.
func NewKind[P any](name string) *Kind[P] {
	return &Kind[P]{
		id:   kindSeq.Add(1),
		name: name,
	}
}

// Name returns the name given to NewKind.
func (k *Kind[P]) Name() string { return k.name }

func (k *Kind[P]) String() string { return k.name }

func (k *Kind[P]) kindID() uint64 { return k.id }

// Descriptor is the payload-independent view of a Kind, used where only the
// identity matters (counting listeners, enumerating a family).
type Descriptor interface {
	Name() string
	kindID() uint64
}

// Record is implemented by payload types that know their own kind, which
// lets Post emit a bare payload value.
type Record[P any] interface {
	Kind() *Kind[P]
}

// Listener handles payloads of one kind.
type Listener[P any] func(ctx context.Context, payload P) error

// Handle identifies one registration. The zero Handle is never returned by
// a successful registration.
type Handle struct {
	kind uint64
	seq  uint64
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.seq == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d/%d", h.kind, h.seq)
}
