package avatar

import (
	"fmt"
	"sync"
)

// Entity is something in the world with an id and a position, most notably
// the bot's own player. Position and look change over time and are safe to
// read from listeners while the avatar updates them.
type Entity struct {
	ID int32

	mu       sync.RWMutex
	uuid     string
	position *Vec3d
	look     *Look
}

func NewEntity(id int32) *Entity {
	return &Entity{ID: id}
}

func (e *Entity) UUID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.uuid
}

func (e *Entity) SetUUID(uuid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uuid = uuid
}

// Position returns the last known position, or Origin if none is known.
func (e *Entity) Position() Vec3d {
	pos, _ := e.KnownPosition()
	return pos
}

// KnownPosition returns the position and whether it has been set.
func (e *Entity) KnownPosition() (Vec3d, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.position == nil {
		return Origin, false
	}
	return *e.position, true
}

func (e *Entity) SetPosition(pos Vec3d) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = &pos
}

// Look returns the last known look, or the zero Look if none is known.
func (e *Entity) Look() Look {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.look == nil {
		return Look{}
	}
	return *e.look
}

func (e *Entity) SetLook(look Look) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.look = &look
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(%d at %s)", e.ID, e.Position())
}
