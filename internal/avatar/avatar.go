package avatar

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/KirkDiggler/mcbot/internal/events"
)

// Config holds the dependencies of an Avatar.
type Config struct {
	Emitter *events.Emitter
	Logger  logrus.FieldLogger
	// Name is the player's profile name.
	Name string
}

// Avatar tracks the state of the bot's player from the messages the server
// sends, and emits avatar events on its emitter as that state changes.
type Avatar struct {
	emitter *events.Emitter
	logger  logrus.FieldLogger
	name    string

	mu          sync.Mutex
	remoteAddr  string
	connected   bool
	endReason   string
	entity      *Entity
	dimension   *int32
	gameMode    GameMode
	health      *float32
	food        *int32
	saturation  *float32
	experience  *Experience
	playerList  map[string]PlayerListItem
	windowProps map[windowPropertyKey]int32
	sentPos     *Vec3d
	sentLook    *Look
}

type windowPropertyKey struct {
	windowID int32
	property int32
}

// New creates a disconnected avatar.
func New(cfg *Config) *Avatar {
	if cfg == nil || cfg.Emitter == nil {
		panic("emitter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &Avatar{
		emitter:     cfg.Emitter,
		logger:      logger.WithField("player", cfg.Name),
		name:        cfg.Name,
		playerList:  make(map[string]PlayerListItem),
		windowProps: make(map[windowPropertyKey]int32),
	}
}

func (a *Avatar) Name() string { return a.name }

// Emitter returns the emitter avatar events are emitted on.
func (a *Avatar) Emitter() *events.Emitter { return a.emitter }

func (a *Avatar) resetLocked() {
	a.endReason = ""
	a.entity = nil
	a.dimension = nil
	a.gameMode = ""
	a.health = nil
	a.food = nil
	a.saturation = nil
	a.experience = nil
	a.playerList = make(map[string]PlayerListItem)
	a.windowProps = make(map[windowPropertyKey]int32)
	a.sentPos = nil
	a.sentLook = nil
}

// spawnedLocked reports whether all state needed to act in the world has
// arrived.
func (a *Avatar) spawnedLocked() bool {
	if !a.connected || a.entity == nil || a.dimension == nil || a.health == nil || a.experience == nil {
		return false
	}
	_, known := a.entity.KnownPosition()
	return known
}

// Connected starts a new connection, discarding the state of any previous
// one.
func (a *Avatar) Connected(ctx context.Context, remoteAddr string) error {
	a.mu.Lock()
	a.resetLocked()
	a.remoteAddr = remoteAddr
	a.connected = true
	a.mu.Unlock()

	a.logger.WithField("remote_addr", remoteAddr).Debug("Avatar: connected")

	return events.EmitLazy(ctx, a.emitter, EventConnected, func() Connected {
		return Connected{RemoteAddr: remoteAddr}
	})
}

// Disconnect ends the connection. Calling it while disconnected does
// nothing, so Disconnected is emitted once per connection.
func (a *Avatar) Disconnect(ctx context.Context, reason string, cause error) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
	a.endReason = reason
	remoteAddr := a.remoteAddr
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"remote_addr": remoteAddr,
		"reason":      reason,
	}).Debug("Avatar: disconnected")

	return events.EmitLazy(ctx, a.emitter, EventDisconnected, func() Disconnected {
		return Disconnected{RemoteAddr: remoteAddr, Reason: reason, Cause: cause}
	})
}

// HandlePacket updates state from one server packet, then emits
// ServerPacketReceived for it. A packet that fails to process is logged and
// still emitted.
func (a *Avatar) HandlePacket(ctx context.Context, p Packet) error {
	if p == nil {
		return boterr.InvalidArgument("packet is required")
	}

	var err error
	switch pkt := p.(type) {
	case JoinGame:
		err = a.HandleJoinGame(ctx, pkt)
	case Respawn:
		err = a.HandleRespawn(ctx, pkt)
	case UpdateHealth:
		err = a.HandleHealth(ctx, pkt)
	case PlayerPosition:
		err = a.HandlePosition(ctx, pkt)
	case Chat:
		err = a.HandleChat(ctx, pkt)
	case PlayerListUpdate:
		err = a.HandlePlayerList(ctx, pkt)
	case SetExperience:
		err = a.HandleExperience(ctx, pkt)
	case WindowProperty:
		err = a.HandleWindowProperty(ctx, pkt)
	case ConfirmTransaction:
		err = a.HandleTransaction(ctx, pkt)
	default:
		a.logger.WithField("packet", p.PacketName()).Trace("Avatar: ignoring packet")
	}
	if err != nil {
		a.logger.WithError(err).WithField("packet", p.PacketName()).Error("Avatar: failed to process packet")
	}

	emitErr := events.EmitLazy(ctx, a.emitter, EventServerPacketReceived, func() ServerPacketReceived {
		return ServerPacketReceived{Packet: p}
	})
	return errors.Join(err, emitErr)
}

func (a *Avatar) HandleJoinGame(ctx context.Context, p JoinGame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dimension := p.Dimension
	a.dimension = &dimension
	a.entity = NewEntity(p.EntityID)
	a.gameMode = p.GameMode
	return nil
}

func (a *Avatar) HandleRespawn(ctx context.Context, p Respawn) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dimension := p.Dimension
	a.dimension = &dimension
	a.gameMode = p.GameMode
	a.health = nil
	a.food = nil
	a.saturation = nil
	return nil
}

func (a *Avatar) HandleHealth(ctx context.Context, p UpdateHealth) error {
	a.mu.Lock()
	wasSpawned := a.spawnedLocked()
	oldHealth, oldFood, oldSaturation := a.health, a.food, a.saturation
	health, food, saturation := p.Health, p.Food, p.Saturation
	a.health, a.food, a.saturation = &health, &food, &saturation
	spawned := !wasSpawned && a.spawnedLocked()
	entity := a.entity
	a.mu.Unlock()

	var errs []error
	if oldHealth == nil || *oldHealth != health {
		errs = append(errs, events.Post(ctx, a.emitter, HealthChanged{New: health, Old: oldHealth}))
	}
	if oldFood == nil || *oldFood != food {
		errs = append(errs, events.Post(ctx, a.emitter, FoodChanged{New: food, Old: oldFood}))
	}
	if oldSaturation == nil || *oldSaturation != saturation {
		errs = append(errs, events.Post(ctx, a.emitter, SaturationChanged{New: saturation, Old: oldSaturation}))
	}
	if spawned {
		errs = append(errs, a.emitSpawned(ctx, entity))
	}
	return errors.Join(errs...)
}

func (a *Avatar) HandlePosition(ctx context.Context, p PlayerPosition) error {
	if p.Relative {
		err := boterr.InvalidArgumentf("relative player position %d is not supported", p.TeleportID)
		return errors.Join(err, a.Disconnect(ctx, "unsupported relative player position", err))
	}

	a.mu.Lock()
	entity := a.entity
	if entity == nil {
		a.mu.Unlock()
		return boterr.InvalidArgument("player position received before join game")
	}
	wasSpawned := a.spawnedLocked()
	oldPos, known := entity.KnownPosition()
	look := LookFromDegrees(p.Yaw, p.Pitch)
	entity.SetPosition(p.Pos)
	entity.SetLook(look)
	pos := p.Pos
	a.sentPos, a.sentLook = &pos, &look
	spawned := !wasSpawned && a.spawnedLocked()
	a.mu.Unlock()

	var errs []error
	errs = append(errs, events.EmitLazy(ctx, a.emitter, EventTeleportedByServer, func() TeleportedByServer {
		ev := TeleportedByServer{NewPos: pos, Reason: p}
		if known {
			ev.OldPos = &oldPos
		}
		return ev
	}))
	errs = append(errs, events.Post(ctx, a.emitter, PosLookSent{Pos: pos, Look: look}))
	if spawned {
		errs = append(errs, a.emitSpawned(ctx, entity))
	}
	return errors.Join(errs...)
}

func (a *Avatar) HandleChat(ctx context.Context, p Chat) error {
	return events.Post(ctx, a.emitter, ChatReceived{Message: p.Message})
}

func (a *Avatar) HandlePlayerList(ctx context.Context, p PlayerListUpdate) error {
	var errs []error
	for _, item := range p.Entries {
		a.mu.Lock()
		existing, listed := a.playerList[item.UUID]
		var joined, left bool
		switch p.Action {
		case PlayerListAdd:
			a.playerList[item.UUID] = item
			joined = !listed
		case PlayerListUpdateGameMode:
			if listed {
				existing.GameMode = item.GameMode
				a.playerList[item.UUID] = existing
			}
		case PlayerListUpdateLatency:
			if listed {
				existing.Ping = item.Ping
				a.playerList[item.UUID] = existing
			}
		case PlayerListUpdateDisplayName:
			if listed {
				existing.DisplayName = item.DisplayName
				a.playerList[item.UUID] = existing
			}
		case PlayerListRemove:
			delete(a.playerList, item.UUID)
			left = listed
		}
		a.mu.Unlock()

		if joined {
			errs = append(errs, events.Post(ctx, a.emitter, PlayerJoined{Entry: item}))
		}
		if left {
			errs = append(errs, events.Post(ctx, a.emitter, PlayerLeft{Entry: existing}))
		}
	}
	return errors.Join(errs...)
}

func (a *Avatar) HandleExperience(ctx context.Context, p SetExperience) error {
	a.mu.Lock()
	wasSpawned := a.spawnedLocked()
	old := a.experience
	exp := Experience{Bar: p.Bar, Level: p.Level, Total: p.Total}
	a.experience = &exp
	spawned := !wasSpawned && a.spawnedLocked()
	entity := a.entity
	a.mu.Unlock()

	var errs []error
	if old == nil || *old != exp {
		errs = append(errs, events.Post(ctx, a.emitter, ExpChanged{New: exp, Old: old}))
	}
	if spawned {
		errs = append(errs, a.emitSpawned(ctx, entity))
	}
	return errors.Join(errs...)
}

func (a *Avatar) HandleWindowProperty(ctx context.Context, p WindowProperty) error {
	key := windowPropertyKey{windowID: p.WindowID, property: p.Property}

	a.mu.Lock()
	old, ok := a.windowProps[key]
	a.windowProps[key] = p.Value
	a.mu.Unlock()

	return events.EmitLazy(ctx, a.emitter, EventWindowPropertyChanged, func() WindowPropertyChanged {
		ev := WindowPropertyChanged{WindowID: p.WindowID, Property: p.Property, New: p.Value}
		if ok {
			ev.Old = &old
		}
		return ev
	})
}

func (a *Avatar) HandleTransaction(ctx context.Context, p ConfirmTransaction) error {
	return events.Post(ctx, a.emitter, TransactionResponse{
		WindowID: p.WindowID,
		ActionID: p.ActionID,
		Accepted: p.Accepted,
	})
}

func (a *Avatar) emitSpawned(ctx context.Context, entity *Entity) error {
	a.logger.WithFields(logrus.Fields{
		"eid":      entity.ID,
		"position": entity.Position().String(),
	}).Debug("Avatar: spawned")

	return events.Post(ctx, a.emitter, Spawned{Entity: entity})
}

// Tick runs one client tick: PreClientTick, then the position report if the
// player moved or turned since the last one, then ClientTick.
func (a *Avatar) Tick(ctx context.Context) error {
	var errs []error
	errs = append(errs, events.Post(ctx, a.emitter, PreClientTick{}))

	var sent *PosLookSent
	a.mu.Lock()
	if a.connected && a.entity != nil {
		if pos, ok := a.entity.KnownPosition(); ok {
			look := a.entity.Look()
			if a.sentPos == nil || *a.sentPos != pos || a.sentLook == nil || *a.sentLook != look {
				a.sentPos, a.sentLook = &pos, &look
				sent = &PosLookSent{Pos: pos, Look: look}
			}
		}
	}
	a.mu.Unlock()

	if sent != nil {
		errs = append(errs, events.Post(ctx, a.emitter, *sent))
	}
	errs = append(errs, events.Post(ctx, a.emitter, ClientTick{}))
	return errors.Join(errs...)
}

func (a *Avatar) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// IsSpawned reports whether the player is connected and has received its
// position, health, experience and dimension.
func (a *Avatar) IsSpawned() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spawnedLocked()
}

// IsAlive reports whether the player is spawned with health left.
func (a *Avatar) IsAlive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spawnedLocked() && *a.health > 0
}

func (a *Avatar) RemoteAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remoteAddr
}

// EndReason returns the reason given to the last Disconnect.
func (a *Avatar) EndReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endReason
}

// Entity returns the player's entity, or nil before JoinGame.
func (a *Avatar) Entity() *Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entity
}

func (a *Avatar) GameMode() GameMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gameMode
}

func (a *Avatar) Dimension() (int32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dimension == nil {
		return 0, false
	}
	return *a.dimension, true
}

func (a *Avatar) Health() (float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.health == nil {
		return 0, false
	}
	return *a.health, true
}

func (a *Avatar) Food() (int32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.food == nil {
		return 0, false
	}
	return *a.food, true
}

func (a *Avatar) Saturation() (float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saturation == nil {
		return 0, false
	}
	return *a.saturation, true
}

func (a *Avatar) Experience() (Experience, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.experience == nil {
		return Experience{}, false
	}
	return *a.experience, true
}

// PlayerList returns the listed players sorted by name.
func (a *Avatar) PlayerList() []PlayerListItem {
	a.mu.Lock()
	list := make([]PlayerListItem, 0, len(a.playerList))
	for _, item := range a.playerList {
		list = append(list, item)
	}
	a.mu.Unlock()

	slices.SortFunc(list, func(x, y PlayerListItem) int {
		return strings.Compare(x.Name, y.Name)
	})
	return list
}
