package avatar

import (
	"github.com/KirkDiggler/mcbot/internal/events"
)

// Experience is the player's experience bar state.
type Experience struct {
	Bar   float32
	Level int32
	Total int32
}

// PlayerListItem is one entry of the server's player list.
type PlayerListItem struct {
	UUID        string
	Name        string
	DisplayName string
	GameMode    GameMode
	Ping        int32
}

// Label returns the display name, falling back to the profile name.
func (p PlayerListItem) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// Connected is emitted once the connection to the server is established.
type Connected struct {
	RemoteAddr string
}

// Disconnected is emitted when the connection ends, at most once per
// connection. Cause is nil for a clean disconnect.
type Disconnected struct {
	RemoteAddr string
	Reason     string
	Cause      error
}

// Spawned is emitted once the player has received all its state after
// joining or respawning.
type Spawned struct {
	Entity *Entity
}

// ServerPacketReceived is emitted for every packet after the avatar has
// processed it.
type ServerPacketReceived struct {
	Packet Packet
}

type ChatReceived struct {
	Message string
}

// PreClientTick is emitted at the start of every client tick, before
// movement is sent.
type PreClientTick struct{}

// ClientTick is emitted at the end of every client tick.
type ClientTick struct{}

// PosLookSent is emitted when the client reports its position and look to
// the server.
type PosLookSent struct {
	Pos  Vec3d
	Look Look
}

type PlayerJoined struct {
	Entry PlayerListItem
}

type PlayerLeft struct {
	Entry PlayerListItem
}

// TeleportedByServer is emitted when the server sets the player's
// position. OldPos is nil when no position was known before.
type TeleportedByServer struct {
	NewPos Vec3d
	OldPos *Vec3d
	Reason any
}

type HealthChanged struct {
	New float32
	Old *float32
}

type FoodChanged struct {
	New int32
	Old *int32
}

type SaturationChanged struct {
	New float32
	Old *float32
}

type ExpChanged struct {
	New Experience
	Old *Experience
}

type WindowPropertyChanged struct {
	WindowID int32
	Property int32
	Old      *int32
	New      int32
}

// TransactionResponse is the server accepting or rejecting a window click.
type TransactionResponse struct {
	WindowID int32
	ActionID int16
	Accepted bool
}

var (
	EventConnected             = events.NewKind[Connected]("connected")
	EventDisconnected          = events.NewKind[Disconnected]("disconnected")
	EventSpawned               = events.NewKind[Spawned]("spawned")
	EventServerPacketReceived  = events.NewKind[ServerPacketReceived]("server_packet_received")
	EventChatReceived          = events.NewKind[ChatReceived]("chat_received")
	EventPreClientTick         = events.NewKind[PreClientTick]("pre_client_tick")
	EventClientTick            = events.NewKind[ClientTick]("client_tick")
	EventPosLookSent           = events.NewKind[PosLookSent]("pos_look_sent")
	EventPlayerJoined          = events.NewKind[PlayerJoined]("player_joined")
	EventPlayerLeft            = events.NewKind[PlayerLeft]("player_left")
	EventTeleportedByServer    = events.NewKind[TeleportedByServer]("teleported_by_server")
	EventHealthChanged         = events.NewKind[HealthChanged]("health_changed")
	EventFoodChanged           = events.NewKind[FoodChanged]("food_changed")
	EventSaturationChanged     = events.NewKind[SaturationChanged]("saturation_changed")
	EventExpChanged            = events.NewKind[ExpChanged]("exp_changed")
	EventWindowPropertyChanged = events.NewKind[WindowPropertyChanged]("window_property_changed")
	EventTransactionResponse   = events.NewKind[TransactionResponse]("transaction_response")
)

// Kinds returns every avatar event kind.
func Kinds() []events.Descriptor {
	return []events.Descriptor{
		EventConnected,
		EventDisconnected,
		EventSpawned,
		EventServerPacketReceived,
		EventChatReceived,
		EventPreClientTick,
		EventClientTick,
		EventPosLookSent,
		EventPlayerJoined,
		EventPlayerLeft,
		EventTeleportedByServer,
		EventHealthChanged,
		EventFoodChanged,
		EventSaturationChanged,
		EventExpChanged,
		EventWindowPropertyChanged,
		EventTransactionResponse,
	}
}

func (Connected) Kind() *events.Kind[Connected]                         { return EventConnected }
func (Disconnected) Kind() *events.Kind[Disconnected]                   { return EventDisconnected }
func (Spawned) Kind() *events.Kind[Spawned]                             { return EventSpawned }
func (ServerPacketReceived) Kind() *events.Kind[ServerPacketReceived]   { return EventServerPacketReceived }
func (ChatReceived) Kind() *events.Kind[ChatReceived]                   { return EventChatReceived }
func (PreClientTick) Kind() *events.Kind[PreClientTick]                 { return EventPreClientTick }
func (ClientTick) Kind() *events.Kind[ClientTick]                       { return EventClientTick }
func (PosLookSent) Kind() *events.Kind[PosLookSent]                     { return EventPosLookSent }
func (PlayerJoined) Kind() *events.Kind[PlayerJoined]                   { return EventPlayerJoined }
func (PlayerLeft) Kind() *events.Kind[PlayerLeft]                       { return EventPlayerLeft }
func (TeleportedByServer) Kind() *events.Kind[TeleportedByServer]       { return EventTeleportedByServer }
func (HealthChanged) Kind() *events.Kind[HealthChanged]                 { return EventHealthChanged }
func (FoodChanged) Kind() *events.Kind[FoodChanged]                     { return EventFoodChanged }
func (SaturationChanged) Kind() *events.Kind[SaturationChanged]         { return EventSaturationChanged }
func (ExpChanged) Kind() *events.Kind[ExpChanged]                       { return EventExpChanged }
func (WindowPropertyChanged) Kind() *events.Kind[WindowPropertyChanged] { return EventWindowPropertyChanged }
func (TransactionResponse) Kind() *events.Kind[TransactionResponse]     { return EventTransactionResponse }
