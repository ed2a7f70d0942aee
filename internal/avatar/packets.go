package avatar

// Packet is a decoded message from the server.
type Packet interface {
	PacketName() string
}

type GameMode string

const (
	GameModeSurvival  GameMode = "survival"
	GameModeCreative  GameMode = "creative"
	GameModeAdventure GameMode = "adventure"
	GameModeSpectator GameMode = "spectator"
)

// JoinGame places the bot's player entity in a dimension.
type JoinGame struct {
	EntityID  int32
	GameMode  GameMode
	Dimension int32
}

// Respawn moves the player to a dimension and clears health and food until
// the server resends them.
type Respawn struct {
	Dimension int32
	GameMode  GameMode
}

type UpdateHealth struct {
	Health     float32
	Food       int32
	Saturation float32
}

// PlayerPosition is the server setting the player's position and look.
// Relative positions are not supported.
type PlayerPosition struct {
	Pos        Vec3d
	Yaw        float32
	Pitch      float32
	Relative   bool
	TeleportID int32
}

type Chat struct {
	Message string
}

type PlayerListAction int

const (
	PlayerListAdd PlayerListAction = iota
	PlayerListUpdateGameMode
	PlayerListUpdateLatency
	PlayerListUpdateDisplayName
	PlayerListRemove
)

type PlayerListUpdate struct {
	Action  PlayerListAction
	Entries []PlayerListItem
}

type SetExperience struct {
	Bar   float32
	Level int32
	Total int32
}

type WindowProperty struct {
	WindowID int32
	Property int32
	Value    int32
}

type ConfirmTransaction struct {
	WindowID int32
	ActionID int16
	Accepted bool
}

func (JoinGame) PacketName() string           { return "JoinGame" }
func (Respawn) PacketName() string            { return "Respawn" }
func (UpdateHealth) PacketName() string       { return "UpdateHealth" }
func (PlayerPosition) PacketName() string     { return "PlayerPosition" }
func (Chat) PacketName() string               { return "Chat" }
func (PlayerListUpdate) PacketName() string   { return "PlayerListUpdate" }
func (SetExperience) PacketName() string      { return "SetExperience" }
func (WindowProperty) PacketName() string     { return "WindowProperty" }
func (ConfirmTransaction) PacketName() string { return "ConfirmTransaction" }
