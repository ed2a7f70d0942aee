// Package replay feeds scripted server messages to an avatar, for trying
// out listeners without a server.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/mcbot/internal/avatar"
	boterr "github.com/KirkDiggler/mcbot/internal/errors"
)

// Scenario is a named list of steps read from a YAML file.
type Scenario struct {
	Name   string `yaml:"name"`
	Server string `yaml:"server"`
	Steps  []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// Step is one scripted event. Exactly one field is set.
type Step struct {
	Connect        *ConnectStep        `yaml:"connect"`
	Disconnect     *DisconnectStep     `yaml:"disconnect"`
	JoinGame       *JoinGameStep       `yaml:"join_game"`
	Respawn        *RespawnStep        `yaml:"respawn"`
	Position       *PositionStep       `yaml:"position"`
	Health         *HealthStep         `yaml:"health"`
	Experience     *ExperienceStep     `yaml:"experience"`
	Chat           *ChatStep           `yaml:"chat"`
	PlayerList     *PlayerListStep     `yaml:"player_list"`
	WindowProperty *WindowPropertyStep `yaml:"window_property"`
	Transaction    *TransactionStep    `yaml:"transaction"`
	Tick           *TickStep           `yaml:"tick"`
}

type ConnectStep struct {
	// Address defaults to the scenario's server.
	Address string `yaml:"address"`
}

type DisconnectStep struct {
	Reason string `yaml:"reason"`
	Error  string `yaml:"error"`
}

type JoinGameStep struct {
	EntityID  int32  `yaml:"entity_id"`
	GameMode  string `yaml:"game_mode"`
	Dimension int32  `yaml:"dimension"`
}

type RespawnStep struct {
	Dimension int32  `yaml:"dimension"`
	GameMode  string `yaml:"game_mode"`
}

type PositionStep struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Z          float64 `yaml:"z"`
	Yaw        float32 `yaml:"yaw"`
	Pitch      float32 `yaml:"pitch"`
	Relative   bool    `yaml:"relative"`
	TeleportID int32   `yaml:"teleport_id"`
}

type HealthStep struct {
	Health     float32 `yaml:"health"`
	Food       int32   `yaml:"food"`
	Saturation float32 `yaml:"saturation"`
}

type ExperienceStep struct {
	Bar   float32 `yaml:"bar"`
	Level int32   `yaml:"level"`
	Total int32   `yaml:"total"`
}

type ChatStep struct {
	Message string `yaml:"message"`
}

type PlayerListStep struct {
	// Action is one of add, game_mode, latency, display_name, remove.
	Action  string       `yaml:"action"`
	Players []PlayerStep `yaml:"players"`
}

type PlayerStep struct {
	UUID        string `yaml:"uuid"`
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	GameMode    string `yaml:"game_mode"`
	Ping        int32  `yaml:"ping"`
}

type WindowPropertyStep struct {
	WindowID int32 `yaml:"window_id"`
	Property int32 `yaml:"property"`
	Value    int32 `yaml:"value"`
}

type TransactionStep struct {
	WindowID int32 `yaml:"window_id"`
	ActionID int16 `yaml:"action_id"`
	Accepted bool  `yaml:"accepted"`
}

type TickStep struct {
	Count int `yaml:"count"`
}

var playerListActions = map[string]avatar.PlayerListAction{
	"add":          avatar.PlayerListAdd,
	"game_mode":    avatar.PlayerListUpdateGameMode,
	"latency":      avatar.PlayerListUpdateLatency,
	"display_name": avatar.PlayerListUpdateDisplayName,
	"remove":       avatar.PlayerListRemove,
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, boterr.WrapWithCode(err, boterr.CodeValidation, "decode scenario")
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads and parses one scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, boterr.Wrapf(err, "scenario %s", path)
	}
	sc.Path = path
	return sc, nil
}

// LoadFiles loads several scenario files concurrently and returns them in
// the order given.
func LoadFiles(ctx context.Context, paths []string) ([]*Scenario, error) {
	scenarios := make([]*Scenario, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sc, err := LoadFile(path)
			if err != nil {
				return err
			}
			scenarios[i] = sc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scenarios, nil
}

// Validate checks that every step sets exactly one action with usable
// values.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return boterr.Validationf("scenario %q has no steps", sc.Name)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return boterr.Wrapf(err, "step %d", i+1)
		}
	}
	return nil
}

func (s Step) actions() []string {
	var set []string
	add := func(name string, present bool) {
		if present {
			set = append(set, name)
		}
	}
	add("connect", s.Connect != nil)
	add("disconnect", s.Disconnect != nil)
	add("join_game", s.JoinGame != nil)
	add("respawn", s.Respawn != nil)
	add("position", s.Position != nil)
	add("health", s.Health != nil)
	add("experience", s.Experience != nil)
	add("chat", s.Chat != nil)
	add("player_list", s.PlayerList != nil)
	add("window_property", s.WindowProperty != nil)
	add("transaction", s.Transaction != nil)
	add("tick", s.Tick != nil)
	return set
}

// Name returns the action the step performs.
func (s Step) Name() string {
	return strings.Join(s.actions(), ",")
}

func (s Step) validate() error {
	switch set := s.actions(); len(set) {
	case 0:
		return boterr.Validationf("no action set")
	case 1:
	default:
		return boterr.Validationf("more than one action set: %s", strings.Join(set, ", "))
	}

	if s.PlayerList != nil {
		if _, ok := playerListActions[s.PlayerList.Action]; !ok {
			return boterr.Validationf("unknown player list action %q", s.PlayerList.Action)
		}
	}
	if s.Tick != nil && s.Tick.Count < 0 {
		return boterr.Validationf("tick count must not be negative, got %d", s.Tick.Count)
	}
	return nil
}

// Run applies the steps in order and stops at the first error.
func (sc *Scenario) Run(ctx context.Context, a *avatar.Avatar) error {
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return boterr.WrapWithCode(err, boterr.CodeCanceled, "replay canceled")
		}
		if err := step.apply(ctx, sc, a); err != nil {
			return boterr.Wrapf(err, "step %d (%s)", i+1, step.Name())
		}
	}
	return nil
}

func (s Step) apply(ctx context.Context, sc *Scenario, a *avatar.Avatar) error {
	switch {
	case s.Connect != nil:
		addr := s.Connect.Address
		if addr == "" {
			addr = sc.Server
		}
		return a.Connected(ctx, addr)
	case s.Disconnect != nil:
		var cause error
		if s.Disconnect.Error != "" {
			cause = boterr.New(boterr.CodeUnknown, s.Disconnect.Error)
		}
		return a.Disconnect(ctx, s.Disconnect.Reason, cause)
	case s.JoinGame != nil:
		return a.HandlePacket(ctx, avatar.JoinGame{
			EntityID:  s.JoinGame.EntityID,
			GameMode:  avatar.GameMode(s.JoinGame.GameMode),
			Dimension: s.JoinGame.Dimension,
		})
	case s.Respawn != nil:
		return a.HandlePacket(ctx, avatar.Respawn{
			Dimension: s.Respawn.Dimension,
			GameMode:  avatar.GameMode(s.Respawn.GameMode),
		})
	case s.Position != nil:
		p := s.Position
		return a.HandlePacket(ctx, avatar.PlayerPosition{
			Pos:        avatar.Vec3d{X: p.X, Y: p.Y, Z: p.Z},
			Yaw:        p.Yaw,
			Pitch:      p.Pitch,
			Relative:   p.Relative,
			TeleportID: p.TeleportID,
		})
	case s.Health != nil:
		return a.HandlePacket(ctx, avatar.UpdateHealth{
			Health:     s.Health.Health,
			Food:       s.Health.Food,
			Saturation: s.Health.Saturation,
		})
	case s.Experience != nil:
		return a.HandlePacket(ctx, avatar.SetExperience{
			Bar:   s.Experience.Bar,
			Level: s.Experience.Level,
			Total: s.Experience.Total,
		})
	case s.Chat != nil:
		return a.HandlePacket(ctx, avatar.Chat{Message: s.Chat.Message})
	case s.PlayerList != nil:
		entries := make([]avatar.PlayerListItem, len(s.PlayerList.Players))
		for i, p := range s.PlayerList.Players {
			entries[i] = avatar.PlayerListItem{
				UUID:        p.UUID,
				Name:        p.Name,
				DisplayName: p.DisplayName,
				GameMode:    avatar.GameMode(p.GameMode),
				Ping:        p.Ping,
			}
		}
		return a.HandlePacket(ctx, avatar.PlayerListUpdate{
			Action:  playerListActions[s.PlayerList.Action],
			Entries: entries,
		})
	case s.WindowProperty != nil:
		return a.HandlePacket(ctx, avatar.WindowProperty{
			WindowID: s.WindowProperty.WindowID,
			Property: s.WindowProperty.Property,
			Value:    s.WindowProperty.Value,
		})
	case s.Transaction != nil:
		return a.HandlePacket(ctx, avatar.ConfirmTransaction{
			WindowID: s.Transaction.WindowID,
			ActionID: s.Transaction.ActionID,
			Accepted: s.Transaction.Accepted,
		})
	case s.Tick != nil:
		count := s.Tick.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			if err := a.Tick(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return boterr.Validationf("no action set")
}
