// Package eventlog logs avatar events in human readable form.
package eventlog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/KirkDiggler/mcbot/internal/avatar"
	"github.com/KirkDiggler/mcbot/internal/events"
)

// Register subscribes the event logger to em and returns its handles, which
// Unregister takes to detach it again.
func Register(em *events.Emitter, logger logrus.FieldLogger) []events.Handle {
	logger = logger.WithField("behavior", "eventlog")

	return []events.Handle{
		events.On(em, avatar.EventConnected, func(ctx context.Context, ev avatar.Connected) error {
			logger.Infof("Connected to %s", ev.RemoteAddr)
			return nil
		}),
		events.On(em, avatar.EventDisconnected, func(ctx context.Context, ev avatar.Disconnected) error {
			if ev.Cause != nil {
				logger.WithError(ev.Cause).Debug("Disconnect cause")
			}
			logger.Warnf("Disconnected from %s Reason: %s", ev.RemoteAddr, ev.Reason)
			return nil
		}),
		events.On(em, avatar.EventSpawned, func(ctx context.Context, ev avatar.Spawned) error {
			logger.Infof("Spawned at %s %s as eid %d", ev.Entity.Position(), ev.Entity.Look(), ev.Entity.ID)
			return nil
		}),
		events.On(em, avatar.EventChatReceived, func(ctx context.Context, ev avatar.ChatReceived) error {
			logger.Infof("[CHAT] %s", ev.Message)
			return nil
		}),
		events.On(em, avatar.EventPlayerJoined, func(ctx context.Context, ev avatar.PlayerJoined) error {
			logger.Infof("Player joined: %s", ev.Entry.Label())
			return nil
		}),
		events.On(em, avatar.EventPlayerLeft, func(ctx context.Context, ev avatar.PlayerLeft) error {
			logger.Infof("Player left: %s", ev.Entry.Label())
			return nil
		}),
		events.On(em, avatar.EventTeleportedByServer, func(ctx context.Context, ev avatar.TeleportedByServer) error {
			logger.Infof("Position changed to %s", ev.NewPos)
			return nil
		}),
		events.On(em, avatar.EventHealthChanged, func(ctx context.Context, ev avatar.HealthChanged) error {
			logger.Infof("Health changed %s", formatChange(ev.Old, ev.New))
			return nil
		}),
		events.On(em, avatar.EventExpChanged, func(ctx context.Context, ev avatar.ExpChanged) error {
			logger.Debugf("Experience changed to level %d (%d total)", ev.New.Level, ev.New.Total)
			return nil
		}),
		events.On(em, avatar.EventWindowPropertyChanged, func(ctx context.Context, ev avatar.WindowPropertyChanged) error {
			logger.Infof("Window property changed: %d %s", ev.Property, formatChange(ev.Old, ev.New))
			return nil
		}),
		events.On(em, avatar.EventTransactionResponse, func(ctx context.Context, ev avatar.TransactionResponse) error {
			logger.Debugf("Transaction %d in window %d accepted: %t", ev.ActionID, ev.WindowID, ev.Accepted)
			return nil
		}),
	}
}

// Unregister detaches handles returned by Register.
func Unregister(em *events.Emitter, handles []events.Handle) {
	for _, h := range handles {
		em.Off(h)
	}
}

// formatChange renders "from old to new", with "none" for an unknown old
// value.
func formatChange[T any](old *T, value T) string {
	if old == nil {
		return fmt.Sprintf("from none to %v", value)
	}
	return fmt.Sprintf("from %v to %v", *old, value)
}
