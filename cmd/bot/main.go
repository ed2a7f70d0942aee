package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/KirkDiggler/mcbot/internal/behaviors/eventlog"
	"github.com/KirkDiggler/mcbot/internal/config"
	"github.com/KirkDiggler/mcbot/internal/replay"
	"github.com/KirkDiggler/mcbot/internal/session"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.Log.NewLogger()
	logger.WithFields(logrus.Fields{
		"name":     cfg.Bot.Name,
		"server":   cfg.Bot.Server,
		"dispatch": cfg.Events.Dispatch,
		"workers":  cfg.Events.Workers,
	}).Info("Starting bot")

	sess, err := session.New(&session.Config{
		Bot:    cfg.Bot,
		Events: cfg.Events,
		Logger: logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create session")
	}
	eventlog.Register(sess.Emitter(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// An optional scenario stands in for the server until the bot has a
	// protocol connection.
	if len(os.Args) > 1 {
		sc, loadErr := replay.LoadFile(os.Args[1])
		if loadErr != nil {
			logger.WithError(loadErr).Fatal("Failed to load scenario")
		}
		if runErr := sc.Run(ctx, sess.Avatar()); runErr != nil {
			logger.WithError(runErr).Error("Scenario failed")
		}
	}

	fmt.Println("Bot is now running. Press CTRL-C to exit.")

	if err := sess.Run(ctx, cfg.Bot.TickInterval); err != nil {
		logger.WithError(err).Error("Session stopped")
	}

	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error closing session")
	} else {
		logger.Info("Closed session")
	}
}
