package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KirkDiggler/mcbot/internal/avatar"
	"github.com/KirkDiggler/mcbot/internal/behaviors/eventlog"
	"github.com/KirkDiggler/mcbot/internal/config"
	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/KirkDiggler/mcbot/internal/events"
	"github.com/KirkDiggler/mcbot/internal/replay"
	"github.com/KirkDiggler/mcbot/internal/session"
	"github.com/KirkDiggler/mcbot/internal/uuid"
)

type runFlags struct {
	dispatch      string
	workers       int
	failurePolicy string
}

func getCmdRun(root *rootCommand) *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files",
		Long: `Run scenario files.

  Each scenario gets its own session with the event logger attached. The
  scenarios are loaded up front and run one after the other.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *root.cfg
			if cmd.Flags().Changed("dispatch") {
				cfg.Events.Dispatch = flags.dispatch
			}
			if cmd.Flags().Changed("workers") {
				cfg.Events.Workers = flags.workers
			}
			if cmd.Flags().Changed("failure-policy") {
				cfg.Events.FailurePolicy = flags.failurePolicy
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			scenarios, err := replay.LoadFiles(cmd.Context(), args)
			if err != nil {
				return err
			}

			failed := 0
			for _, sc := range scenarios {
				if err := runScenario(cmd, root, &cfg, sc); err != nil {
					failed++
					root.logger.WithError(err).WithFields(boterr.Fields(err)).WithField("scenario", sc.Path).Error("Scenario failed")
				}
			}
			if failed > 0 {
				return boterr.Newf(boterr.CodeListenerFailure, "%d of %d scenarios failed", failed, len(scenarios))
			}
			return nil
		},
	}

	runCmd.Flags().AddFlagSet(runCmdFlagSet(flags))
	return runCmd
}

func runCmdFlagSet(flags *runFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.StringVar(&flags.dispatch, "dispatch", config.DispatchInline, "execution context for listeners (inline, loop)")
	fs.IntVar(&flags.workers, "workers", 1, "listeners allowed to run at once with --dispatch loop")
	fs.StringVar(&flags.failurePolicy, "failure-policy", "collect", "what to do with listener failures (collect, log)")
	return fs
}

func runScenario(cmd *cobra.Command, root *rootCommand, cfg *config.Config, sc *replay.Scenario) error {
	bot := cfg.Bot
	if sc.Server != "" {
		bot.Server = config.NormalizeServerAddress(sc.Server)
	}

	sess, err := session.New(&session.Config{
		Bot:           bot,
		Events:        cfg.Events,
		Logger:        root.logger.WithField("scenario", sc.Name),
		UUIDGenerator: uuid.NewNameGenerator(sc.Path),
	})
	if err != nil {
		return err
	}
	eventlog.Register(sess.Emitter(), root.logger.WithField("scenario", sc.Name))

	// listeners may run on several loop workers at once
	var packets atomic.Int64
	events.On(sess.Emitter(), avatar.EventServerPacketReceived, func(ctx context.Context, ev avatar.ServerPacketReceived) error {
		packets.Add(1)
		return nil
	})

	runErr := sc.Run(cmd.Context(), sess.Avatar())
	if flushErr := sess.Flush(cmd.Context()); runErr == nil {
		runErr = flushErr
	}
	if closeErr := sess.Close(cmd.Context()); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, %d packets\n", sc.Name, len(sc.Steps), packets.Load())
	return nil
}
