package main

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KirkDiggler/mcbot/internal/config"
)

// rootCommand keeps the state shared by all subcommands.
type rootCommand struct {
	ctx    context.Context
	cfg    *config.Config
	logger *logrus.Logger
	cmd    *cobra.Command

	logLevel  string
	logFormat string
}

func newRootCommand(ctx context.Context) *rootCommand {
	c := &rootCommand{ctx: ctx}

	c.cmd = &cobra.Command{
		Use:               "replay",
		Short:             "Replay scripted server messages through a bot session",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.PersistentFlags().AddFlagSet(c.rootCmdPersistentFlagSet())

	c.cmd.AddCommand(getCmdRun(c), getCmdKinds(c))
	return c
}

func (c *rootCommand) rootCmdPersistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVar(&c.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides LOG_LEVEL")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")
	return flags
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = cfg.Log.NewLogger()
	c.logger.SetOutput(cmd.ErrOrStderr())
	return nil
}

func (c *rootCommand) execute(args []string, stdout, stderr io.Writer) error {
	c.cmd.SetArgs(args)
	c.cmd.SetOut(stdout)
	c.cmd.SetErr(stderr)
	return c.cmd.ExecuteContext(c.ctx)
}
