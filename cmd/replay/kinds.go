package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/mcbot/internal/avatar"
)

func getCmdKinds(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the event kinds an avatar emits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range avatar.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k.Name())
			}
			return nil
		},
	}
}
