package main

import (
	"github.com/aretw0/warden/pkg/domain"
	"github.com/spf13/cobra"
)

var warnsCmd = &cobra.Command{
	Use:   "warns",
	Short: "Inspect or clear warning counters in the configured store",
}

var warnsGetCmd = &cobra.Command{
	Use:   "get <guild> <user>",
	Short: "Print a member's warning count",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Engine.WarnCount(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, domain.WarnRecord{GuildID: args[0], UserID: args[1], Count: n})
	},
}

var warnsClearCmd = &cobra.Command{
	Use:   "clear <guild> <user>",
	Short: "Reset a member's warning count",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Engine.ClearWarns(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return printJSON(cmd, domain.WarnRecord{GuildID: args[0], UserID: args[1]})
	},
}

func init() {
	warnsCmd.AddCommand(warnsGetCmd, warnsClearCmd)
	rootCmd.AddCommand(warnsCmd)
}
