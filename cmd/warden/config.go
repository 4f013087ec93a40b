package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change guild settings in the configured store",
}

var configGetCmd = &cobra.Command{
	Use:   "get [guild]",
	Short: "Print one guild's settings, or every stored guild",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if len(args) == 1 {
			return printJSON(cmd, app.Engine.GuildConfig(args[0]))
		}
		return printJSON(cmd, app.Engine.GuildConfigs())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <guild> <max-warns>",
	Short: "Set the number of warnings that triggers a mute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("max-warns must be a number: %w", err)
		}

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg, err := app.Engine.SetMaxWarns(cmd.Context(), args[0], n)
		if err != nil {
			return err
		}
		return printJSON(cmd, cfg)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
