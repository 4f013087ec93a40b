package main

import (
	"context"
	"os"

	"github.com/aretw0/warden/internal/cli"
	"github.com/aretw0/warden/pkg/adapters/console"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Drive the engine from a local simulated guild",
	Long: `Starts an interactive shell against an in-process chat platform. Every ban, DM,
prompt and deletion the engine performs is printed instead of sent. Type 'help' for commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		guild, _ := cmd.Flags().GetString("guild")
		plain, _ := cmd.Flags().GetBool("plain")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		var opts []console.Option
		if plain {
			opts = append(opts, console.WithMarkdown(false))
		}
		platform := console.New(os.Stdout, opts...)

		app, err := openApp(ctx, cmd, cli.WithPlatform(platform))
		if err != nil {
			return err
		}
		defer app.Close()

		if !quiet {
			console.PrintBanner(os.Stdout)
		}
		shell := console.NewShell(app.Engine, platform,
			console.WithShellLogger(app.Logger.With("component", "console")),
			console.WithGuild(guild),
		)

		done := make(chan error, 1)
		go func() { done <- shell.Run(ctx, os.Stdin) }()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			if ctx.Signal() == os.Interrupt {
				platform.Println("[CTRL+C]")
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("guild", console.DefaultGuild, "Guild the shell operates on")
	consoleCmd.Flags().Bool("plain", false, "Disable markdown rendering")
	consoleCmd.Flags().BoolP("quiet", "q", false, "Skip the banner")
}
