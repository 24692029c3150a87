// Command voidbot is the entry point of the voidbot Discord music bot.
//
// Running it without a subcommand serves the bot; `voidbot cache` inspects
// and prunes the on-disk audio cache.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voidbot:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs serve.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "voidbot",
		Short:         "voidbot plays YouTube audio in Discord voice channels.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(newServeCmd(&configPath), newCacheCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve playback commands (default).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}
