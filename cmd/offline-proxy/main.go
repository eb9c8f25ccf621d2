package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-cache/internal/config"
	"github.com/Sternrassler/offline-cache/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:          "offline-proxy",
		Short:        "Offline-first caching proxy for a web application",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &loaded)
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.LogLevel),
				Pretty: cfg.LogPretty,
				Output: os.Stderr,
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("upstream", "", "application origin to front (env OFFLINE_UPSTREAM)")
	flags.String("log-level", "", "debug, info, warn or error (env OFFLINE_LOG_LEVEL)")
	flags.Bool("log-pretty", false, "human-readable logs (env OFFLINE_LOG_PRETTY)")

	root.AddCommand(newServeCmd(&cfg), newCheckIconsCmd(&cfg))
	return root
}

// applyFlags overrides environment values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("upstream") {
		cfg.Upstream, _ = flags.GetString("upstream")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty, _ = flags.GetBool("log-pretty")
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Lookup("backend") != nil && flags.Changed("backend") {
		backend, _ := flags.GetString("backend")
		cfg.Backend = config.Backend(backend)
	}
	if flags.Lookup("version-tag") != nil && flags.Changed("version-tag") {
		cfg.Version, _ = flags.GetString("version-tag")
	}
}
