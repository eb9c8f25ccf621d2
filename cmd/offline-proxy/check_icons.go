package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-cache/internal/config"
	"github.com/Sternrassler/offline-cache/pkg/icons"
)

func newCheckIconsCmd(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "check-icons",
		Short: "Check that the app icons and manifest are served",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := cfg.UpstreamURL()
			if err != nil {
				return err
			}

			checker, err := icons.NewChecker(&http.Client{Timeout: 10 * time.Second}, icons.Config{
				BaseURL: base,
				Force:   force,
			})
			if err != nil {
				return err
			}

			report := checker.Check(cmd.Context())
			return printReport(cmd, report)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "check non-local hosts too")
	return cmd
}

func printReport(cmd *cobra.Command, report icons.Report) error {
	out := cmd.OutOrStdout()

	if report.Skipped {
		fmt.Fprintln(out, "skipped: host is not local (use --force)")
		return nil
	}
	if len(report.Missing) > 0 {
		fmt.Fprintf(out, "missing icons: %v\n", report.Missing)
	}
	if !report.ManifestReachable {
		fmt.Fprintln(out, "manifest not reachable")
	}
	if !report.Installable() {
		return fmt.Errorf("app is not installable")
	}
	fmt.Fprintln(out, "all icons present, manifest reachable")
	return nil
}
