package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casehub/core"
	"casehub/monitor"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

const (
	defaultTimeout         = 2 * time.Minute
	defaultLoopbackTimeout = 10 * time.Second
)

func newStatusCmd() *cobra.Command {
	var asJSON, asYAML bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check every multi-user service",
		Long:  "Probe the case database, keyword search server, message broker and coordination service and print their status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return errors.New("--json and --yaml are mutually exclusive")
			}

			app, err := newCLIApp(configFile)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			var s *spinner.Spinner
			if !asJSON && !asYAML && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Checking services..."
				s.Start()
			}

			reports, err := app.Monitor.CheckAll(ctx)

			if s != nil {
				s.Stop()
			}
			if err != nil {
				return fmt.Errorf("failed to check services: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return outputAsJSON(out, reports)
			case asYAML:
				return outputAsYAML(out, reports)
			}

			renderStatusTable(out, reports)
			if !quiet {
				renderRemediation(out, reports)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output in YAML format")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <service>",
		Short: "Check one multi-user service",
		Long: `Probe a single service and exit non-zero if it is DOWN.

Services: REMOTE_CASE_DATABASE (database), REMOTE_KEYWORD_SEARCH (search),
MESSAGING (broker), COORDINATION_SERVICE (coordination).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseServiceID(args[0])
			if err != nil {
				return err
			}

			app, err := newCLIApp(configFile)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			if !asJSON && !quiet {
				infoColor.Fprintf(out, "Checking %s...\n", id.DisplayName())
			}

			report, err := app.Monitor.CheckService(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", id, err)
			}

			if asJSON {
				if err := outputAsJSON(out, report); err != nil {
					return err
				}
			} else {
				renderReport(out, report)
			}

			if !report.IsUp() {
				return &monitor.ServiceDownError{Report: report}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newTestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Verify multi-user settings",
		Long: `Check the case database, keyword search server, message broker and
coordination service in that order, stopping at the first one that is down.
When all are up, send a test event through the broker and wait for it to
come back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(configFile)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			err = app.SelfTest(ctx, timeout, func(report core.ServiceStatusReport) {
				if quiet {
					return
				}
				renderReport(out, report)
			})

			var down *monitor.ServiceDownError
			switch {
			case errors.As(err, &down):
				errorColor.Fprintf(out, "Multi User service is down: %s\n", down.Report.Service.DisplayName())
				return fmt.Errorf("multi-user self test failed: %w", err)
			case err != nil:
				errorColor.Fprintf(out, "Event round trip failed: %v\n", err)
				return fmt.Errorf("multi-user self test failed: %w", err)
			}

			successColor.Fprintln(out, "Multi-user settings verified")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultLoopbackTimeout, "How long to wait for the test event")
	return cmd
}
