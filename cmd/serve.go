package cmd

import (
	"context"
	"fmt"

	"casehub/bootstrap"
	"casehub/core"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var caseName string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the casehub node",
		Long: `Start health monitoring and the diagnostics server, optionally open a
multi-user case, and run until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			app, err := bootstrap.NewApp(configFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			if err := app.Start(ctx); err != nil {
				app.Shutdown()
				return fmt.Errorf("failed to start application: %w", err)
			}

			app.Publisher.Subscribe(func(event core.Event) {
				header := event.Metadata()
				app.Sugar.Infow("Case event",
					"type", event.EventType(),
					"source", header.Source(),
					"instance", header.Instance,
					"id", header.ID)
			})

			if caseName != "" {
				if err := app.OpenCase(ctx, caseName); err != nil {
					app.Shutdown()
					return err
				}
			}

			app.WaitForShutdown()
			app.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&caseName, "case", "", "Open this multi-user case at start")
	return cmd
}
