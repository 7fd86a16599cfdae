package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the ops HTTP server and on-demand scan workers",
		Long: `Starts the HTTP server exposing /healthz, /readyz, /metrics and the product
endpoints, together with the worker pool that handles POST /v1/products/{id}/scan.
When tracker.loop_interval is set the whole catalogue is also rescanned on that
interval. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: withApp(func(cmd *cobra.Command, app App, _ []string) error {
			if err := app.Serve(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		}),
	}
}
