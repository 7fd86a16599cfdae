// Package cmd defines and implements the CLI commands for the pricetracker executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/config"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/server"
	"github.com/JakeFAU/realtime-price-tracker/internal/tracker"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Scanner runs tracking cycles.
type Scanner interface {
	RunCycle(ctx context.Context, product pricing.Product) (tracker.Result, error)
	ScanAll(ctx context.Context) (tracker.ScanSummary, error)
	Loop(ctx context.Context, interval time.Duration) error
}

// App defines the application interface that commands use.
// This allows tests to inject a fake application.
type App interface {
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Store() server.Store
	Scanner() Scanner
	Serve(ctx context.Context) error
}

type builtApp struct {
	*server.App
}

func (a builtApp) Scanner() Scanner { return a.Tracker() }

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return builtApp{App: app}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "pricetracker",
		Short: "Tracks product prices across Indian e-commerce sites.",
		Long: `pricetracker searches Amazon, Flipkart, Myntra, Ajio and Meesho for every
tracked product, filters out accessories and implausible prices, stores the
surviving offers and sends an alert when a price drops to a user's target.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars use the PRICETRACKER_ prefix")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the application for a subcommand and closes it once the command returns,
// whether or not it failed.
func withApp(run func(cmd *cobra.Command, app App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := appInstance.Close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
				err = fmt.Errorf("close application: %w", cerr)
			}
		}()
		return run(cmd, appInstance, args)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		os.Exit(1)
	}
}
