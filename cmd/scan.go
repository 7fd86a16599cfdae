package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/id/uuid"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/tracker"
)

type scanOptions struct {
	loop      time.Duration
	productID string
	query     string
	name      string
}

// newScanCmd creates the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Checks prices for every tracked product",
		Long: `Runs one tracking cycle per stored product: every provider is searched,
accessories and implausible prices are filtered out, the remaining offers are
stored and due alerts are sent. With --loop the whole catalogue is rescanned
on that interval until interrupted.`,
		RunE: withApp(func(cmd *cobra.Command, app App, _ []string) error {
			return runScan(cmd.Context(), app, opts, cmd.OutOrStdout())
		}),
	}
	cmd.Flags().DurationVar(&opts.loop, "loop", 0, "rescan the catalogue on this interval until interrupted")
	cmd.Flags().StringVar(&opts.productID, "product", "", "scan only the stored product with this id")
	cmd.Flags().StringVar(&opts.query, "query", "", "scan an ad-hoc search query, adding it to the catalogue first")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name for --query (defaults to the query)")
	cmd.MarkFlagsMutuallyExclusive("product", "query")
	cmd.MarkFlagsMutuallyExclusive("loop", "product")
	cmd.MarkFlagsMutuallyExclusive("loop", "query")
	return cmd
}

func runScan(ctx context.Context, app App, opts *scanOptions, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.Logger()
	scanner := app.Scanner()

	switch {
	case opts.loop > 0:
		logger.Info("starting scan loop", zap.Duration("interval", opts.loop))
		if err := scanner.Loop(ctx, opts.loop); err != nil {
			return fmt.Errorf("scan loop: %w", err)
		}
		logger.Info("scan loop stopped")
		return nil

	case opts.productID != "":
		product, err := app.Store().GetProduct(ctx, opts.productID)
		if err != nil {
			return fmt.Errorf("load product %s: %w", opts.productID, err)
		}
		return runOne(ctx, scanner, product, out)

	case strings.TrimSpace(opts.query) != "":
		product, err := adHocProduct(ctx, app.Store(), opts)
		if err != nil {
			return err
		}
		return runOne(ctx, scanner, product, out)

	default:
		summary, err := scanner.ScanAll(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scan: %w", err)
		}
		for _, res := range summary.Results {
			printResult(out, res)
		}
		logger.Info("scan finished",
			zap.Int("products", summary.Products),
			zap.Int("failed", summary.Failed),
		)
		if summary.Failed > 0 {
			return fmt.Errorf("scan: %d of %d products failed", summary.Failed, summary.Products)
		}
		return nil
	}
}

type productAdder interface {
	AddProduct(ctx context.Context, p pricing.Product) error
}

func adHocProduct(ctx context.Context, store productAdder, opts *scanOptions) (pricing.Product, error) {
	id, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return pricing.Product{}, fmt.Errorf("generate product id: %w", err)
	}
	query := strings.TrimSpace(opts.query)
	name := strings.TrimSpace(opts.name)
	if name == "" {
		name = query
	}
	product := pricing.Product{
		ID:          id,
		Name:        name,
		SearchQuery: query,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.AddProduct(ctx, product); err != nil {
		return pricing.Product{}, fmt.Errorf("add product: %w", err)
	}
	return product, nil
}

func runOne(ctx context.Context, scanner Scanner, product pricing.Product, out io.Writer) error {
	res, err := scanner.RunCycle(ctx, product)
	printResult(out, res)
	if err != nil {
		return fmt.Errorf("scan %s: %w", product.ID, err)
	}
	return nil
}

func printResult(out io.Writer, res tracker.Result) {
	if res.Product.ID == "" {
		return
	}
	fmt.Fprintf(out, "%s (%s)\n", res.Product.Name, res.Product.SearchQuery)
	if len(res.Accepted) == 0 {
		fmt.Fprintln(out, "  no offers")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, offer := range res.Accepted {
		fmt.Fprintf(tw, "  %s\t₹%s\t%.2f\t%s\n", offer.Provider, offer.Price.StringFixed(2), offer.MatchScore, offer.URL)
	}
	_ = tw.Flush()
	if res.Notified > 0 {
		fmt.Fprintf(out, "  %d alert(s) sent\n", res.Notified)
	}
}
