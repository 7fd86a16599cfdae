package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/server"
	memoryStorage "github.com/JakeFAU/realtime-price-tracker/internal/storage/memory"
	"github.com/JakeFAU/realtime-price-tracker/internal/tracker"
)

type fakeScanner struct {
	cycles   []pricing.Product
	scanAll  int
	loops    []time.Duration
	cycleErr error
}

func (f *fakeScanner) RunCycle(_ context.Context, product pricing.Product) (tracker.Result, error) {
	f.cycles = append(f.cycles, product)
	return tracker.Result{
		Product: product,
		Accepted: []pricing.Offer{{
			Provider:   "Amazon",
			Price:      decimal.NewFromInt(999),
			URL:        "https://www.amazon.in/dp/1",
			MatchScore: 0.9,
		}},
	}, f.cycleErr
}

func (f *fakeScanner) ScanAll(context.Context) (tracker.ScanSummary, error) {
	f.scanAll++
	return tracker.ScanSummary{
		Products: 1,
		Results:  []tracker.Result{{Product: pricing.Product{ID: "p1", Name: "Widget", SearchQuery: "widget"}}},
	}, nil
}

func (f *fakeScanner) Loop(_ context.Context, interval time.Duration) error {
	f.loops = append(f.loops, interval)
	return nil
}

type fakeApp struct {
	store   *memoryStorage.Store
	scanner *fakeScanner
	served  bool
	closed  int
}

func newFakeApp() *fakeApp {
	return &fakeApp{store: memoryStorage.NewStore(), scanner: &fakeScanner{}}
}

func (a *fakeApp) Close(context.Context) error { a.closed++; return nil }
func (a *fakeApp) Logger() *zap.Logger         { return zap.NewNop() }
func (a *fakeApp) Store() server.Store         { return a.store }
func (a *fakeApp) Scanner() Scanner            { return a.scanner }
func (a *fakeApp) Serve(context.Context) error { a.served = true; return nil }

func TestRunScanAllPrintsResults(t *testing.T) {
	t.Parallel()

	app := newFakeApp()
	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), app, &scanOptions{}, &out))
	require.Equal(t, 1, app.scanner.scanAll)
	require.Contains(t, out.String(), "Widget (widget)")
	require.Contains(t, out.String(), "no offers")
}

func TestRunScanSingleProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	app := newFakeApp()
	require.NoError(t, app.store.AddProduct(ctx, pricing.Product{ID: "p1", Name: "Widget", SearchQuery: "widget"}))

	var out bytes.Buffer
	require.NoError(t, runScan(ctx, app, &scanOptions{productID: "p1"}, &out))
	require.Len(t, app.scanner.cycles, 1)
	require.Equal(t, "p1", app.scanner.cycles[0].ID)
	require.Contains(t, out.String(), "₹999.00")

	err := runScan(ctx, app, &scanOptions{productID: "missing"}, &out)
	require.ErrorIs(t, err, pricing.ErrNotFound)
}

func TestRunScanAdHocQueryAddsProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	app := newFakeApp()
	var out bytes.Buffer
	require.NoError(t, runScan(ctx, app, &scanOptions{query: "  iphone 15 "}, &out))

	products, err := app.store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "iphone 15", products[0].SearchQuery)
	require.Equal(t, "iphone 15", products[0].Name)
	require.Equal(t, products[0].ID, app.scanner.cycles[0].ID)
}

func TestRunScanCycleErrorStillPrints(t *testing.T) {
	t.Parallel()

	app := newFakeApp()
	app.scanner.cycleErr = errors.New("persist failed")
	var out bytes.Buffer
	err := runScan(context.Background(), app, &scanOptions{query: "widget", name: "Blue Widget"}, &out)
	require.ErrorContains(t, err, "persist failed")
	require.Contains(t, out.String(), "Blue Widget")
}

func TestRunScanLoop(t *testing.T) {
	t.Parallel()

	app := newFakeApp()
	require.NoError(t, runScan(context.Background(), app, &scanOptions{loop: time.Hour}, &bytes.Buffer{}))
	require.Equal(t, []time.Duration{time.Hour}, app.scanner.loops)
}

//nolint:paralleltest // swaps the package-level app factory
func TestRootCommandBuildsAndClosesApp(t *testing.T) {
	app := newFakeApp()
	original := newApp
	t.Cleanup(func() { newApp = original })
	var gotConfig string
	newApp = func(_ context.Context, cfgFile string) (App, error) {
		gotConfig = cfgFile
		return app, nil
	}

	root := newRootCmd()
	root.SetArgs([]string{"--config", "tracker.yaml", "serve"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Equal(t, "tracker.yaml", gotConfig)
	require.True(t, app.served)
	require.Equal(t, 1, app.closed)
}

//nolint:paralleltest // swaps the package-level app factory
func TestRootCommandReportsInitFailure(t *testing.T) {
	original := newApp
	t.Cleanup(func() { newApp = original })
	newApp = func(context.Context, string) (App, error) {
		return nil, errors.New("bad config")
	}

	root := newRootCmd()
	root.SetArgs([]string{"scan"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "failed to initialize application services")
}
