// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-price-tracker/internal/aggregate"
	"github.com/JakeFAU/realtime-price-tracker/internal/api"
	"github.com/JakeFAU/realtime-price-tracker/internal/clock/system"
	"github.com/JakeFAU/realtime-price-tracker/internal/config"
	"github.com/JakeFAU/realtime-price-tracker/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/realtime-price-tracker/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-price-tracker/internal/fetcher/fallback"
	headlessfetcher "github.com/JakeFAU/realtime-price-tracker/internal/fetcher/headless"
	"github.com/JakeFAU/realtime-price-tracker/internal/hash/sha256"
	"github.com/JakeFAU/realtime-price-tracker/internal/headless/detector"
	"github.com/JakeFAU/realtime-price-tracker/internal/id/uuid"
	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/notify/console"
	emailnotify "github.com/JakeFAU/realtime-price-tracker/internal/notify/email"
	pubsubnotify "github.com/JakeFAU/realtime-price-tracker/internal/notify/pubsub"
	"github.com/JakeFAU/realtime-price-tracker/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-price-tracker/internal/policy/simple"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/provider"
	queueMemory "github.com/JakeFAU/realtime-price-tracker/internal/queue/memory"
	gcsstorage "github.com/JakeFAU/realtime-price-tracker/internal/storage/gcs"
	localstorage "github.com/JakeFAU/realtime-price-tracker/internal/storage/local"
	memoryStorage "github.com/JakeFAU/realtime-price-tracker/internal/storage/memory"
	pgstore "github.com/JakeFAU/realtime-price-tracker/internal/storage/postgres"
	"github.com/JakeFAU/realtime-price-tracker/internal/tracker"
	"github.com/JakeFAU/realtime-price-tracker/internal/worker"
)

// Store is what the application needs from a persistence backend.
type Store interface {
	pricing.Store
	api.Catalog
	api.Pinger
	AddProduct(ctx context.Context, p pricing.Product) error
	AddAlert(ctx context.Context, a pricing.PriceAlert) error
}

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        Store
	pgStore      *pgstore.Store
	renderer     *headlessfetcher.Renderer
	storage      *storage.Client
	pubsubClient *pubsub.Client
	pubsubNotify *pubsubnotify.Notifier
	queue        *queueMemory.Queue
	dispatch     *dispatcher.Dispatcher
	tracker      *tracker.Tracker
	apiServer    *api.Server
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Only log non-sensitive config fields.
	logger.Info("Creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Strings("providers", cfg.Tracker.Providers),
		zap.String("notify_driver", cfg.Notify.Driver),
		zap.String("snapshot_driver", cfg.Snapshots.Driver),
		zap.Bool("render_enabled", cfg.Render.Enabled),
		zap.Bool("postgres", cfg.DB.DSN != ""),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the persistence backend.
func (a *App) Store() Store { return a.store }

// Tracker returns the tracking cycle engine.
func (a *App) Tracker() *tracker.Tracker { return a.tracker }

// Handler returns the ops HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Serve runs the ops server, the scan workers and, when configured, the periodic scan loop.
// It blocks until the context is canceled or a termination signal arrives.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(gctx)
		return nil
	})
	if a.cfg.Tracker.LoopInterval > 0 {
		g.Go(func() error {
			a.logger.Info("scan loop started", zap.Duration("interval", a.cfg.Tracker.LoopInterval))
			return a.tracker.Loop(gctx, a.cfg.Tracker.LoopInterval)
		})
	}
	g.Go(func() error {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error("application stopped with error", zap.Error(err))
	}
	return err
}

// Close releases every external client. It is safe to call once after Serve or a scan returns.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure(ctx)
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(_ context.Context) {
	if a.pubsubNotify != nil {
		a.pubsubNotify.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	if err := app.build(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	a.logger.Info("building application dependencies")

	if err := setupStore(ctx, a); err != nil {
		return err
	}
	snapshots, err := setupSnapshots(ctx, a)
	if err != nil {
		return err
	}
	notifier, err := setupNotifier(ctx, a)
	if err != nil {
		return err
	}
	loader, err := setupLoader(a)
	if err != nil {
		return err
	}

	providers, err := provider.Select(
		provider.Default(loader, provider.WithLogger(a.logger)),
		a.cfg.Tracker.Providers,
	)
	if err != nil {
		return fmt.Errorf("provider selection failed: %w", err)
	}
	a.logger.Info("providers enabled", zap.Int("count", len(providers)))

	a.tracker, err = tracker.New(tracker.Config{
		Providers:      providers,
		Aggregator:     aggregate.New(aggregate.NewCategoryFloors(a.cfg.Aggregate.CategoryFloors), a.logger),
		Store:          a.store,
		Notifier:       notifier,
		Snapshots:      snapshots,
		SnapshotPrefix: a.cfg.Snapshots.Prefix,
		Hasher:         sha256.NewTruncated(16),
		IDs:            uuid.NewUUIDGenerator(),
		Clock:          system.New(),
		Concurrency:    a.cfg.Tracker.Concurrency,
		CycleTimeout:   a.cfg.Tracker.CycleTimeout,
		ProductPause:   a.cfg.Tracker.ProductPause,
		Logger:         a.logger,
	})
	if err != nil {
		return fmt.Errorf("tracker init failed: %w", err)
	}

	a.queue = queueMemory.NewQueue(a.cfg.Tracker.QueueDepth)
	a.dispatch = setupDispatcher(a)

	a.apiServer = api.NewServer(
		a.store,
		a.dispatch,
		a.store,
		uuid.NewUUIDGenerator(),
		system.New(),
		a.logger.Named("api"),
	)
	return nil
}

func setupStore(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("No DSN specified for database, using in-memory store")
		app.store = memoryStorage.NewStore()
		return nil
	}
	pg, err := pgstore.New(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MaxConnLifetime: app.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres store init failed: %w", err)
	}
	app.pgStore = pg
	app.store = pg
	if app.cfg.DB.EnsureSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema init failed: %w", err)
		}
		app.logger.Info("postgres schema ensured")
	}
	app.logger.Info("postgres store initialized", zap.Int32("max_conns", app.cfg.DB.MaxConns))
	return nil
}

func setupSnapshots(ctx context.Context, app *App) (pricing.BlobStore, error) {
	switch app.cfg.Snapshots.Driver {
	case "gcs":
		app.logger.Info("using GCS snapshot backend", zap.String("bucket", app.cfg.Snapshots.Bucket))
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(app.storage, gcsstorage.Config{Bucket: app.cfg.Snapshots.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case "local":
		app.logger.Info("using local snapshot backend", zap.String("path", app.cfg.Snapshots.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Snapshots.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	case "memory":
		app.logger.Info("using in-memory snapshot backend")
		return memoryStorage.NewBlobStore(), nil
	default:
		app.logger.Info("page snapshots disabled")
		return nil, nil
	}
}

func setupNotifier(ctx context.Context, app *App) (pricing.Notifier, error) {
	switch app.cfg.Notify.Driver {
	case "smtp":
		smtp := app.cfg.Notify.SMTP
		n, err := emailnotify.New(emailnotify.Config{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp notifier init failed: %w", err)
		}
		app.logger.Info("SMTP notifier initialized", zap.String("host", smtp.Host), zap.Int("port", smtp.Port))
		return n, nil
	case "pubsub":
		ps := app.cfg.Notify.PubSub
		var err error
		app.pubsubClient, err = pubsub.NewClient(ctx, ps.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubNotify, err = pubsubnotify.New(app.pubsubClient.Topic(ps.TopicName))
		if err != nil {
			return nil, fmt.Errorf("pubsub notifier init failed: %w", err)
		}
		app.logger.Info("Pub/Sub notifier initialized",
			zap.String("project", ps.ProjectID),
			zap.String("topic", ps.TopicName),
		)
		return app.pubsubNotify, nil
	default:
		app.logger.Warn("No notification channel configured, logging alerts instead")
		return console.New(app.logger), nil
	}
}

func setupLoader(app *App) (*fallback.Loader, error) {
	fetchCfg := app.cfg.Fetch
	gate := detector.NewHeuristic(fetchCfg.MinBodyBytes, fetchCfg.BotProbeBytes)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      fetchCfg.UserAgent,
		AcceptLanguage: fetchCfg.AcceptLanguage,
		Timeout:        fetchCfg.Timeout,
		MaxRetries:     fetchCfg.MaxRetries,
		FirstDelay:     collyfetcher.DelayRange{Min: fetchCfg.FirstDelayMin, Max: fetchCfg.FirstDelayMax},
		RetryDelay:     collyfetcher.DelayRange{Min: fetchCfg.RetryDelayMin, Max: fetchCfg.RetryDelayMax},
	}, gate, app.logger)
	app.logger.Info("using colly fetcher",
		zap.Duration("timeout", fetchCfg.Timeout),
		zap.Int("max_retries", fetchCfg.MaxRetries),
	)

	loaderCfg := fallback.Config{
		Fetcher: fetcher,
		Limiter: ratelimit.New(ratelimit.Config{
			Interval: app.cfg.Tracker.HostInterval,
			Burst:    1,
		}),
		Clock:        system.New(),
		MinBodyBytes: app.cfg.Render.MinBodyBytes,
		Logger:       app.logger,
	}

	if app.cfg.Render.Enabled {
		renderCfg := app.cfg.Render
		renderer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       renderCfg.MaxParallel,
			UserAgent:         fetchCfg.UserAgent,
			NavigationTimeout: renderCfg.NavTimeout,
			SettleDelay:       renderCfg.SettleDelay,
			ViewportWidth:     renderCfg.ViewportWidth,
			ViewportHeight:    renderCfg.ViewportHeight,
			Locale:            renderCfg.Locale,
			MinBodyBytes:      renderCfg.MinBodyBytes,
		}, app.logger)
		if err != nil {
			app.logger.Warn("headless renderer init failed, render fallback disabled", zap.Error(err))
		} else {
			app.renderer = renderer
			loaderCfg.Renderer = renderer
			loaderCfg.Policy = simple.New(renderCfg.BlockedHostTTL)
			app.logger.Info("using headless renderer", zap.Int("max_parallel", renderCfg.MaxParallel))
		}
	}
	if loaderCfg.Renderer == nil {
		// Blocked pages still report a failed render; no host is skipped since nothing can render it.
		loaderCfg.Renderer = headlessfetcher.NewNoop()
	}

	loader, err := fallback.New(loaderCfg)
	if err != nil {
		return nil, fmt.Errorf("page loader init failed: %w", err)
	}
	return loader, nil
}

func setupDispatcher(app *App) *dispatcher.Dispatcher {
	workers := make([]*worker.Worker, 0, app.cfg.Tracker.Workers)
	for i := 0; i < app.cfg.Tracker.Workers; i++ {
		workers = append(workers, worker.New(
			i,
			app.queue,
			app.store,
			app.tracker,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.logger.Info("scan workers configured",
		zap.Int("workers", len(workers)),
		zap.Int("queue_depth", app.cfg.Tracker.QueueDepth),
	)
	return dispatcher.New(app.queue, workers)
}
