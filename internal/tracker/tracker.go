// Package tracker runs tracking cycles: it fans a product's query out to every provider,
// filters the results and persists accepted offers, history points and alert notifications.
package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-price-tracker/internal/aggregate"
	"github.com/JakeFAU/realtime-price-tracker/internal/alert"
	"github.com/JakeFAU/realtime-price-tracker/internal/clock/system"
	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/match"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/normalize"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Config wires a Tracker.
type Config struct {
	Providers  []pricing.Provider
	Aggregator *aggregate.Aggregator
	Store      pricing.Store
	Notifier   pricing.Notifier

	// Snapshots, Hasher and IDs are optional; without all three, parse failures are only logged.
	Snapshots      pricing.BlobStore
	SnapshotPrefix string
	Hasher         pricing.Hasher
	IDs            pricing.IDGenerator
	Clock          pricing.Clock

	Concurrency  int
	CycleTimeout time.Duration
	ProductPause time.Duration
	Logger       *zap.Logger
}

// Tracker owns the per-product tracking cycle.
type Tracker struct {
	cfg    Config
	locks  *keyedMutex
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// ProviderReport summarises what one provider produced during a cycle.
type ProviderReport struct {
	Provider string
	Outcome  pricing.Outcome
	Err      error
	Snapshot string
}

// Result is the outcome of one tracking cycle.
type Result struct {
	CycleID   string
	Product   pricing.Product
	Providers []ProviderReport
	Accepted  []pricing.Offer
	Rejected  []aggregate.Rejection
	Notified  int
	Duration  time.Duration
}

// New validates cfg and constructs a Tracker.
func New(cfg Config) (*Tracker, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	if cfg.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	return &Tracker{
		cfg:    cfg,
		locks:  newKeyedMutex(),
		logger: logging.OrNop(cfg.Logger).Named("tracker"),
		sleep:  sleepContext,
	}, nil
}

// RunCycle runs one tracking cycle for product. Cycles for the same product never overlap.
// Provider failures never fail the cycle; the returned error joins persistence failures.
func (t *Tracker) RunCycle(ctx context.Context, product pricing.Product) (Result, error) {
	start := t.cfg.Clock.Now()
	res := Result{Product: product, CycleID: t.newID()}
	logger := t.logger.With(
		zap.String("cycle_id", res.CycleID),
		zap.String("product_id", product.ID),
		zap.String("query", product.SearchQuery),
	)

	unlock, err := t.locks.Lock(ctx, product.ID)
	if err != nil {
		metrics.ObserveCycle("canceled", 0)
		return res, fmt.Errorf("wait for product lock: %w", err)
	}
	defer unlock()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	results := t.gather(ctx, product.SearchQuery)

	var candidates []pricing.Offer
	for i, sr := range results {
		report := ProviderReport{Provider: t.cfg.Providers[i].Name(), Outcome: sr.Outcome, Err: sr.Err}
		var pe *pricing.ParseError
		if errors.As(sr.Err, &pe) {
			report.Snapshot = t.snapshot(ctx, res.CycleID, pe, logger)
		}
		res.Providers = append(res.Providers, report)

		if sr.Outcome != pricing.OutcomeFound || sr.Candidate == nil {
			continue
		}
		offer, err := normalize.Normalize(*sr.Candidate)
		if err != nil {
			metrics.ObserveRejected("invalid")
			logger.Info("discarded candidate", zap.String("provider", report.Provider), zap.Error(err))
			continue
		}
		offer.MatchScore = match.Score(product.SearchQuery, offer.Title)
		candidates = append(candidates, offer)
	}

	agg := t.cfg.Aggregator.Aggregate(product.SearchQuery, candidates)
	res.Accepted = agg.Accepted
	res.Rejected = agg.Rejected

	persistErr := t.persist(ctx, product, res.Accepted, &res, logger)

	res.Duration = t.cfg.Clock.Now().Sub(start)
	status := "ok"
	switch {
	case persistErr != nil:
		status = "error"
	case len(res.Accepted) == 0:
		status = "empty"
	}
	metrics.ObserveCycle(status, res.Duration)
	logger.Info("cycle finished",
		zap.String("status", status),
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("notified", res.Notified),
		zap.Duration("duration", res.Duration))
	return res, persistErr
}

// gather runs every provider with bounded parallelism within the cycle timeout.
// Results are indexed by provider position so registry order is preserved.
func (t *Tracker) gather(ctx context.Context, query string) []pricing.SearchResult {
	cycleCtx := ctx
	if t.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, t.cfg.CycleTimeout)
		defer cancel()
	}

	results := make([]pricing.SearchResult, len(t.cfg.Providers))
	var g errgroup.Group
	g.SetLimit(t.cfg.Concurrency)
	for i, p := range t.cfg.Providers {
		g.Go(func() error {
			sr := p.Search(cycleCtx, query)
			if sr.Outcome == "" {
				sr.Outcome = pricing.OutcomeFailed
			}
			metrics.ObserveProviderResult(p.Name(), string(sr.Outcome))
			results[i] = sr
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// persist writes accepted offers cheapest first so alerts fire on the lowest price.
func (t *Tracker) persist(ctx context.Context, product pricing.Product, accepted []pricing.Offer, res *Result, logger *zap.Logger) error {
	var errs []error
	for _, offer := range pricing.SortByPrice(accepted, true) {
		now := t.cfg.Clock.Now()
		log := logger.With(zap.String("provider", offer.Provider), zap.Stringer("price", offer.Price))

		if err := t.cfg.Store.UpsertOffer(ctx, product.ID, offer, now); err != nil {
			log.Error("upsert offer failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("upsert %s offer: %w", offer.Provider, err))
			continue
		}
		point := pricing.HistoryPoint{ProductID: product.ID, Provider: offer.Provider, Price: offer.Price, Timestamp: now}
		if err := t.cfg.Store.AppendHistory(ctx, point); err != nil {
			log.Error("append history failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("append %s history: %w", offer.Provider, err))
			continue
		}
		log.Info("updated price")

		notified, err := t.fireAlerts(ctx, product, offer, log)
		res.Notified += notified
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fireAlerts notifies first and deactivates only after the notifier accepted the message.
func (t *Tracker) fireAlerts(ctx context.Context, product pricing.Product, offer pricing.Offer, logger *zap.Logger) (int, error) {
	alerts, err := t.cfg.Store.GetActiveAlerts(ctx, product.ID)
	if err != nil {
		logger.Error("load alerts failed", zap.Error(err))
		return 0, fmt.Errorf("load alerts: %w", err)
	}
	var (
		sent int
		errs []error
	)
	for _, n := range alert.Evaluate(product, alerts, offer) {
		if err := t.cfg.Notifier.Send(ctx, n); err != nil {
			metrics.ObserveAlert("send_failed")
			logger.Warn("alert notification failed; alert stays active",
				zap.String("alert_id", n.AlertID), zap.Error(err))
			errs = append(errs, fmt.Errorf("notify alert %s: %w", n.AlertID, err))
			continue
		}
		if err := t.cfg.Store.DeactivateAlert(ctx, n.AlertID); err != nil {
			metrics.ObserveAlert("deactivate_failed")
			logger.Error("deactivate alert failed", zap.String("alert_id", n.AlertID), zap.Error(err))
			errs = append(errs, fmt.Errorf("deactivate alert %s: %w", n.AlertID, err))
			continue
		}
		metrics.ObserveAlert("sent")
		logger.Info("alert triggered", zap.String("alert_id", n.AlertID), zap.String("recipient", n.Recipient))
		sent++
	}
	return sent, errors.Join(errs...)
}

// snapshot keeps the page that failed to parse so selector drift can be diagnosed later.
func (t *Tracker) snapshot(ctx context.Context, cycleID string, pe *pricing.ParseError, logger *zap.Logger) string {
	if t.cfg.Snapshots == nil || t.cfg.Hasher == nil || len(pe.Body) == 0 {
		logger.Warn("provider page did not parse", zap.String("provider", pe.Provider), zap.Error(pe))
		return ""
	}
	hash, err := t.cfg.Hasher.Hash(pe.Body)
	if err != nil {
		logger.Warn("hash snapshot failed", zap.Error(err))
		return ""
	}
	path := t.snapshotPath(cycleID, pe.Provider, hash)
	uri, err := t.cfg.Snapshots.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(pe.Body))
	if err != nil {
		logger.Warn("store snapshot failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	logger.Warn("provider page did not parse",
		zap.String("provider", pe.Provider), zap.String("snapshot", uri), zap.Error(pe))
	return uri
}

func (t *Tracker) snapshotPath(cycleID, provider, hash string) string {
	day := t.cfg.Clock.Now().UTC().Format("2006/01/02")
	name := strings.ToLower(provider)
	if cycleID == "" {
		return fmt.Sprintf("%s/%s/%s/%s.html", t.cfg.SnapshotPrefix, name, day, hash)
	}
	return fmt.Sprintf("%s/%s/%s/%s-%s.html", t.cfg.SnapshotPrefix, name, day, cycleID, hash)
}

func (t *Tracker) newID() string {
	if t.cfg.IDs == nil {
		return ""
	}
	id, err := t.cfg.IDs.NewID()
	if err != nil {
		t.logger.Warn("generate cycle id", zap.Error(err))
		return ""
	}
	return id
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
