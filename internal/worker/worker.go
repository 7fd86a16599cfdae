// Package worker executes queued scan requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/tracker"
)

// CycleRunner runs one tracking cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, product pricing.Product) (tracker.Result, error)
}

// ProductLookup resolves a product by ID.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (pricing.Product, error)
}

// Worker consumes scan requests and runs a cycle for each.
type Worker struct {
	id       int
	queue    pricing.ScanQueue
	products ProductLookup
	runner   CycleRunner
	logger   *zap.Logger
}

// New constructs a Worker.
func New(id int, queue pricing.ScanQueue, products ProductLookup, runner CycleRunner, logger *zap.Logger) *Worker {
	return &Worker{
		id:       id,
		queue:    queue,
		products: products,
		runner:   runner,
		logger:   logging.OrNop(logger).Named("worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming requests until ctx finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			if errors.Is(err, pricing.ErrQueueClosed) {
				return
			}
			continue
		}
		if err := w.Process(ctx, req); err != nil {
			w.logger.Error("scan failed", zap.String("scan_id", req.ID), zap.String("product_id", req.ProductID), zap.Error(err))
		}
	}
}

// Process runs the cycle for one request.
func (w *Worker) Process(ctx context.Context, req pricing.ScanRequest) error {
	product, err := w.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	w.logger.Debug("scan started",
		zap.String("scan_id", req.ID),
		zap.String("product_id", product.ID),
		zap.Duration("queued_for", time.Since(req.RequestedAt)))

	res, err := w.runner.RunCycle(ctx, product)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	w.logger.Info("scan finished",
		zap.String("scan_id", req.ID),
		zap.String("cycle_id", res.CycleID),
		zap.Int("accepted", len(res.Accepted)))
	return nil
}
