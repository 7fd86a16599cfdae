package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ScanSummary reports a pass over the whole catalogue.
type ScanSummary struct {
	Products int
	Results  []Result
	Failed   int
}

// ScanAll runs a cycle for every stored product in turn, pausing between products.
func (t *Tracker) ScanAll(ctx context.Context) (ScanSummary, error) {
	products, err := t.cfg.Store.ListProducts(ctx)
	if err != nil {
		return ScanSummary{}, fmt.Errorf("list products: %w", err)
	}
	summary := ScanSummary{Products: len(products)}
	if len(products) == 0 {
		t.logger.Info("no products to track")
		return summary, nil
	}

	t.logger.Info("starting price check", zap.Int("products", len(products)))
	for i, product := range products {
		t.logger.Info(fmt.Sprintf("[%d/%d] Checking: %s", i+1, len(products), product.Name),
			zap.String("product_id", product.ID))

		res, err := t.RunCycle(ctx, product)
		if err != nil {
			summary.Failed++
			t.logger.Error("cycle failed", zap.String("product_id", product.ID), zap.Error(err))
		}
		if len(res.Accepted) == 0 {
			t.logger.Info("no results found", zap.String("product_id", product.ID))
		}
		summary.Results = append(summary.Results, res)

		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if i < len(products)-1 {
			if err := t.sleep(ctx, t.cfg.ProductPause); err != nil {
				return summary, err
			}
		}
	}
	t.logger.Info("price check complete", zap.Int("products", len(products)), zap.Int("failed", summary.Failed))
	return summary, nil
}

// Loop repeats ScanAll every interval until ctx ends. The wait starts after a pass finishes.
func (t *Tracker) Loop(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := t.ScanAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("scan pass failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
		t.logger.Info("waiting for next pass", zap.Duration("interval", interval))
		if err := t.sleep(ctx, interval); err != nil {
			return nil
		}
	}
}
