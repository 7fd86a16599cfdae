// Package dispatcher manages worker fan-out over the scan queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	"github.com/JakeFAU/realtime-price-tracker/internal/worker"
)

// Dispatcher fans out queued scans to a pool of workers.
type Dispatcher struct {
	queue   pricing.ScanQueue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue pricing.ScanQueue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Workers reports the size of the worker pool.
func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes and every worker returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
}

// ErrMissingProduct rejects scan requests that do not name a product.
var ErrMissingProduct = errors.New("scan request has no product id")

// Enqueue validates req and proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, req pricing.ScanRequest) error {
	if strings.TrimSpace(req.ProductID) == "" {
		return ErrMissingProduct
	}
	if err := d.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
