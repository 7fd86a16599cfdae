// Package memory provides a bounded in-process scan queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// ErrFull is returned by TryEnqueue when the queue has no free slot.
var ErrFull = errors.New("scan queue is full")

// ErrClosed is returned once the queue has been closed.
var ErrClosed = pricing.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan pricing.ScanRequest
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan pricing.ScanRequest, capacity)}
}

// Enqueue pushes a request, waiting for room until ctx ends.
func (q *Queue) Enqueue(ctx context.Context, req pricing.ScanRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// TryEnqueue pushes a request without waiting.
func (q *Queue) TryEnqueue(req pricing.ScanRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next request, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (pricing.ScanRequest, error) {
	select {
	case <-ctx.Done():
		return pricing.ScanRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return pricing.ScanRequest{}, ErrClosed
		}
		return req, nil
	}
}

// Len reports the number of buffered requests.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. It is safe to call twice.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
