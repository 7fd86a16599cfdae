// Package memory records notifications for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Notifier stores sent notifications for inspection.
type Notifier struct {
	mu   sync.RWMutex
	sent []pricing.Notification
	err  error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes every later Send return err. A nil err restores delivery.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Send records msg unless a failure was configured.
func (n *Notifier) Send(_ context.Context, msg pricing.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (n *Notifier) Sent() []pricing.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]pricing.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
