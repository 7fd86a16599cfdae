package collyfetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// DelayRange is a closed interval a politeness delay is drawn from.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a random duration inside the range.
func (r DelayRange) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(r.Max-r.Min)+1))
	if err != nil {
		return r.Min + (r.Max-r.Min)/2
	}
	return r.Min + time.Duration(n.Int64())
}

// politenessDelay returns the delay before the given zero-based attempt.
func (f *Fetcher) politenessDelay(attempt int) time.Duration {
	if attempt == 0 {
		return f.cfg.FirstDelay.Pick()
	}
	return f.cfg.RetryDelay.Pick()
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("politeness delay: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// classifyTransport maps a failed attempt to a fetch reason.
func classifyTransport(err error) pricing.FetchReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return pricing.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pricing.ReasonTimeout
	}
	return pricing.ReasonTransport
}
