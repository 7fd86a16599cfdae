package headless

import (
	"context"
	"fmt"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Noop implements pricing.Renderer when no browser is available.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render always fails softly.
func (Noop) Render(_ context.Context, rawURL string) (pricing.FetchResponse, error) {
	return pricing.FetchResponse{}, fmt.Errorf("%w: renderer not configured for %s", pricing.ErrRenderFailed, rawURL)
}
