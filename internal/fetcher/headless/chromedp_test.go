package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	renderer, err := NewChromedp(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	defer renderer.Close()
	require.Equal(t, 2, cap(renderer.limiter))
	require.EqualValues(t, 1280, renderer.cfg.ViewportWidth)
	require.EqualValues(t, 720, renderer.cfg.ViewportHeight)
	require.Equal(t, "en-US", renderer.cfg.Locale)
	require.Equal(t, 1000, renderer.cfg.MinBodyBytes)
}

func TestRendererNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{}
	require.Equal(t, 30*time.Second, renderer.navTimeout())
	renderer.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, renderer.navTimeout())
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{limiter: make(chan struct{}, 1)}
	require.NoError(t, renderer.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, renderer.acquire(ctx))

	renderer.release()
	require.NoError(t, renderer.acquire(context.Background()))
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  200,
			URL:     "https://www.meesho.com/search?q=saree",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 404, URL: "https://cdn/script.js"},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 200, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://www.meesho.com/search?q=saree", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
}

func TestNoopRendererFailsSoftly(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Render(context.Background(), "https://www.amazon.in/s?k=x")
	require.ErrorIs(t, err, pricing.ErrRenderFailed)
}
