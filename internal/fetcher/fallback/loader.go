// Package fallback escalates blocked or thin plain fetches to the browser renderer.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/clock/system"
	"github.com/JakeFAU/realtime-price-tracker/internal/headless/detector"
	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// HostPolicy remembers hosts whose plain fetches were recently blocked.
type HostPolicy interface {
	AllowFetch(rawURL string) bool
	MarkBlocked(rawURL string, at time.Time)
}

// Config wires the loader's collaborators. Renderer, Limiter and Policy are optional.
type Config struct {
	Fetcher      pricing.Fetcher
	Renderer     pricing.Renderer
	Limiter      pricing.HostLimiter
	Policy       HostPolicy
	Clock        pricing.Clock
	MinBodyBytes int
	Logger       *zap.Logger
}

// Loader implements pricing.PageLoader.
type Loader struct {
	fetcher      pricing.Fetcher
	renderer     pricing.Renderer
	limiter      pricing.HostLimiter
	policy       HostPolicy
	clock        pricing.Clock
	minBodyBytes int
	logger       *zap.Logger
}

// New constructs a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("fallback loader requires a fetcher")
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.MinBodyBytes == 0 {
		cfg.MinBodyBytes = 1000
	}
	return &Loader{
		fetcher:      cfg.Fetcher,
		renderer:     cfg.Renderer,
		limiter:      cfg.Limiter,
		policy:       cfg.Policy,
		clock:        cfg.Clock,
		minBodyBytes: cfg.MinBodyBytes,
		logger:       logging.OrNop(cfg.Logger).Named("loader"),
	}, nil
}

// Load fetches the page, falling back to a single render attempt when allowed.
func (l *Loader) Load(ctx context.Context, request pricing.FetchRequest) (pricing.FetchResponse, error) {
	target := request.FullURL()
	canRender := request.AllowRender && l.renderer != nil

	var fetchErr error
	if !canRender || l.policy == nil || l.policy.AllowFetch(target) {
		if err := l.wait(ctx, target); err != nil {
			return pricing.FetchResponse{}, err
		}
		resp, err := l.fetcher.Fetch(ctx, request)
		if err == nil || !canRender || !detector.ShouldRender(resp, err, l.minBodyBytes) {
			return resp, err
		}
		if errors.Is(err, pricing.ErrBlocked) && l.policy != nil {
			l.policy.MarkBlocked(target, l.clock.Now())
		}
		fetchErr = err
		l.logger.Info("escalating to render fallback", zap.String("url", target), zap.Error(err))
	} else {
		l.logger.Debug("host recently blocked, rendering directly", zap.String("url", target))
	}

	if err := l.wait(ctx, target); err != nil {
		return pricing.FetchResponse{}, errors.Join(fetchErr, err)
	}
	rendered, err := l.renderer.Render(ctx, target)
	if err != nil {
		metrics.ObserveRender(target, "failed")
		l.logger.Info("render fallback failed", zap.String("url", target), zap.Error(err))
		if !errors.Is(err, pricing.ErrRenderFailed) {
			err = fmt.Errorf("%w: %w", pricing.ErrRenderFailed, err)
		}
		return pricing.FetchResponse{}, errors.Join(fetchErr, err)
	}
	metrics.ObserveRender(target, "ok")
	return rendered, nil
}

func (l *Loader) wait(ctx context.Context, target string) error {
	if l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx, target); err != nil {
		return &pricing.FetchError{Reason: pricing.ReasonTimeout, URL: target, Err: err}
	}
	return nil
}
