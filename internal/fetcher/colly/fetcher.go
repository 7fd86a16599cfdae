// Package collyfetcher implements the plain HTTP fetch layer using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/headless/detector"
	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	FirstDelay DelayRange
	RetryDelay DelayRange
}

// Fetcher implements pricing.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	detector      pricing.BotDetector
	sleep         func(context.Context, time.Duration) error
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil detector applies the default validity gates.
func New(cfg Config, gate pricing.BotDetector, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if gate == nil {
		gate = detector.NewHeuristic(0, 0)
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		detector:      gate,
		sleep:         sleepWithContext,
		logger:        logging.OrNop(logger).Named("fetch"),
	}
}

// Fetch executes a GET with politeness delays, bounded retries and validity gates.
// Every failure is returned as a *pricing.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, request pricing.FetchRequest) (pricing.FetchResponse, error) {
	target := request.FullURL()
	maxRetries := request.MaxRetries
	if maxRetries <= 0 {
		maxRetries = f.cfg.MaxRetries
	}

	var lastErr *pricing.FetchError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := f.sleep(ctx, f.politenessDelay(attempt)); err != nil {
			return pricing.FetchResponse{}, &pricing.FetchError{
				Reason: classifyTransport(err), URL: target, Err: err,
			}
		}

		resp, err := f.fetchOnce(ctx, request, target)
		if err != nil {
			lastErr = &pricing.FetchError{Reason: classifyTransport(err), URL: target, Err: err}
			metrics.ObserveFetch(target, string(lastErr.Reason), 0)
			f.logger.Debug("fetch attempt failed",
				zap.String("url", target), zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				return pricing.FetchResponse{}, lastErr
			}
			continue
		}

		if detector.Retryable(resp.StatusCode) {
			lastErr = &pricing.FetchError{Reason: pricing.ReasonBlocked, URL: target, StatusCode: resp.StatusCode}
			metrics.ObserveFetch(target, "retryable_status", len(resp.Body))
			f.logger.Debug("retryable status",
				zap.String("url", target), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusForbidden {
			metrics.ObserveFetch(target, "http_error", len(resp.Body))
			return resp, &pricing.FetchError{Reason: pricing.ReasonTransport, URL: target, StatusCode: resp.StatusCode}
		}

		if reason, failed := f.detector.Inspect(resp); failed {
			lastErr = &pricing.FetchError{Reason: reason, URL: target, StatusCode: resp.StatusCode}
			metrics.ObserveFetch(target, string(reason), len(resp.Body))
			if reason == pricing.ReasonTooSmall {
				continue
			}
			return resp, lastErr
		}

		metrics.ObserveFetch(target, "ok", len(resp.Body))
		return resp, nil
	}

	f.logger.Info("fetch gave up",
		zap.String("url", target), zap.Int("attempts", maxRetries+1), zap.Error(lastErr))
	return pricing.FetchResponse{}, lastErr
}

func (f *Fetcher) fetchOnce(
	ctx context.Context,
	request pricing.FetchRequest,
	target string,
) (pricing.FetchResponse, error) {
	var (
		result   pricing.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector(request, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		return pricing.FetchResponse{}, err
	}
	result.URL = target
	return result, nil
}

func (f *Fetcher) buildCollector(
	request pricing.FetchRequest,
	start time.Time,
	result *pricing.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request pricing.FetchRequest,
	start time.Time,
	result *pricing.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.applyBrowserHeaders(r)
		copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = pricing.FetchResponse{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) applyBrowserHeaders(r *colly.Request) {
	lang := f.cfg.AcceptLanguage
	if lang == "" {
		lang = "en-US,en;q=0.5"
	}
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	r.Headers.Set("Accept-Language", lang)
	r.Headers.Set("DNT", "1")
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
}

func copyHeaders(request pricing.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
