// Package provider implements the per-site search adapters.
package provider

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Option customizes an adapter.
type Option func(*base)

// WithEndpoint overrides the search endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(b *base) {
		b.endpoint = endpoint
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base carries what every adapter shares.
type base struct {
	name     string
	origin   string
	endpoint string
	loader   pricing.PageLoader
	logger   *zap.Logger
}

func newBase(name, origin, endpoint string, loader pricing.PageLoader, opts []Option) base {
	b := base{name: name, origin: origin, endpoint: endpoint, loader: loader}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = logging.OrNop(b.logger).Named("provider").With(zap.String("provider", name))
	return b
}

// Name returns the provider's display name.
func (b *base) Name() string {
	return b.name
}

// guard converts a panic inside an adapter into a failed result.
func (b *base) guard(query string, search func() pricing.SearchResult) (result pricing.SearchResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("adapter panicked", zap.String("query", query), zap.Any("panic", r))
			result = pricing.Failed(b.name, fmt.Errorf("%s adapter panic: %v", b.name, r))
		}
	}()
	result = search()
	switch result.Outcome {
	case pricing.OutcomeFailed:
		b.logger.Info("search failed", zap.String("query", query), zap.Error(result.Err))
	case pricing.OutcomeNoCandidate:
		b.logger.Info("no candidate", zap.String("query", query), zap.Error(result.Err))
	default:
		b.logger.Debug("candidate found", zap.String("query", query), zap.String("url", result.Candidate.URL))
	}
	return result
}

func (b *base) load(ctx context.Context, request pricing.FetchRequest) (pricing.FetchResponse, error) {
	resp, err := b.loader.Load(ctx, request)
	if err != nil {
		return pricing.FetchResponse{}, fmt.Errorf("%s search: %w", b.name, err)
	}
	return resp, nil
}

func (b *base) parseError(resp pricing.FetchResponse, err error) pricing.SearchResult {
	return pricing.Failed(b.name, &pricing.ParseError{
		Provider: b.name,
		URL:      resp.URL,
		Body:     resp.Body,
		Err:      err,
	})
}

func (b *base) noCandidate(format string, args ...any) pricing.SearchResult {
	return pricing.NoCandidate(b.name, fmt.Errorf("%w: %s", pricing.ErrNoCandidate, fmt.Sprintf(format, args...)))
}

func document(resp pricing.FetchResponse) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
