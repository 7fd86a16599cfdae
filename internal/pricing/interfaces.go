package pricing

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a plain HTTP fetch with retries and validity gates.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Renderer loads a page through a browser engine.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (FetchResponse, error)
}

// PageLoader fetches a page, escalating to the renderer when the request allows it.
type PageLoader interface {
	Load(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Provider turns a query into at most one raw candidate from one site.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) SearchResult
}

// BotDetector applies the validity gates to a transport-level response.
type BotDetector interface {
	Inspect(resp FetchResponse) (FetchReason, bool)
}

// HostLimiter spaces out requests to the same host.
type HostLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Store is the persistence boundary.
type Store interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetActiveAlerts(ctx context.Context, productID string) ([]PriceAlert, error)
	UpsertOffer(ctx context.Context, productID string, offer Offer, scrapedAt time.Time) error
	AppendHistory(ctx context.Context, point HistoryPoint) error
	DeactivateAlert(ctx context.Context, alertID string) error
}

// Notifier hands a notification off for delivery.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// ScanQueue buffers on-demand scan requests.
type ScanQueue interface {
	Enqueue(ctx context.Context, req ScanRequest) error
	Dequeue(ctx context.Context) (ScanRequest, error)
}
