// Package pricing defines the core types shared across the price tracking pipeline.
package pricing

import (
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tracked item and the search term used against every provider.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SearchQuery string    `json:"search_query"`
	CreatedAt   time.Time `json:"created_at"`
}

// RawCandidate is the loosely-typed record a provider adapter extracts from a search page.
// Price may be a string, a number, or a decimal; nothing here has been validated.
type RawCandidate struct {
	Provider string
	Price    any
	URL      string
	Title    string
	ImageURL string
}

// Offer is a validated, scored candidate.
type Offer struct {
	Provider   string          `json:"provider"`
	Price      decimal.Decimal `json:"price"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	ImageURL   string          `json:"image_url,omitempty"`
	MatchScore float64         `json:"match_score"`
}

// StoredOffer is the persisted latest offer for a product on one provider.
type StoredOffer struct {
	ProductID string          `json:"product_id"`
	Provider  string          `json:"provider"`
	Price     decimal.Decimal `json:"price"`
	URL       string          `json:"url"`
	ImageURL  string          `json:"image_url,omitempty"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

// HistoryPoint is an append-only price observation.
type HistoryPoint struct {
	ProductID string          `json:"product_id"`
	Provider  string          `json:"provider"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceAlert asks for a notification once any provider offers the product at or below ThresholdPrice.
type PriceAlert struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Email          string          `json:"email"`
	ThresholdPrice decimal.Decimal `json:"threshold_price"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Notification is a message owed to an alert owner.
type Notification struct {
	AlertID     string          `json:"alert_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Recipient   string          `json:"recipient"`
	Subject     string          `json:"subject"`
	Body        string          `json:"body"`
	Price       decimal.Decimal `json:"price"`
	Threshold   decimal.Decimal `json:"threshold"`
	OfferURL    string          `json:"offer_url"`
}

// FetchRequest captures everything needed to fetch a provider page.
type FetchRequest struct {
	URL        string
	Params     url.Values
	Headers    http.Header
	MaxRetries int
	// AllowRender lets the page loader escalate to the browser render fallback.
	AllowRender bool
}

// FullURL returns the request URL with Params encoded into its query string.
func (r FetchRequest) FullURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	q := u.Query()
	for key, values := range r.Params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchResponse is the result returned by a Fetcher or Renderer.
type FetchResponse struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Outcome classifies what a provider search produced.
type Outcome string

// Provider outcomes.
const (
	OutcomeFound       Outcome = "found"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeFailed      Outcome = "failed"
)

// SearchResult keeps "found nothing" and "crashed" distinguishable.
type SearchResult struct {
	Provider  string
	Candidate *RawCandidate
	Outcome   Outcome
	Err       error
}

// Found wraps a candidate produced by a provider.
func Found(candidate RawCandidate) SearchResult {
	return SearchResult{Provider: candidate.Provider, Candidate: &candidate, Outcome: OutcomeFound}
}

// NoCandidate reports a search that completed without a usable result.
func NoCandidate(provider string, err error) SearchResult {
	if err == nil {
		err = ErrNoCandidate
	}
	return SearchResult{Provider: provider, Outcome: OutcomeNoCandidate, Err: err}
}

// Failed reports a search that could not complete.
func Failed(provider string, err error) SearchResult {
	return SearchResult{Provider: provider, Outcome: OutcomeFailed, Err: err}
}

// ScanRequest asks a worker to run one tracking cycle for a product.
type ScanRequest struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	RequestedAt time.Time `json:"requested_at"`
}
