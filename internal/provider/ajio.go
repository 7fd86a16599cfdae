package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	ajioName     = "Ajio"
	ajioOrigin   = "https://www.ajio.com"
	ajioEndpoint = ajioOrigin + "/api/search/v3"
)

// Ajio queries Ajio's JSON search API.
type Ajio struct {
	base
}

// NewAjio constructs the Ajio adapter.
func NewAjio(loader pricing.PageLoader, opts ...Option) *Ajio {
	return &Ajio{base: newBase(ajioName, ajioOrigin, ajioEndpoint, loader, opts)}
}

// Search returns the first product of the API response.
func (a *Ajio) Search(ctx context.Context, query string) pricing.SearchResult {
	return a.guard(query, func() pricing.SearchResult {
		resp, err := a.load(ctx, pricing.FetchRequest{
			URL: a.endpoint,
			Params: url.Values{
				"fields":      {"SITE"},
				"currentPage": {"0"},
				"pageSize":    {"45"},
				"format":      {"json"},
				"query":       {query},
				"sortBy":      {"relevance"},
			},
			Headers: http.Header{"Accept": {"application/json"}},
		})
		if err != nil {
			return pricing.Failed(a.name, err)
		}
		var payload any
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return a.parseError(resp, fmt.Errorf("decode search response: %w", err))
		}
		products, ok := digList(payload, "products")
		if !ok {
			return a.parseError(resp, errStateNotFound)
		}
		if len(products) == 0 {
			return a.noCandidate("empty result list")
		}

		product := products[0]
		link := digString(product, "url")
		if link == "" {
			return a.noCandidate("first product has no url")
		}
		return pricing.Found(pricing.RawCandidate{
			Provider: a.name,
			Price:    priceValue(product, "price", "value"),
			URL:      a.origin + link,
			Title:    digString(product, "name"),
		})
	})
}
