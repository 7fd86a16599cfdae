package provider

import (
	"context"
	"net/url"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	myntraName   = "Myntra"
	myntraOrigin = "https://www.myntra.com"
	myntraMarker = "window.__myx = "
)

// Myntra reads the search state Myntra embeds as a global assignment in the page.
type Myntra struct {
	base
}

// NewMyntra constructs the Myntra adapter.
func NewMyntra(loader pricing.PageLoader, opts ...Option) *Myntra {
	return &Myntra{base: newBase(myntraName, myntraOrigin, myntraOrigin, loader, opts)}
}

// Search returns the first product in Myntra's embedded search results.
func (m *Myntra) Search(ctx context.Context, query string) pricing.SearchResult {
	return m.guard(query, func() pricing.SearchResult {
		resp, err := m.load(ctx, pricing.FetchRequest{URL: m.endpoint + "/" + url.QueryEscape(query)})
		if err != nil {
			return pricing.Failed(m.name, err)
		}
		doc, err := document(resp)
		if err != nil {
			return m.parseError(resp, err)
		}
		state, err := assignedState(doc, myntraMarker)
		if err != nil {
			return m.parseError(resp, err)
		}
		products, ok := digList(state, "searchData", "results", "products")
		if !ok {
			return m.parseError(resp, errStateNotFound)
		}
		if len(products) == 0 {
			return m.noCandidate("empty result list")
		}

		product := products[0]
		p := priceValue(product, "price")
		if p == nil {
			p = priceValue(product, "discountedPrice")
		}
		return pricing.Found(pricing.RawCandidate{
			Provider: m.name,
			Price:    p,
			URL:      m.origin + "/" + digString(product, "landingPageUrl"),
			Title:    digString(product, "productName"),
			ImageURL: digString(product, "images", 0, "src"),
		})
	})
}
