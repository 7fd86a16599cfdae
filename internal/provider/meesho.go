package provider

import (
	"context"
	"net/url"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	meeshoName     = "Meesho"
	meeshoOrigin   = "https://www.meesho.com"
	meeshoEndpoint = meeshoOrigin + "/search"
)

// Meesho reads the Next.js data blob on the search page.
type Meesho struct {
	base
}

// NewMeesho constructs the Meesho adapter.
func NewMeesho(loader pricing.PageLoader, opts ...Option) *Meesho {
	return &Meesho{base: newBase(meeshoName, meeshoOrigin, meeshoEndpoint, loader, opts)}
}

// Search returns the first product of the first catalog that has any.
func (m *Meesho) Search(ctx context.Context, query string) pricing.SearchResult {
	return m.guard(query, func() pricing.SearchResult {
		resp, err := m.load(ctx, pricing.FetchRequest{
			URL:         m.endpoint,
			Params:      url.Values{"q": {query}},
			AllowRender: true,
		})
		if err != nil {
			return pricing.Failed(m.name, err)
		}
		doc, err := document(resp)
		if err != nil {
			return m.parseError(resp, err)
		}
		state, err := scriptState(doc, "script#__NEXT_DATA__")
		if err != nil {
			return m.parseError(resp, err)
		}
		catalogs, ok := digList(state, "props", "pageProps", "initialState", "catalogs", "catalogs")
		if !ok {
			return m.parseError(resp, errStateNotFound)
		}
		for _, catalog := range catalogs {
			product, ok := dig(catalog, "products", 0)
			if !ok {
				continue
			}
			return pricing.Found(pricing.RawCandidate{
				Provider: m.name,
				Price:    priceValue(product, "price"),
				URL:      m.origin + "/s/p/" + digString(product, "slug"),
				Title:    digString(product, "name"),
			})
		}
		return m.noCandidate("no catalog had products")
	})
}
