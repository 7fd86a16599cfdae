package provider

import (
	"context"
	"errors"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	amazonName     = "Amazon"
	amazonOrigin   = "https://www.amazon.in"
	amazonEndpoint = amazonOrigin + "/s"
)

var (
	sponsoredLabel = regexp.MustCompile(`(?i)sponsored`)
	productPath    = regexp.MustCompile(`/dp/|/gp/`)
)

var amazonContainers = []containerStrategy{
	{name: "search-result", find: func(doc *goquery.Document) *goquery.Selection {
		results := doc.Find(`div[data-component-type="s-search-result"]`)
		organic := results.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("span").FilterFunction(func(_ int, span *goquery.Selection) bool {
				return sponsoredLabel.MatchString(span.Text())
			}).Length() == 0
		})
		if organic.Length() > 0 {
			return organic.First()
		}
		return results.First()
	}},
	{name: "result-item", find: func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(`div[class*="s-result-item"]`).First()
	}},
	{name: "asin", find: func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(`div[data-asin]`).First()
	}},
}

const amazonHeading = `h2[class*="a-size-mini"], h2[class*="a-size-base"]`

var amazonPrice = chain{
	price(text("span.a-price-whole")),
	price(text("span.a-offscreen")),
	childPrice(`span[class*="a-price"]`, "span"),
	price(pattern(rupeeAmount)),
}

var amazonHref = chain{
	func(sel *goquery.Selection) string {
		return attr("a[href]", "href")(sel.Find(amazonHeading).First())
	},
	func(sel *goquery.Selection) string {
		href, _ := sel.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			h, _ := a.Attr("href")
			return productPath.MatchString(h)
		}).First().Attr("href")
		return href
	},
}

var amazonTitle = chain{
	func(sel *goquery.Selection) string {
		return text("span")(sel.Find(amazonHeading).First())
	},
	text(amazonHeading),
}

var amazonImage = chain{attr("img.s-image", "src")}

// Amazon searches amazon.in result pages, falling back to the browser when blocked.
type Amazon struct {
	base
}

// NewAmazon constructs the Amazon adapter.
func NewAmazon(loader pricing.PageLoader, opts ...Option) *Amazon {
	return &Amazon{base: newBase(amazonName, amazonOrigin, amazonEndpoint, loader, opts)}
}

// Search returns the first organic result for query.
func (a *Amazon) Search(ctx context.Context, query string) pricing.SearchResult {
	return a.guard(query, func() pricing.SearchResult {
		resp, err := a.load(ctx, pricing.FetchRequest{
			URL:         a.endpoint,
			Params:      url.Values{"k": {query}},
			AllowRender: true,
		})
		if err != nil {
			return pricing.Failed(a.name, err)
		}
		doc, err := document(resp)
		if err != nil {
			return a.parseError(resp, err)
		}
		product, _ := firstContainers(doc, amazonContainers)
		if product == nil {
			return a.parseError(resp, errors.New("no result container matched"))
		}

		priceText := amazonPrice.first(product)
		if priceText == "" {
			return a.noCandidate("first result has no price")
		}
		link := a.productURL(amazonHref.first(product))
		if link == "" {
			return a.noCandidate("first result has no product link")
		}
		title := amazonTitle.first(product)
		if title == "" {
			title = query
		}
		return pricing.Found(pricing.RawCandidate{
			Provider: a.name,
			Price:    priceText,
			URL:      link,
			Title:    title,
			ImageURL: amazonImage.first(product),
		})
	})
}

// productURL drops Amazon's /ref tracking suffix.
func (a *Amazon) productURL(href string) string {
	return absoluteURL(a.origin, href, "/ref")
}
