package provider

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	flipkartName     = "Flipkart"
	flipkartOrigin   = "https://www.flipkart.com"
	flipkartEndpoint = flipkartOrigin + "/search"
	flipkartMaxCards = 40
	brandBonus       = 50
	wordBonus        = 5
)

const flipkartProductLink = `a[href*="/p/"]`

var flipkartContainers = []containerStrategy{
	{name: "data-id", find: func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div[data-id]")
	}},
	{name: "product-link-parent", find: func(doc *goquery.Document) *goquery.Selection {
		cards := doc.Selection.Slice(0, 0)
		doc.Find(flipkartProductLink).Each(func(_ int, link *goquery.Selection) {
			// AddSelection drops nodes already present.
			cards = cards.AddSelection(link.ParentsFiltered("div").First())
		})
		return cards
	}},
}

var flipkartTitle = chain{
	text(`div[class*="_4rR01T"], div[class*="s1Q9rs"], div[class*="IRpwTa"]`),
	attr("img[alt]", "alt"),
	text(flipkartProductLink),
}

var flipkartPrice = chain{
	price(text(`div[class*="_30jeq3"]`)),
	price(pattern(rupeeAmount)),
}

var flipkartImage = chain{attr("img[src]", "src")}

// Flipkart searches flipkart.com and ranks the first cards by brand and word overlap,
// since ads routinely push the real product down the grid.
type Flipkart struct {
	base
}

// NewFlipkart constructs the Flipkart adapter.
func NewFlipkart(loader pricing.PageLoader, opts ...Option) *Flipkart {
	return &Flipkart{base: newBase(flipkartName, flipkartOrigin, flipkartEndpoint, loader, opts)}
}

// Search returns the best-ranked card for query.
func (f *Flipkart) Search(ctx context.Context, query string) pricing.SearchResult {
	return f.guard(query, func() pricing.SearchResult {
		resp, err := f.load(ctx, pricing.FetchRequest{
			URL:         f.endpoint,
			Params:      url.Values{"q": {query}},
			AllowRender: true,
		})
		if err != nil {
			return pricing.Failed(f.name, err)
		}
		doc, err := document(resp)
		if err != nil {
			return f.parseError(resp, err)
		}
		cards, _ := firstContainers(doc, flipkartContainers)
		if cards == nil {
			return f.parseError(resp, errors.New("no product cards matched"))
		}

		candidates := f.candidates(cards)
		if len(candidates) == 0 {
			return f.noCandidate("no card had a title, price and link")
		}
		return pricing.Found(bestByOverlap(query, candidates))
	})
}

func (f *Flipkart) candidates(cards *goquery.Selection) []pricing.RawCandidate {
	if cards.Length() > flipkartMaxCards {
		cards = cards.Slice(0, flipkartMaxCards)
	}
	var out []pricing.RawCandidate
	cards.Each(func(_ int, card *goquery.Selection) {
		title := flipkartTitle.first(card)
		if title == "" {
			return
		}
		priceText := flipkartPrice.first(card)
		if priceText == "" {
			return
		}
		href, _ := card.Find(flipkartProductLink).First().Attr("href")
		link := absoluteURL(f.origin, href, "?")
		if link == "" {
			return
		}
		out = append(out, pricing.RawCandidate{
			Provider: f.name,
			Price:    priceText,
			URL:      link,
			Title:    title,
			ImageURL: flipkartImage.first(card),
		})
	})
	return out
}

// bestByOverlap scores each candidate +50 when the title contains the query's first word
// and +5 per query word it contains. Ties keep the earlier candidate.
func bestByOverlap(query string, candidates []pricing.RawCandidate) pricing.RawCandidate {
	words := strings.Fields(strings.ToLower(query))
	best, bestScore := candidates[0], -1
	for _, c := range candidates {
		title := strings.ToLower(c.Title)
		score := 0
		if len(words) > 0 && strings.Contains(title, words[0]) {
			score += brandBonus
		}
		for _, w := range words {
			if strings.Contains(title, w) {
				score += wordBonus
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
