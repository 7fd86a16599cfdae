// Package normalize validates raw provider candidates into canonical offers.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Normalize coerces a raw candidate into an Offer. It is pure: the same input always
// yields the same Offer, and every rejection wraps pricing.ErrValidation.
// MatchScore is left at zero for the matcher to fill in.
func Normalize(raw pricing.RawCandidate) (pricing.Offer, error) {
	provider := strings.TrimSpace(raw.Provider)
	if provider == "" {
		return pricing.Offer{}, fmt.Errorf("%w: missing provider", pricing.ErrValidation)
	}

	price, err := Price(raw.Price)
	if err != nil {
		return pricing.Offer{}, err
	}

	link := strings.TrimSpace(raw.URL)
	if !isHTTPURL(link) {
		return pricing.Offer{}, fmt.Errorf("%w: url %q is not an absolute http(s) url", pricing.ErrValidation, raw.URL)
	}

	return pricing.Offer{
		Provider: provider,
		Price:    price,
		URL:      link,
		Title:    strings.TrimSpace(raw.Title),
		ImageURL: strings.TrimSpace(raw.ImageURL),
	}, nil
}

// Price converts a loosely typed price into a positive decimal.
func Price(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch p := v.(type) {
	case nil:
		return decimal.Decimal{}, fmt.Errorf("%w: missing price", pricing.ErrValidation)
	case decimal.Decimal:
		d = p
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(p))
	case json.Number:
		d, err = decimal.NewFromString(p.String())
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: price %v is not finite", pricing.ErrValidation, p)
		}
		d = decimal.NewFromFloat(p)
	case float32:
		return Price(float64(p))
	case int:
		d = decimal.NewFromInt(int64(p))
	case int64:
		d = decimal.NewFromInt(p)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported price type %T", pricing.ErrValidation, v)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %v: %w", pricing.ErrValidation, v, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: price %s is not positive", pricing.ErrValidation, d)
	}
	return d, nil
}

func isHTTPURL(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}
