package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryFloors maps lowercase query keywords to the minimum plausible price for that category.
type CategoryFloors struct {
	keywords []string
	floors   map[string]decimal.Decimal
}

// NewCategoryFloors builds the table. Keywords are tried longest first, then alphabetically,
// so "samsung galaxy s" beats a shorter keyword that also matches.
func NewCategoryFloors(table map[string]float64) CategoryFloors {
	c := CategoryFloors{floors: make(map[string]decimal.Decimal, len(table))}
	for k, v := range table {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		c.floors[key] = decimal.NewFromFloat(v)
		c.keywords = append(c.keywords, key)
	}
	sort.Slice(c.keywords, func(i, j int) bool {
		if len(c.keywords[i]) != len(c.keywords[j]) {
			return len(c.keywords[i]) > len(c.keywords[j])
		}
		return c.keywords[i] < c.keywords[j]
	})
	return c
}

// For returns the floor for query, or zero when no keyword is a substring of it.
func (c CategoryFloors) For(query string) decimal.Decimal {
	q := strings.ToLower(query)
	for _, k := range c.keywords {
		if strings.Contains(q, k) {
			return c.floors[k]
		}
	}
	return decimal.Zero
}
