package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

func offer(provider string, price int64, score float64) pricing.Offer {
	return pricing.Offer{
		Provider:   provider,
		Price:      decimal.NewFromInt(price),
		URL:        "https://" + provider + ".example/p",
		Title:      provider + " listing",
		MatchScore: score,
	}
}

func defaultFloors() CategoryFloors {
	return NewCategoryFloors(map[string]float64{
		"macbook":          40000,
		"laptop":           15000,
		"iphone":           30000,
		"ipad":             20000,
		"samsung galaxy s": 30000,
	})
}

func TestCategoryFloorsFor(t *testing.T) {
	t.Parallel()

	floors := defaultFloors()
	tests := []struct {
		query string
		want  int64
	}{
		{"MacBook Air M2", 40000},
		{"iPhone 15", 30000},
		{"Samsung Galaxy S24 Ultra", 30000},
		{"gaming laptop", 15000},
		{"iPad mini", 20000},
		{"USB-C cable", 0},
	}
	for _, tt := range tests {
		require.Truef(t, floors.For(tt.query).Equal(decimal.NewFromInt(tt.want)),
			"For(%q) = %s, want %d", tt.query, floors.For(tt.query), tt.want)
	}
}

func TestCategoryFloorsLongestKeywordWins(t *testing.T) {
	t.Parallel()

	floors := NewCategoryFloors(map[string]float64{"pro": 100, "macbook pro": 90000})
	require.True(t, floors.For("macbook pro 14").Equal(decimal.NewFromInt(90000)))
}

func TestAdmit(t *testing.T) {
	t.Parallel()

	agg := New(defaultFloors(), nil)

	reason, ok := agg.Admit("iPhone 15", offer("A", 2000, 1))
	require.False(t, ok)
	require.Equal(t, ReasonBelowFloor, reason)

	reason, ok = agg.Admit("iPhone 15", offer("A", 70000, 0.19))
	require.False(t, ok)
	require.Equal(t, ReasonLowMatch, reason)

	_, ok = agg.Admit("iPhone 15", offer("A", 70000, 0.2))
	require.True(t, ok)

	_, ok = agg.Admit("phone case", offer("A", 199, 0.9))
	require.True(t, ok)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	require.True(t, Median(nil).IsZero())
	require.True(t, Median([]pricing.Offer{offer("A", 7, 1)}).Equal(decimal.NewFromInt(7)))
	even := []pricing.Offer{offer("A", 5000, 1), offer("B", 100, 1), offer("C", 110, 1), offer("D", 105, 1)}
	require.True(t, Median(even).Equal(decimal.NewFromFloat(107.5)), "got %s", Median(even))
}

func TestFilterRejectsOutliers(t *testing.T) {
	t.Parallel()

	agg := New(CategoryFloors{}, nil)
	res := agg.Filter([]pricing.Offer{
		offer("A", 100, 0.9),
		offer("B", 105, 0.9),
		offer("C", 110, 0.9),
		offer("D", 5000, 0.9),
	})

	require.True(t, res.Median.Equal(decimal.NewFromFloat(107.5)))
	require.Len(t, res.Accepted, 3)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, "D", res.Rejected[0].Offer.Provider)
	require.Equal(t, ReasonAboveBand, res.Rejected[0].Reason)
}

func TestFilterBandEdges(t *testing.T) {
	t.Parallel()

	agg := New(CategoryFloors{}, nil)
	// median 1000: band is [200, 5000] inclusive
	res := agg.Filter([]pricing.Offer{
		offer("A", 200, 0.9),
		offer("B", 1000, 0.9),
		offer("C", 5000, 0.9),
	})
	require.Len(t, res.Accepted, 3)

	res = agg.Filter([]pricing.Offer{
		offer("A", 199, 0.9),
		offer("B", 1000, 0.9),
		offer("C", 1000, 0.39),
	})
	require.Len(t, res.Accepted, 1)
	require.Equal(t, "B", res.Accepted[0].Provider)
	reasons := map[string]Reason{}
	for _, r := range res.Rejected {
		reasons[r.Offer.Provider] = r.Reason
	}
	require.Equal(t, ReasonBelowBand, reasons["A"])
	require.Equal(t, ReasonBandLowMatch, reasons["C"])
}

func TestFilterSingleCandidate(t *testing.T) {
	t.Parallel()

	agg := New(CategoryFloors{}, nil)

	res := agg.Filter([]pricing.Offer{offer("A", 100, 0.45)})
	require.Empty(t, res.Accepted)
	require.Equal(t, ReasonSingleLowMatch, res.Rejected[0].Reason)

	res = agg.Filter([]pricing.Offer{offer("A", 100, 0.5)})
	require.Len(t, res.Accepted, 1)

	require.Empty(t, agg.Filter(nil).Accepted)
}

func TestAggregateEndToEnd(t *testing.T) {
	t.Parallel()

	agg := New(defaultFloors(), nil)
	res := agg.Aggregate("MacBook Air M2", []pricing.Offer{
		offer("A", 92000, 0.9),
		offer("B", 1500, 0.2),
		offer("C", 95000, 0.85),
	})

	require.Len(t, res.Accepted, 2)
	require.Equal(t, "A", res.Accepted[0].Provider)
	require.Equal(t, "C", res.Accepted[1].Provider)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, ReasonBelowFloor, res.Rejected[0].Reason)
}

func TestAggregateDedupesByProvider(t *testing.T) {
	t.Parallel()

	agg := New(CategoryFloors{}, nil)
	res := agg.Aggregate("widget", []pricing.Offer{
		offer("A", 100, 0.9),
		offer("B", 110, 0.9),
		offer("A", 105, 0.9),
	})

	require.Len(t, res.Accepted, 2)
	require.Equal(t, "A", res.Accepted[0].Provider)
	require.True(t, res.Accepted[0].Price.Equal(decimal.NewFromInt(105)))
}
