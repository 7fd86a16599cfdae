// Package aggregate rejects irrelevant and anomalous offers before they are persisted.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Reason names why a candidate was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonLowMatch       Reason = "low_match"
	ReasonBelowFloor     Reason = "below_category_floor"
	ReasonBandLowMatch   Reason = "band_low_match"
	ReasonBelowBand      Reason = "below_band"
	ReasonAboveBand      Reason = "above_band"
	ReasonSingleLowMatch Reason = "single_low_match"
)

// Thresholds used by the filter.
const (
	MinAdmitScore  = 0.2
	MinPeerScore   = 0.4
	MinSingleScore = 0.5
)

var (
	bandLow  = decimal.NewFromFloat(0.2)
	bandHigh = decimal.NewFromInt(5)
	two      = decimal.NewFromInt(2)
)

// Rejection records a filtered-out offer.
type Rejection struct {
	Offer  pricing.Offer
	Reason Reason
}

// Result is the outcome of one aggregation.
type Result struct {
	Accepted []pricing.Offer
	Rejected []Rejection
	// Median is set when the peer comparison ran.
	Median decimal.Decimal
}

// Aggregator applies the relevance pre-filter and the cross-provider anomaly band.
type Aggregator struct {
	floors CategoryFloors
	logger *zap.Logger
}

// New constructs an Aggregator.
func New(floors CategoryFloors, logger *zap.Logger) *Aggregator {
	return &Aggregator{floors: floors, logger: logging.OrNop(logger).Named("aggregate")}
}

// Admit is the hard pre-filter applied to each candidate as it is gathered.
func (a *Aggregator) Admit(query string, offer pricing.Offer) (Reason, bool) {
	if offer.MatchScore < MinAdmitScore {
		return ReasonLowMatch, false
	}
	if offer.Price.LessThan(a.floors.For(query)) {
		return ReasonBelowFloor, false
	}
	return "", true
}

// Aggregate admits, deduplicates and filters the scored candidates of one cycle.
func (a *Aggregator) Aggregate(query string, candidates []pricing.Offer) Result {
	var (
		admitted []pricing.Offer
		rejected []Rejection
	)
	for _, offer := range candidates {
		if reason, ok := a.Admit(query, offer); !ok {
			rejected = append(rejected, a.reject(offer, reason, zap.String("query", query)))
			continue
		}
		admitted = append(admitted, offer)
	}

	res := a.Filter(dedupeByProvider(admitted))
	res.Rejected = append(rejected, res.Rejected...)
	for _, offer := range res.Accepted {
		metrics.ObserveAccepted(offer.Provider)
	}
	return res
}

// Filter is the statistical stage. It assumes candidates were already admitted.
func (a *Aggregator) Filter(candidates []pricing.Offer) Result {
	switch len(candidates) {
	case 0:
		return Result{}
	case 1:
		only := candidates[0]
		if only.MatchScore >= MinSingleScore {
			return Result{Accepted: []pricing.Offer{only}}
		}
		return Result{Rejected: []Rejection{a.reject(only, ReasonSingleLowMatch)}}
	}

	median := Median(candidates)
	floor := median.Mul(bandLow)
	ceiling := median.Mul(bandHigh)
	a.logger.Debug("anomaly band",
		zap.Stringer("median", median), zap.Stringer("floor", floor), zap.Stringer("ceiling", ceiling))

	res := Result{Median: median}
	for _, offer := range candidates {
		switch {
		case offer.MatchScore < MinPeerScore:
			res.Rejected = append(res.Rejected, a.reject(offer, ReasonBandLowMatch))
		case offer.Price.LessThan(floor):
			res.Rejected = append(res.Rejected, a.reject(offer, ReasonBelowBand, zap.Stringer("floor", floor)))
		case offer.Price.GreaterThan(ceiling):
			res.Rejected = append(res.Rejected, a.reject(offer, ReasonAboveBand, zap.Stringer("ceiling", ceiling)))
		default:
			res.Accepted = append(res.Accepted, offer)
		}
	}
	return res
}

// Median returns the median price of offers, averaging the middle pair for even counts.
func Median(offers []pricing.Offer) decimal.Decimal {
	if len(offers) == 0 {
		return decimal.Zero
	}
	prices := make([]decimal.Decimal, len(offers))
	for i, o := range offers {
		prices[i] = o.Price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return prices[mid-1].Add(prices[mid]).Div(two)
}

func (a *Aggregator) reject(offer pricing.Offer, reason Reason, fields ...zap.Field) Rejection {
	metrics.ObserveRejected(string(reason))
	a.logger.Info("rejected offer", append([]zap.Field{
		zap.String("provider", offer.Provider),
		zap.String("reason", string(reason)),
		zap.Stringer("price", offer.Price),
		zap.Float64("score", offer.MatchScore),
		zap.String("title", offer.Title),
	}, fields...)...)
	return Rejection{Offer: offer, Reason: reason}
}

// dedupeByProvider keeps one offer per provider; a later offer replaces an earlier one in place.
func dedupeByProvider(offers []pricing.Offer) []pricing.Offer {
	index := make(map[string]int, len(offers))
	out := make([]pricing.Offer, 0, len(offers))
	for _, o := range offers {
		if i, ok := index[o.Provider]; ok {
			out[i] = o
			continue
		}
		index[o.Provider] = len(out)
		out = append(out, o)
	}
	return out
}
