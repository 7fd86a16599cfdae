package pricing

import "sort"

// BestOffer returns the lowest-priced offer, or false when offers is empty.
func BestOffer(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best, true
}

// SortByPrice returns a copy of offers ordered by price. Ties keep their input order.
func SortByPrice(offers []Offer, ascending bool) []Offer {
	out := make([]Offer, len(offers))
	copy(out, offers)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Price.GreaterThan(out[j].Price)
	})
	return out
}
