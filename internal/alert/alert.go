// Package alert decides which price alerts an accepted offer triggers.
package alert

import (
	"fmt"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Triggered reports whether the alert fires for price. The threshold is inclusive.
func Triggered(a pricing.PriceAlert, offer pricing.Offer) bool {
	return a.Active && a.ThresholdPrice.GreaterThanOrEqual(offer.Price)
}

// Evaluate returns one notification for every active alert the offer satisfies.
func Evaluate(product pricing.Product, alerts []pricing.PriceAlert, offer pricing.Offer) []pricing.Notification {
	var out []pricing.Notification
	for _, a := range alerts {
		if a.ProductID != "" && a.ProductID != product.ID {
			continue
		}
		if !Triggered(a, offer) {
			continue
		}
		out = append(out, Compose(product, a, offer))
	}
	return out
}

// Compose renders the notification owed to the owner of a.
func Compose(product pricing.Product, a pricing.PriceAlert, offer pricing.Offer) pricing.Notification {
	price := offer.Price.String()
	threshold := a.ThresholdPrice.String()
	return pricing.Notification{
		AlertID:     a.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Recipient:   a.Email,
		Subject:     fmt.Sprintf("Price Alert: %s is now ₹%s!", product.Name, price),
		Body: fmt.Sprintf(
			"Good news! The price for %q has dropped to ₹%s on %s, which is at or below your target of ₹%s.\n\n"+
				"Grab it here: %s\n\nCheers,\nPrice Tracker",
			product.Name, price, offer.Provider, threshold, offer.URL),
		Price:     offer.Price,
		Threshold: a.ThresholdPrice,
		OfferURL:  offer.URL,
	}
}
