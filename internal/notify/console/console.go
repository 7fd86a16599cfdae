// Package console "delivers" notifications by logging them.
package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Notifier writes each notification to the logger and always succeeds.
type Notifier struct {
	logger *zap.Logger
}

// New constructs a Notifier.
func New(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logging.OrNop(logger).Named("notify")}
}

// Send logs n.
func (n *Notifier) Send(_ context.Context, msg pricing.Notification) error {
	n.logger.Info(msg.Subject,
		zap.String("alert_id", msg.AlertID),
		zap.String("product_id", msg.ProductID),
		zap.String("recipient", msg.Recipient),
		zap.Stringer("price", msg.Price),
		zap.Stringer("threshold", msg.Threshold),
		zap.String("url", msg.OfferURL),
	)
	return nil
}
