// Package pubsub publishes alert notifications as Pub/Sub events for a downstream mailer.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Event is the JSON payload published for each notification.
type Event struct {
	Type        string `json:"type"`
	AlertID     string `json:"alert_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Price       string `json:"price"`
	Threshold   string `json:"threshold"`
	OfferURL    string `json:"offer_url"`
}

// Notifier publishes to one topic. Send returns once the server acknowledged the message.
type Notifier struct {
	topic *pubsub.Topic
}

// New wraps a topic handle.
func New(topic *pubsub.Topic) (*Notifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is required")
	}
	return &Notifier{topic: topic}, nil
}

// Send publishes n and waits for the server id.
func (p *Notifier) Send(ctx context.Context, n pricing.Notification) error {
	data, err := json.Marshal(Event{
		Type:        "price_alert",
		AlertID:     n.AlertID,
		ProductID:   n.ProductID,
		ProductName: n.ProductName,
		Recipient:   n.Recipient,
		Subject:     n.Subject,
		Body:        n.Body,
		Price:       n.Price.String(),
		Threshold:   n.Threshold.String(),
		OfferURL:    n.OfferURL,
	})
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":       "price_alert",
			"alert_id":   n.AlertID,
			"product_id": n.ProductID,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish alert event: %w", err)
	}
	return nil
}

// Stop flushes pending publishes.
func (p *Notifier) Stop() {
	p.topic.Stop()
}
