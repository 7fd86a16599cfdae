package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Store is an in-memory pricing.Store for development and tests.
type Store struct {
	mu       sync.RWMutex
	products map[string]pricing.Product
	offers   map[string]map[string]pricing.StoredOffer
	history  map[string][]pricing.HistoryPoint
	alerts   map[string]pricing.PriceAlert
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]pricing.Product),
		offers:   make(map[string]map[string]pricing.StoredOffer),
		history:  make(map[string][]pricing.HistoryPoint),
		alerts:   make(map[string]pricing.PriceAlert),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// AddProduct inserts or replaces a product.
func (s *Store) AddProduct(_ context.Context, p pricing.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// AddAlert inserts or replaces an alert.
func (s *Store) AddAlert(_ context.Context, a pricing.PriceAlert) error {
	if a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

// ListProducts returns products ordered by creation time, then ID.
func (s *Store) ListProducts(context.Context) ([]pricing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pricing.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetProduct returns a product or pricing.ErrNotFound.
func (s *Store) GetProduct(_ context.Context, productID string) (pricing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return pricing.Product{}, fmt.Errorf("product %s: %w", productID, pricing.ErrNotFound)
	}
	return p, nil
}

// GetActiveAlerts returns the active alerts for a product ordered by creation time.
func (s *Store) GetActiveAlerts(_ context.Context, productID string) ([]pricing.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pricing.PriceAlert
	for _, a := range s.alerts {
		if a.ProductID == productID && a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertOffer creates or updates the offer keyed by product and provider.
// An empty image URL keeps the stored one.
func (s *Store) UpsertOffer(_ context.Context, productID string, offer pricing.Offer, scrapedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byProvider, ok := s.offers[productID]
	if !ok {
		byProvider = make(map[string]pricing.StoredOffer)
		s.offers[productID] = byProvider
	}
	stored := pricing.StoredOffer{
		ProductID: productID,
		Provider:  offer.Provider,
		Price:     offer.Price,
		URL:       offer.URL,
		ImageURL:  offer.ImageURL,
		ScrapedAt: scrapedAt,
	}
	if prev, ok := byProvider[offer.Provider]; ok && stored.ImageURL == "" {
		stored.ImageURL = prev.ImageURL
	}
	byProvider[offer.Provider] = stored
	return nil
}

// AppendHistory records a price observation.
func (s *Store) AppendHistory(_ context.Context, point pricing.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[point.ProductID] = append(s.history[point.ProductID], point)
	return nil
}

// DeactivateAlert marks an alert inactive.
func (s *Store) DeactivateAlert(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alertID, pricing.ErrNotFound)
	}
	a.Active = false
	s.alerts[alertID] = a
	return nil
}

// ListOffers returns the latest offers for a product ordered by price.
func (s *Store) ListOffers(_ context.Context, productID string) ([]pricing.StoredOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pricing.StoredOffer, 0, len(s.offers[productID]))
	for _, o := range s.offers[productID] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

// History returns the recorded price points for a product in insertion order.
func (s *Store) History(_ context.Context, productID string) ([]pricing.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pricing.HistoryPoint(nil), s.history[productID]...), nil
}
