package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

type fakeProvider struct {
	name   string
	result pricing.SearchResult
	delay  time.Duration

	mu      sync.Mutex
	queries []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, query string) pricing.SearchResult {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return pricing.Failed(p.name, fmt.Errorf("%w: %w", pricing.ErrTimeout, ctx.Err()))
		case <-time.After(p.delay):
		}
	}
	return p.result
}

func found(provider string, price any, title string) *fakeProvider {
	return &fakeProvider{name: provider, result: pricing.Found(pricing.RawCandidate{
		Provider: provider,
		Price:    price,
		URL:      "https://" + provider + ".example/item",
		Title:    title,
	})}
}

type fakeStore struct {
	mu          sync.Mutex
	products    []pricing.Product
	offers      map[string]pricing.Offer
	history     []pricing.HistoryPoint
	alerts      []pricing.PriceAlert
	deactivated []string
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{offers: map[string]pricing.Offer{}}
}

func (s *fakeStore) ListProducts(context.Context) ([]pricing.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pricing.Product(nil), s.products...), nil
}

func (s *fakeStore) GetProduct(_ context.Context, id string) (pricing.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return pricing.Product{}, pricing.ErrNotFound
}

func (s *fakeStore) GetActiveAlerts(_ context.Context, productID string) ([]pricing.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pricing.PriceAlert
	for _, a := range s.alerts {
		if a.ProductID == productID && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertOffer(_ context.Context, productID string, offer pricing.Offer, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.offers[productID+"/"+offer.Provider] = offer
	return nil
}

func (s *fakeStore) AppendHistory(_ context.Context, point pricing.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, point)
	return nil
}

func (s *fakeStore) DeactivateAlert(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Active = false
		}
	}
	s.deactivated = append(s.deactivated, alertID)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []pricing.Notification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg pricing.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type fakeBlobStore struct {
	mu    sync.Mutex
	paths []string
	data  map[string][]byte
}

func (b *fakeBlobStore) PutObject(_ context.Context, path, _ string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = map[string][]byte{}
	}
	b.paths = append(b.paths, path)
	b.data[path] = body
	return "memory://" + path, nil
}

type fakeHasher struct{ hash string }

func (h fakeHasher) Hash([]byte) (string, error) { return h.hash, nil }

type fakeIDs struct{ id string }

func (f fakeIDs) NewID() (string, error) {
	if f.id == "" {
		return "", errors.New("no id")
	}
	return f.id, nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func inr(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
