package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
	queueMemory "github.com/JakeFAU/realtime-price-tracker/internal/queue/memory"
	storeMemory "github.com/JakeFAU/realtime-price-tracker/internal/storage/memory"
)

type fakeIDGen struct{ id string }

func (f fakeIDGen) NewID() (string, error) { return f.id, nil }

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestServer(t *testing.T) (*Server, *storeMemory.Store, *queueMemory.Queue) {
	t.Helper()
	ctx := context.Background()
	store := storeMemory.NewStore()
	require.NoError(t, store.AddProduct(ctx, pricing.Product{ID: "p1", Name: "MacBook Air M2", SearchQuery: "MacBook Air M2"}))
	require.NoError(t, store.UpsertOffer(ctx, "p1", pricing.Offer{
		Provider: "Amazon", Price: decimal.NewFromInt(92000), URL: "https://www.amazon.in/dp/B0X",
	}, time.Unix(100, 0)))
	require.NoError(t, store.UpsertOffer(ctx, "p1", pricing.Offer{
		Provider: "Flipkart", Price: decimal.NewFromInt(89999), URL: "https://www.flipkart.com/p",
	}, time.Unix(100, 0)))
	q := queueMemory.NewQueue(1)
	srv := NewServer(store, q, store, fakeIDGen{id: "scan-1"}, fakeClock{now: time.Unix(200, 0)}, zap.NewNop())
	return srv, store, q
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz").Code)
	rec := serve(srv, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	down := NewServer(storeMemory.NewStore(), queueMemory.NewQueue(1), failingPinger{}, fakeIDGen{}, fakeClock{}, nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz").Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	serve(srv, http.MethodGet, "/healthz")
	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_ScanEnqueues(t *testing.T) {
	t.Parallel()

	srv, _, q := newTestServer(t)
	rec := serve(srv, http.MethodPost, "/v1/products/p1/scan")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "scan-1")

	req, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "p1", req.ProductID)
	require.Equal(t, time.Unix(200, 0), req.RequestedAt)
}

func TestServer_ScanUnknownProduct(t *testing.T) {
	t.Parallel()

	srv, _, q := newTestServer(t)
	rec := serve(srv, http.MethodPost, "/v1/products/nope/scan")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, q.Len())
}

func TestServer_ScanQueueClosed(t *testing.T) {
	t.Parallel()

	srv, _, q := newTestServer(t)
	q.Close()
	rec := serve(srv, http.MethodPost, "/v1/products/p1/scan")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_GetProductShowsBestOffer(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := serve(srv, http.MethodGet, "/v1/products/p1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Product pricing.Product       `json:"product"`
		Offers  []pricing.StoredOffer `json:"offers"`
		Best    *pricing.StoredOffer  `json:"best_offer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "MacBook Air M2", body.Product.Name)
	require.Len(t, body.Offers, 2)
	require.NotNil(t, body.Best)
	require.Equal(t, "Flipkart", body.Best.Provider)
}

func TestServer_ListProducts(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := serve(srv, http.MethodGet, "/v1/products")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"p1"`)
}
