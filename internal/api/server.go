package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-price-tracker/internal/logging"
	"github.com/JakeFAU/realtime-price-tracker/internal/metrics"
	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Catalog is the read side of the store the API needs.
type Catalog interface {
	ListProducts(ctx context.Context) ([]pricing.Product, error)
	GetProduct(ctx context.Context, productID string) (pricing.Product, error)
	ListOffers(ctx context.Context, productID string) ([]pricing.StoredOffer, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Enqueuer accepts scan requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, req pricing.ScanRequest) error
}

// Server wires HTTP handlers to the catalogue and the scan queue.
type Server struct {
	router  chi.Router
	catalog Catalog
	scans   Enqueuer
	ready   Pinger
	idGen   pricing.IDGenerator
	clock   pricing.Clock
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(
	catalog Catalog,
	scans Enqueuer,
	ready Pinger,
	idGen pricing.IDGenerator,
	clock pricing.Clock,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog: catalog,
		scans:   scans,
		ready:   ready,
		idGen:   idGen,
		clock:   clock,
		logger:  logging.OrNop(logger),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Route("/{product_id}", func(r chi.Router) {
			r.Get("/", s.getProduct)
			r.Post("/scan", s.scanProduct)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.logger.Error("list products failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []pricing.Product{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

type productResponse struct {
	Product pricing.Product       `json:"product"`
	Offers  []pricing.StoredOffer `json:"offers"`
	Best    *pricing.StoredOffer  `json:"best_offer,omitempty"`
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	product, ok := s.lookupProduct(w, r, productID)
	if !ok {
		return
	}
	offers, err := s.catalog.ListOffers(r.Context(), productID)
	if err != nil {
		s.logger.Error("list offers failed", zap.String("product_id", productID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}
	resp := productResponse{Product: product, Offers: offers}
	if resp.Offers == nil {
		resp.Offers = []pricing.StoredOffer{}
	}
	for i := range offers {
		if resp.Best == nil || offers[i].Price.LessThan(resp.Best.Price) {
			resp.Best = &offers[i]
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) scanProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if _, ok := s.lookupProduct(w, r, productID); !ok {
		return
	}
	scanID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate scan id")
		return
	}
	req := pricing.ScanRequest{ID: scanID, ProductID: productID, RequestedAt: s.clock.Now()}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.scans.Enqueue(ctx, req); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("enqueue scan failed", zap.String("product_id", productID), zap.Error(err))
		s.writeError(w, status, "scan queue unavailable")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": scanID, "product_id": productID})
}

func (s *Server) lookupProduct(w http.ResponseWriter, r *http.Request, productID string) (pricing.Product, bool) {
	product, err := s.catalog.GetProduct(r.Context(), productID)
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "product not found")
		return pricing.Product{}, false
	case err != nil:
		s.logger.Error("get product failed", zap.String("product_id", productID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load product")
		return pricing.Product{}, false
	}
	return product, true
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
