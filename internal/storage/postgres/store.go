// Package postgres provides the Postgres-backed pricing.Store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

//go:embed schema.sql
var schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store persists products, offers, history and alerts.
type Store struct {
	pool querier
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AddProduct inserts or renames a product.
func (s *Store) AddProduct(ctx context.Context, p pricing.Product) error {
	const q = `
INSERT INTO products (id, name, search_query, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, search_query = EXCLUDED.search_query`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.SearchQuery, createdAt); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// AddAlert inserts an alert.
func (s *Store) AddAlert(ctx context.Context, a pricing.PriceAlert) error {
	const q = `
INSERT INTO price_alerts (id, product_id, email, threshold_price, active, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6)`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, q, a.ID, a.ProductID, a.Email, a.ThresholdPrice.String(), a.Active, createdAt); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListProducts returns every product ordered by creation time.
func (s *Store) ListProducts(ctx context.Context) ([]pricing.Product, error) {
	const q = `SELECT id, name, search_query, created_at FROM products ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []pricing.Product
	for rows.Next() {
		var p pricing.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SearchQuery, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// GetProduct returns one product or pricing.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, productID string) (pricing.Product, error) {
	const q = `SELECT id, name, search_query, created_at FROM products WHERE id = $1`
	var p pricing.Product
	err := s.pool.QueryRow(ctx, q, productID).Scan(&p.ID, &p.Name, &p.SearchQuery, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Product{}, fmt.Errorf("product %s: %w", productID, pricing.ErrNotFound)
	}
	if err != nil {
		return pricing.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetActiveAlerts returns the active alerts for a product.
func (s *Store) GetActiveAlerts(ctx context.Context, productID string) ([]pricing.PriceAlert, error) {
	const q = `
SELECT id, product_id, email, threshold_price::text, active, created_at
FROM price_alerts
WHERE product_id = $1 AND active
ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []pricing.PriceAlert
	for rows.Next() {
		var (
			a         pricing.PriceAlert
			threshold string
		)
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Email, &threshold, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.ThresholdPrice, err = decimal.NewFromString(threshold); err != nil {
			return nil, fmt.Errorf("alert %s threshold %q: %w", a.ID, threshold, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// UpsertOffer creates or updates the latest offer for (product, provider) in one statement.
// An empty image URL keeps the stored one.
func (s *Store) UpsertOffer(ctx context.Context, productID string, offer pricing.Offer, scrapedAt time.Time) error {
	const q = `
INSERT INTO product_offers (product_id, provider, price, url, image_url, scraped_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6)
ON CONFLICT (product_id, provider) DO UPDATE SET
	price = EXCLUDED.price,
	url = EXCLUDED.url,
	image_url = COALESCE(NULLIF(EXCLUDED.image_url, ''), product_offers.image_url),
	scraped_at = EXCLUDED.scraped_at`
	_, err := s.pool.Exec(ctx, q, productID, offer.Provider, offer.Price.String(), offer.URL, offer.ImageURL, scrapedAt)
	if err != nil {
		return fmt.Errorf("upsert offer: %w", err)
	}
	return nil
}

// AppendHistory inserts a price observation.
func (s *Store) AppendHistory(ctx context.Context, point pricing.HistoryPoint) error {
	const q = `
INSERT INTO price_history (product_id, provider, price, recorded_at)
VALUES ($1, $2, $3::numeric, $4)`
	_, err := s.pool.Exec(ctx, q, point.ProductID, point.Provider, point.Price.String(), point.Timestamp)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// DeactivateAlert flips an active alert off. An alert that is missing or already inactive is ErrNotFound.
func (s *Store) DeactivateAlert(ctx context.Context, alertID string) error {
	const q = `UPDATE price_alerts SET active = FALSE WHERE id = $1 AND active`
	tag, err := s.pool.Exec(ctx, q, alertID)
	if err != nil {
		return fmt.Errorf("deactivate alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alertID, pricing.ErrNotFound)
	}
	return nil
}

// ListOffers returns the latest offers for a product, cheapest first.
func (s *Store) ListOffers(ctx context.Context, productID string) ([]pricing.StoredOffer, error) {
	const q = `
SELECT product_id, provider, price::text, url, image_url, scraped_at
FROM product_offers
WHERE product_id = $1
ORDER BY price`
	rows, err := s.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var out []pricing.StoredOffer
	for rows.Next() {
		var (
			o     pricing.StoredOffer
			price string
		)
		if err := rows.Scan(&o.ProductID, &o.Provider, &price, &o.URL, &o.ImageURL, &o.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("offer %s price %q: %w", o.Provider, price, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return out, nil
}
