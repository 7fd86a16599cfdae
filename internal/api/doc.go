// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/products and /v1/products/{product_id} for the catalogue and latest offers.
//   - POST /v1/products/{product_id}/scan to queue an on-demand tracking cycle.
package api
