// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to trigger an ingestion run (reset=true wipes the store first).
//   - GET /v1/status, /v1/documents and /v1/enrichments to inspect what was ingested.
package api
