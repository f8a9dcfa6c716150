// Package server provides the HTTP endpoints of the long-running house
// manager: a dedicated Prometheus /metrics listener and health endpoints
// that reflect the outcome of the most recent read pass.
//
//	/metrics           Prometheus scrape endpoint (promhttp)
//	/healthz           liveness, always ok while the process serves
//	/readyz            readiness, 503 once the last pass failed
//	/healthz/detailed  uptime and pass statistics as JSON
package server
