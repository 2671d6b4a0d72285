// Package api implements the HTTP REST API and WebSocket server for Workbench.
//
// This package provides:
//   - REST endpoints for the printer registry under /api/v1/printers
//   - A WebSocket hub that pushes printer lifecycle events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Prometheus exposition at /metrics and JSON system metrics
//
// # Architecture
//
// Handlers are thin: they decode JSON, call printer.Manager and map domain
// errors to status codes in writeDomainError. The manager owns every state
// transition, so handlers never touch the repository directly.
//
// # Security
//
// Login checks the configured admin account and issues a short-lived HS256
// token. Browsers cannot set headers on a WebSocket upgrade, so the socket
// authenticates with a single-use ticket obtained over the REST API instead.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and mDNS discovery are optional. When absent the matching
// metrics report disconnected and /printers/discover answers 503.
package api
