// Package api implements the HTTP REST API and WebSocket server for Gray Latch Core.
//
// This package provides:
//   - REST endpoints for the slot table, sync operations, and access history
//   - WebSocket hub for real-time slot event broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between operator tooling and the slot repository +
// reconciler. Writes persist the desired configuration and trigger a push
// towards the lock; slot lifecycle events raised by the core are broadcast
// to WebSocket clients by the event publisher feeding the hub directly.
//
// # Security
//
// Authentication uses JWT bearer tokens signed with the configured secret.
// WebSocket connections use single-use tickets to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT — reads and WebSocket connections work,
// only operations that talk to the lock fail. This enables testing and
// partial operation.
package api
