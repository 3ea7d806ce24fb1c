// Package api provides the HTTP API and live message WebSocket for Gray Logic
// Relay.
//
// Endpoints (all under /api/v1):
//
//	GET  /health    broker connection health
//	GET  /stats     client counters and runtime statistics
//	POST /publish   publish a JSON payload (publish scope)
//	GET  /messages  archived message history (read scope)
//	GET  /ws        live message stream filtered by topic filter (stream scope)
//
// Scopes are only enforced when security.jwt.secret is set.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
