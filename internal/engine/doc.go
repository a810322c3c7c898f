// Package engine provides the HTTP gateway to the remote computation engine.
//
// # Overview
//
// The engine owns every geometry-dependent derived value (zone grids,
// standard-zone placement, lamp aim) and the authoritative state hashes used
// for staleness detection. This package is the only place that knows the
// engine's wire format; everything above it speaks internal/model types.
//
// # Architecture
//
// The package is split into:
//
//   - client.go: the Gateway interface and its HTTP implementation
//   - types.go: wire payloads and their conversion to and from model types
//   - errors.go: ErrSessionExpired and APIError
//   - enginetest: an in-memory Gateway for tests
//
// # Client Usage
//
//	client, err := engine.NewClient("127.0.0.1:8000", 15*time.Second)
//	if err != nil {
//		return err
//	}
//	creds, err := client.CreateSession(ctx)
//	if err != nil {
//		return err
//	}
//	client.SetCredentials(creds)
//	if _, err := client.InitSession(ctx, store.Read()); err != nil {
//		return err
//	}
//
// # API Endpoints
//
// Every call targets /api/v1/session and carries X-Session-ID plus, when a
// token was issued, Authorization: Bearer <token>:
//
//   - POST /create, POST /init, GET /status
//   - PATCH /room
//   - POST /lamps, PATCH|DELETE /lamps/{id}, POST /lamps/{id}/copy
//   - POST /lamps/{id}/ies, POST /lamps/{id}/spectrum (multipart "file")
//   - POST /zones, PATCH|DELETE /zones/{id}, POST /zones/{id}/copy, GET /zones
//   - GET /state-hashes, POST /calculate
//
// Mutating responses may carry an inline state_hashes object; it is returned
// to the caller so the fingerprint tracker can apply it without a separate
// round trip.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation and timeout control
//   - Set Accept: application/json and User-Agent: lumen/0.1
//   - Are bounded by the configured request timeout, except Calculate which
//     gets its own longer deadline
//   - Return wrapped errors with context about what failed
//
// Concurrent FetchStateHashes calls are collapsed into one request with
// golang.org/x/sync/singleflight.
//
// # Error Handling
//
//   - HTTP 401, and HTTP 404 whose detail says the session was not found,
//     wrap ErrSessionExpired; test with errors.Is
//   - Any other status >= 400 is an *APIError carrying the status and the
//     engine's detail message; test with errors.As
//   - Network and decode failures are wrapped with %w
//
// # Thread Safety
//
// Client is safe for concurrent use. Credentials are swapped under a lock so
// a reinitialization can install new ones while other calls are in flight.
package engine
