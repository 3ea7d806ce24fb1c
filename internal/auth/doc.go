// Package auth issues and validates the bearer tokens that guard the relay's
// HTTP surface.
//
// Tokens are HS256-signed JWTs carrying a list of scopes:
//   - publish: may inject messages through POST /api/v1/publish
//   - stream: may open the live message WebSocket
//   - read: may query the message archive
//
// Validation is signature and expiry only; there is no token store.
package auth
