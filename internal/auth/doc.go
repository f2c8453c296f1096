// Package auth provides authentication for the relay-gateway admin API.
//
// # JWT Tokens
//
// Operators authenticate with HS256 JWTs signed with the configured
// auth.jwt_secret. Tokens carry:
//
//   - sub: who the token was issued to
//   - role: "admin" (read and write) or "viewer" (read only)
//   - iat, exp: issue and expiry times
//
// Tokens are minted offline with the CLI:
//
//	relay-gateway token --subject ops --role admin --ttl 720h
//
// # HTTP Middleware
//
//	mux.Handle("/api/", auth.HTTPAuthMiddleware(verifier)(api))
//	mux.Handle("DELETE /api/sessions/", auth.RequireAdminHTTP()(h))
//
// HTTPAuthMiddleware rejects requests without a valid bearer token and
// attaches an AuthContext, retrievable with FromContext. Webhook routes are
// never behind this middleware; platforms authenticate with signatures.
package auth
