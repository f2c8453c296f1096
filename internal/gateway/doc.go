// Package gateway exposes the relay over HTTP and gRPC.
//
// # Overview
//
// The gateway owns the transport: it accepts platform webhooks, runs each
// one through the Router and writes back the platform-native reply. It also
// serves health, the FAQ page and a small admin API, and on shutdown drains
// the audit recorder before closing the store.
//
// # Routing
//
// Router.Route performs one turn:
//
//  1. Reject platforms off the allow-list (400, no adapter runs)
//  2. Standardize the payload into a platform.Event (400 on bad payloads)
//  3. Run the conversation engine
//  4. Adapt the reply with the platform's adapter
//
// Engine and adapter failures, and panics, surface as *Error with status 500
// and the message "internal error". Every turn past the allow-list is handed
// to the audit recorder without waiting for the write.
//
// # HTTP API
//
//   - POST /webhook/{platform} - Run a turn (body capped at 10 MB)
//   - GET /webhook/facebook - Messenger subscription challenge
//   - GET /health - Status, version, uptime and session counts
//   - GET /faq - The FAQ catalog as HTML
//   - GET /api/sessions - Session stats and listing
//   - DELETE /api/sessions/{platform}/{user} - Reset a session (admin role)
//   - GET /api/interactions - Audit records, newest first
//   - GET /api/profiles/{platform}/{user} - Customer analysis profile
//
// The /api routes require a bearer JWT when auth.jwt_secret is set.
//
// # Signatures
//
// Facebook deliveries are checked against X-Hub-Signature-256 when
// platforms.facebook.app_secret is set; WhatsApp deliveries against
// X-Twilio-Signature when platforms.whatsapp.auth_token is set.
//
// # Listeners
//
// Plain TCP on server.http_addr (and server.grpc_addr for the gRPC health
// service), or a tsnet node when tailscale.enabled is set. With
// tailscale.funnel the webhook endpoint is public HTTPS on :443.
package gateway
