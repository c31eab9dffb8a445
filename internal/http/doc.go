// Package http provides HTTP handlers and middleware for the brokerage API.
//
// The router exposes the following endpoints:
//   - POST /auth/register: creates an account. Body: {"email","password",
//     "display_name","role"}. Creating an ADMIN account requires an admin
//     bearer token.
//   - POST /auth/sessions: issues a signed token. Body: {"email","password"}.
//     Response: {"token","expires_at","user"} with the token also surfaced via
//     the `X-Auth-Token` header and an `auth_token` cookie.
//   - DELETE /auth/sessions/current: revokes the current token extracted from
//     the Authorization header or auth cookie. Returns 204 and clears the cookie.
//   - GET /requests, POST /requests, GET /requests/{id}, POST
//     /requests/{id}/{action}: service request intake and lifecycle endpoints
//     exchanging the `requestDTO` payload defined in request_handler.go.
//     Actions are confirm, start, complete, cancel, and reject.
//   - GET /sessions, POST /sessions, GET /sessions/{id}, POST
//     /sessions/{id}/{action}: session booking and lifecycle endpoints
//     exchanging the `sessionDTO` payload defined in session_handler.go.
//     Actions are confirm, start, complete, cancel, no-show, reschedule, and
//     ratings. POST /sessions/conflict-checks probes an interpreter's calendar
//     without booking.
//   - GET /interpreters, POST /interpreters, GET /interpreters/{id}, PUT
//     /interpreters/{id}: interpreter profile endpoints exchanging the
//     `interpreterDTO` payload defined in interpreter_handler.go. PUT
//     /interpreters/{id}/availability-status, PUT
//     /interpreters/{id}/availability-rules, and GET
//     /interpreters/{id}/availability-preview manage recurring availability.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
