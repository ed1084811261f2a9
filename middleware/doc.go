// Package middleware exposes HTTP adapters around authgate.Engine: route guards,
// login/logout/session handlers, bearer forwarding for reverse proxies, and an
// echo adapter.
//
// # Guards
//
//   - [Guard]: denies unauthenticated requests. API routes get 401 JSON, page
//     routes a 303 to the login path.
//   - [Optional]: attaches the identity when present, never denies.
//   - [EchoGuard]: Guard for labstack/echo.
//
// Every guard calls Engine.Authenticate and stores the result with
// authgate.WithAuthResult.
//
// # Architecture boundaries
//
// This package is the only place where authentication outcomes become HTTP
// responses. It does NOT implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or verify tokens directly (delegates to Engine).
//   - Echo refresh tokens in any response body.
package middleware
