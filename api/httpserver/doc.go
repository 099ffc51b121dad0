// Package httpserver provides the reusable HTTP server shell for Immunet
// components.
//
// BaseServer wires standard middleware (request id, real IP, panic
// recovery, structured request logging), health endpoints, optional
// Prometheus metrics on a separate listener, and a drain-aware graceful
// shutdown. Components contribute their routes through the RouteRegistrar
// interface.
//
// # Health and diagnostics
//
//   - /livez: liveness check
//   - /readyz: readiness check, flipped by /drain and /undrain
//   - /debug: pprof endpoints when enabled
//
// # Usage
//
//	baseServer, err := httpserver.New(cfg, handler)
//	if err != nil { ... }
//	baseServer.RunInBackground()
//	defer baseServer.Shutdown()
package httpserver
