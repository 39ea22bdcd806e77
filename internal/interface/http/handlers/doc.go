// Package handlers contains the reusable pieces of the HTTP interface:
// health checking and middleware.
//
// # Health Checks
//
// Named checks run in parallel. Optional checks report a failure without
// taking the service out of rotation:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
// # Authentication
//
// Admin routes require an API key. Keys are configured as bcrypt hashes
// (ADMIN_API_KEY_HASHES), so plaintext keys never live in the environment:
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", cfg.AdminKeyHashes)
//	mux.Handle("POST /api/v1/rentals", auth.Middleware(h))
//
// # Middleware
//
// Chain composes middleware with the first argument outermost:
//
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(64<<10),
//	    handlers.TimeoutMiddleware(10*time.Second),
//	)(mux)
package handlers
