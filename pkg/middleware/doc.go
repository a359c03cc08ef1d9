// Package middleware provides HTTP middleware for bearer token
// authentication and per-user rate limiting of write requests.
//
// # Authentication
//
// Tokens are HS256 JWTs issued by the identity provider in front of the
// league service. The subject claim is the numeric user id:
//
//	auth := middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
//	router.Use(auth.Handler)
//	// handlers read contextkeys.GetActor(r.Context())
//
// # Rate Limiting
//
// RateLimiter counts requests per user in a fixed Redis window so that the
// limit holds across server processes. Redis failures fail open.
//
//	limiter := middleware.NewRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), logger)
//	writes.Use(limiter.Handler)
package middleware
