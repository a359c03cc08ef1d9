// Package httputil provides HTTP handler utilities for consistent error
// responses, JSON decoding with struct validation, path parameter parsing and
// the request-scoped middleware chain (request ids, access logging and panic
// recovery).
//
// Error bodies always have the shape
//
//	{"error": "human readable message", "code": "machine_code", "request_id": "..."}
//
// Handlers map domain errors to a status and code themselves (see pkg/api)
// and hand the result to WriteProblem.
package httputil
