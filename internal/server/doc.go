// Package server exposes batch history, metrics and an import trigger over HTTP.
//
// # Routes
//
//	GET  /healthz        liveness and whether a batch is in flight
//	GET  /metrics        Prometheus exposition of the run metrics
//	GET  /batches        recent batches, newest first (?limit=N)
//	GET  /batches/{ref}  one batch by id or sequence number, with its track outcomes
//	POST /batches        start an import batch in the background
//
// Only one batch runs at a time. A POST while one is in flight answers 409.
//
// # Router Infrastructure
//
// [BasicRouter] registers method patterns on an [http.ServeMux] and wraps every route in the
// [Middleware] stack. The first middleware added is the outermost.
package server
