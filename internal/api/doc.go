// Package api serves a small HTTP control API over the reconcile
// coordinator.
//
// Routes:
//
//	GET  /healthz                  liveness plus snapshot availability
//	GET  /api/status               current snapshot as a state.Document
//	POST /api/refresh              read the device now, then return the snapshot
//	PUT  /api/outputs/{n}/input    body {"input": m}; route input m to output n
//
// Errors come back as {"status", "code", "message"}. Out-of-range ports map to
// 400, a route the device refused to 409, device or network failures to 502
// and calls after shutdown to 503.
//
// The router uses chi with request IDs, panic recovery, a zerolog request
// logger and permissive CORS so a browser dashboard on another origin can
// drive the matrix.
package api
