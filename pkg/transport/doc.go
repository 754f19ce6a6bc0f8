// Package transport provides HTTP-level middleware and response helpers
// shared by the gateway's HTTP adapter: panic recovery, request ID
// propagation, structured access logging, and the mapping from structured
// API errors to HTTP status codes.
package transport
