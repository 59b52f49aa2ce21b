// Package api exposes the status server: health checks, Prometheus metrics
// and a JSON view of the current run and persisted state.
package api
