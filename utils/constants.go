// Package utils holds small helpers shared across layers
package utils

import "context"

// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
const CORSMaxAge = 86400

// ContextKey namespaces values stored on request contexts
type ContextKey string

// Request context keys
const (
	RequestIDKey ContextKey = "request_id"
	EndpointKey  ContextKey = "endpoint"
	ServiceKey   ContextKey = "service"
)

// RequestIDFrom returns the request id carried by ctx values, if any
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// ToPtr returns a pointer to a copy of v
func ToPtr[T any](v T) *T {
	return &v
}
