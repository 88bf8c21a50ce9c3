package common

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextKey represents a context key type
type ContextKey string

const (
	ContextKeyCaller    ContextKey = "caller"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyStartTime ContextKey = "start_time"
)

// Caller is the identity resolved for the current request.
type Caller struct {
	UserID  uuid.UUID
	IsGuest bool
	GuestID string
	Email   string
}

// WithCaller stores the resolved caller on the request context
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// GetCaller extracts the resolved caller from context
func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(ContextKeyCaller).(Caller)
	return caller, ok
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time); ok {
		return time.Since(startTime)
	}
	return 0
}
