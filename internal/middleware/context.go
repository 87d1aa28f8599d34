package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/R3E-Network/action_layer/pkg/action"
)

type contextKey string

const (
	callerKey  contextKey = "caller"
	traceIDKey contextKey = "trace_id"
)

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller action.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the caller stored in ctx, or a guest.
func CallerFrom(ctx context.Context) action.Caller {
	if caller, ok := ctx.Value(callerKey).(action.Caller); ok {
		return caller
	}
	return action.Guest()
}

// NewTraceID returns a fresh request trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace identifier in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace identifier stored in ctx.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
