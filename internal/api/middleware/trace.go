package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type contextKey string

const (
	TraceIDHeader = "X-Trace-ID"

	TraceIDKey contextKey = "trace_id"

	LocalTraceID     = "trace_id"
	LocalAccount     = "account"
	LocalLedgerToken = "ledger_token"
)

// TraceID reuses the caller's X-Trace-ID or assigns a new one, echoes it
// back and makes it available to handlers and to the request context.
func TraceID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Locals(LocalTraceID, traceID)
		c.SetUserContext(context.WithValue(c.UserContext(), TraceIDKey, traceID))
		c.Set(TraceIDHeader, traceID)
		return c.Next()
	}
}

func GetTraceID(c *fiber.Ctx) string {
	if traceID, ok := c.Locals(LocalTraceID).(string); ok {
		return traceID
	}
	return ""
}

// TraceIDFromContext returns the trace id stored by TraceID, if any.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
