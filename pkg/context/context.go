package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	RequestIDKey = "request_id"
	SessionIDKey = "session_id"
)

// request ids are stored under the plain string key as well so that
// pkg/log.WithRequestID can read them without importing this package.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey(SessionIDKey), sessionID)
}

func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(ctxKey(SessionIDKey)).(string)
	return sessionID
}

// Detach keeps the request-scoped values of ctx but drops its deadline and
// cancellation, for work that outlives the HTTP request.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := context.Background()

	requestID, ok := c.Locals("X-Request-ID").(string)
	if !ok || requestID == "" {
		requestID = c.Get("X-Request-ID")

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(ctx, requestID)
}
