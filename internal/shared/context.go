package shared

import "context"

type idempotencyKeyContextKey struct{}

// ContextWithIdempotencyKey stores the client supplied idempotency key in context.
func ContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// IdempotencyKeyFromContext extracts the idempotency key, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key
}
