package utils

import (
	"context"
)

type contextKey string

const ContextUserIDKey contextKey = "userID"
const ContextTakerIDKey contextKey = "takerID"

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

func GetTakerIDFromContext(ctx context.Context) (string, bool) {
	takerID := ctx.Value(ContextTakerIDKey)
	takerIDStr, ok := takerID.(string)
	return takerIDStr, ok
}
