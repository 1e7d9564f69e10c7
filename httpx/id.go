package httpx

import (
	"context"

	"github.com/google/uuid"
)

func requestID(ctx context.Context) string {
	if id, ok := RequestIDFrom(ctx); ok {
		return id
	}
	return uuid.NewString()
}
