package utils

import (
	"time"

	"github.com/google/uuid"
)

// SessionData is the transport-neutral view of a session used by middleware,
// so HTTP packages never import a concrete auth store.
type SessionData struct {
	UserID    string
	ExpiresAt time.Time
}

func GenerateUUID() string {
	return uuid.NewString()
}
