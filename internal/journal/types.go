package journal

import (
	"context"

	"github.com/ABHI-11949/avatar/internal/events"
)

// Store keeps an append-only history of session lifecycle events. It is an
// audit trail: the session registry is never rebuilt from it.
type Store interface {
	Publish(ctx context.Context, e events.Event) error
	History(ctx context.Context, sessionID string, limit int) ([]events.Event, error)
	Close() error
}

const defaultHistoryLimit = 50
