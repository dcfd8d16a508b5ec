package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCreated Type = "session.created"
	TypeSpeak   Type = "session.speak"
	TypeStopped Type = "session.stopped"
)

// Event describes one session lifecycle change observed by the gateway.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at"`
	Detail    map[string]string `json:"detail,omitempty"`
}

func New(t Type, sessionID string, detail map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		At:        time.Now().UTC(),
		Detail:    detail,
	}
}

// Sink receives published events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
