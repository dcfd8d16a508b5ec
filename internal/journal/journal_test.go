package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ABHI-11949/avatar/internal/events"
)

func TestNewStoreWithoutDatabaseURLIsInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() = %T, want *InMemoryStore", s)
	}
}

func TestInMemoryHistoryKeepsNewestInOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, typ := range []events.Type{events.TypeCreated, events.TypeSpeak, events.TypeSpeak, events.TypeStopped} {
		if err := s.Publish(ctx, events.New(typ, "S1", nil)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	_ = s.Publish(ctx, events.New(events.TypeCreated, "S2", nil))

	got, err := s.History(ctx, "S1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(got))
	}
	if got[0].Type != events.TypeSpeak || got[1].Type != events.TypeStopped {
		t.Fatalf("History types = %s,%s; want speak,stopped", got[0].Type, got[1].Type)
	}

	all, _ := s.History(ctx, "S1", 0)
	if len(all) != 4 {
		t.Fatalf("len(History limit 0) = %d, want 4", len(all))
	}
	if none, _ := s.History(ctx, "missing", 10); len(none) != 0 {
		t.Fatalf("History(missing) = %v, want empty", none)
	}
}

// Runs only against a real database, e.g.
// JOURNAL_TEST_DATABASE_URL=postgres://localhost/avatar_test go test ./internal/journal
func TestPostgresStoreRoundTrip(t *testing.T) {
	url := os.Getenv("JOURNAL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JOURNAL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer s.Close()

	e := events.New(events.TypeCreated, "pg-"+events.New(events.TypeCreated, "", nil).ID, map[string]string{"avatar_id": "A1"})
	if err := s.Publish(ctx, e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, err := s.History(ctx, e.SessionID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != e.ID || got[0].Detail["avatar_id"] != "A1" {
		t.Fatalf("History() = %+v, want the published event", got)
	}
}

func TestPostgresHistoryOrdersSameInstantByInsertion(t *testing.T) {
	url := os.Getenv("JOURNAL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JOURNAL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer s.Close()

	sessionID := "pg-tie-" + events.New(events.TypeCreated, "", nil).ID
	at := time.Now().UTC().Truncate(time.Microsecond)
	want := []events.Type{events.TypeCreated, events.TypeSpeak, events.TypeStopped}
	for _, typ := range want {
		e := events.New(typ, sessionID, nil)
		e.At = at
		if err := s.Publish(ctx, e); err != nil {
			t.Fatalf("Publish(%s) error = %v", typ, err)
		}
	}

	got, err := s.History(ctx, sessionID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len(History) = %d, want %d", len(got), len(want))
	}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Fatalf("History[%d].Type = %s, want %s", i, got[i].Type, typ)
		}
	}

	newest, _ := s.History(ctx, sessionID, 1)
	if len(newest) != 1 || newest[0].Type != events.TypeStopped {
		t.Fatalf("History(limit 1) = %+v, want the stopped event", newest)
	}
}
