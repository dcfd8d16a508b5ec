package heygen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// MockProvider answers provider calls locally when no HeyGen account is
// available. It remembers the sessions it created so stop and task calls for
// unknown sessions fail the way the real API does.
type MockProvider struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

func NewMockProvider() *MockProvider {
	return &MockProvider{sessions: make(map[string]struct{})}
}

func (p *MockProvider) Call(ctx context.Context, endpoint string, method Method, body any) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, transportError(ctx.Err())
	default:
	}

	var fields struct {
		SessionID string `json:"session_id"`
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, transportError(fmt.Errorf("marshal request: %w", err))
		}
		_ = json.Unmarshal(raw, &fields)
	}

	switch {
	case endpoint == EndpointStreamingCreate && method == MethodPost:
		id := uuid.NewString()
		p.mu.Lock()
		p.sessions[id] = struct{}{}
		p.mu.Unlock()
		return success(StreamingSession{
			SessionID:    id,
			URL:          "wss://mock.heygen.local/v1/" + id,
			StreamingURL: "https://mock.heygen.local/stream/" + id,
		})
	case endpoint == EndpointStreamingTask && method == MethodPost:
		if !p.known(fields.SessionID, false) {
			return nil, &UpstreamError{Status: http.StatusNotFound, Detail: `{"code":10005,"message":"session not found"}`}
		}
		return success(map[string]string{"task_id": uuid.NewString()})
	case endpoint == EndpointStreamingStop && method == MethodPost:
		if !p.known(fields.SessionID, true) {
			return nil, &UpstreamError{Status: http.StatusNotFound, Detail: `{"code":10005,"message":"session not found"}`}
		}
		return success(nil)
	case endpoint == EndpointAvatarsList && method == MethodGet:
		return success(map[string]any{
			"avatars": []map[string]string{
				{"avatar_id": "mock-avatar-1", "avatar_name": "Mock Avatar One"},
				{"avatar_id": "mock-avatar-2", "avatar_name": "Mock Avatar Two"},
			},
		})
	default:
		return nil, &UpstreamError{Status: http.StatusNotFound, Detail: fmt.Sprintf("unknown endpoint %s %s", method, endpoint)}
	}
}

func (p *MockProvider) known(sessionID string, forget bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[sessionID]
	if ok && forget {
		delete(p.sessions, sessionID)
	}
	return ok
}

func success(data any) (json.RawMessage, error) {
	raw, err := json.Marshal(map[string]any{
		"code":    CodeSuccess,
		"message": "success",
		"data":    data,
	})
	if err != nil {
		return nil, transportError(err)
	}
	return raw, nil
}
