package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ABHI-11949/avatar/internal/events"
	"github.com/ABHI-11949/avatar/internal/heygen"
	"github.com/ABHI-11949/avatar/internal/observability"
	"github.com/ABHI-11949/avatar/internal/session"
)

// Defaults are substituted for avatar and voice when a create request omits them.
type Defaults struct {
	AvatarID string
	VoiceID  string
}

// Service validates commands, checks the registry, calls the provider and
// keeps the registry in step with successful create and stop calls.
type Service struct {
	provider heygen.Provider
	sessions *session.Registry
	defaults Defaults
	sink     events.Sink
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewService(
	provider heygen.Provider,
	sessions *session.Registry,
	defaults Defaults,
	sink events.Sink,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		provider: provider,
		sessions: sessions,
		defaults: defaults,
		sink:     sink,
		metrics:  metrics,
		logger:   observability.WithComponent(logger, "gateway"),
	}
}

func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	avatarID := strings.TrimSpace(req.AvatarID)
	if avatarID == "" {
		avatarID = s.defaults.AvatarID
	}
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = s.defaults.VoiceID
	}
	quality := strings.ToLower(strings.TrimSpace(req.Quality))
	switch quality {
	case "":
		quality = QualityHigh
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return CreateResponse{}, validationError(fmt.Sprintf("quality must be one of high, medium, low (got %q)", req.Quality))
	}

	raw, err := s.provider.Call(ctx, heygen.EndpointStreamingCreate, heygen.MethodPost, heygen.CreateStreamingRequest{
		AvatarID: avatarID,
		Quality:  quality,
		Voice: heygen.VoiceParams{
			VoiceID: voiceID,
			Rate:    1.0,
			Pitch:   1.0,
		},
	})
	if err != nil {
		return CreateResponse{}, err
	}

	env, err := heygen.DecodeEnvelope(raw)
	if err != nil {
		return CreateResponse{}, err
	}
	if !env.OK() {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "Failed to create session"
		}
		return CreateResponse{}, upstreamRejected(msg)
	}

	var data heygen.StreamingSession
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return CreateResponse{}, &heygen.UpstreamError{
				Status: http.StatusInternalServerError,
				Detail: fmt.Sprintf("decode session data: %v", err),
				Err:    err,
			}
		}
	}
	if strings.TrimSpace(data.SessionID) == "" {
		return CreateResponse{}, upstreamRejected("Provider returned no session_id")
	}

	s.sessions.Insert(session.Session{
		ID:        data.SessionID,
		AvatarID:  avatarID,
		VoiceID:   voiceID,
		Quality:   quality,
		Status:    session.StatusActive,
		CreatedAt: time.Now().UTC(),
	})
	s.publish(ctx, events.New(events.TypeCreated, data.SessionID, map[string]string{
		"avatar_id": avatarID,
		"voice_id":  voiceID,
		"quality":   quality,
	}))

	return CreateResponse{
		SessionID:    data.SessionID,
		URL:          data.URL,
		StreamingURL: data.StreamingURL,
	}, nil
}

func (s *Service) Speak(ctx context.Context, req SpeakRequest) (Response, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return Response{}, validationError("session_id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return Response{}, validationError("text is required")
	}
	taskType := strings.TrimSpace(req.TaskType)
	if taskType == "" {
		taskType = TaskTypeTalk
	}
	if !s.sessions.Exists(sessionID) {
		return Response{}, notFoundError()
	}

	raw, err := s.provider.Call(ctx, heygen.EndpointStreamingTask, heygen.MethodPost, heygen.TaskRequest{
		SessionID: sessionID,
		Text:      req.Text,
		TaskType:  taskType,
	})
	if err != nil {
		return Response{}, err
	}

	preview, masked := events.TextPreview(req.Text)
	detail := map[string]string{"task_type": taskType, "text": preview}
	if masked {
		detail["masked"] = "true"
	}
	s.publish(ctx, events.New(events.TypeSpeak, sessionID, detail))
	return Response{
		Success: true,
		Message: "Speaking task initiated",
		Data:    raw,
	}, nil
}

// Stop ends the provider session and forgets it locally. The registry entry
// is kept when the provider call fails, except for a provider 404, which means
// the session is already gone upstream.
func (s *Service) Stop(ctx context.Context, sessionID string) (Response, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Response{}, validationError("session_id is required")
	}
	if !s.sessions.Exists(sessionID) {
		return Response{}, notFoundError()
	}

	_, err := s.provider.Call(ctx, heygen.EndpointStreamingStop, heygen.MethodPost, heygen.StopRequest{SessionID: sessionID})
	if err != nil {
		if ue, ok := heygen.AsUpstreamError(err); ok && !ue.Transport() && ue.Status == http.StatusNotFound {
			s.forget(ctx, sessionID, "provider_not_found")
			return Response{}, notFoundError()
		}
		observability.LoggerFor(ctx, s.logger).Warn("provider stop failed; keeping session",
			"session_id", sessionID,
			"error", err,
		)
		return Response{}, err
	}

	s.forget(ctx, sessionID, "stopped")
	return Response{
		Success: true,
		Message: "Session stopped successfully",
	}, nil
}

func (s *Service) GetStatus(_ context.Context, sessionID string) (Response, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Response{}, validationError("session_id is required")
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Response{}, notFoundError()
		}
		return Response{}, err
	}
	return Response{
		Success: true,
		Message: "Session active",
		Data:    sess,
	}, nil
}

// ListAvatars returns the provider's avatar list data untouched.
func (s *Service) ListAvatars(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.provider.Call(ctx, heygen.EndpointAvatarsList, heygen.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	env, err := heygen.DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "Failed to list avatars"
		}
		return nil, upstreamRejected(msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return json.RawMessage(`{}`), nil
	}
	return env.Data, nil
}

// Exists reports whether the registry currently lists sessionID.
func (s *Service) Exists(sessionID string) bool {
	return s.sessions.Exists(strings.TrimSpace(sessionID))
}

func (s *Service) forget(ctx context.Context, sessionID, reason string) {
	// A concurrent stop may already have removed the entry.
	_ = s.sessions.Remove(sessionID)
	s.publish(ctx, events.New(events.TypeStopped, sessionID, map[string]string{"reason": reason}))
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	s.metrics.ObserveSessionEvent(string(e.Type), s.sessions.Count())
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, e); err != nil {
		observability.LoggerFor(ctx, s.logger).Warn("publish session event failed",
			"session_id", e.SessionID,
			"event", string(e.Type),
			"error", err,
		)
	}
}
