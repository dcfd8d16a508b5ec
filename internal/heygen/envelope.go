package heygen

import (
	"encoding/json"
	"fmt"
)

// CodeSuccess is the provider's logical success code. A 2xx response with any
// other code is a rejection.
const CodeSuccess = 100

// Envelope is the provider's logical response wrapper.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e Envelope) OK() bool {
	return e.Code == CodeSuccess
}

// DecodeEnvelope parses raw as an Envelope. A payload that is valid JSON but
// not an object (or has a non-numeric code) is an upstream transport error.
func DecodeEnvelope(raw json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, transportError(fmt.Errorf("decode envelope: %w", err))
	}
	return env, nil
}

// StreamingSession is the data block returned by streaming.create.
type StreamingSession struct {
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	StreamingURL string `json:"streaming_url"`
}

// CreateStreamingRequest is the streaming.create payload.
type CreateStreamingRequest struct {
	AvatarID string      `json:"avatar_id"`
	Quality  string      `json:"quality"`
	Voice    VoiceParams `json:"voice"`
}

type VoiceParams struct {
	VoiceID string  `json:"voice_id"`
	Rate    float64 `json:"rate"`
	Pitch   float64 `json:"pitch"`
}

// TaskRequest is the streaming.task payload.
type TaskRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TaskType  string `json:"task_type"`
}

// StopRequest is the streaming.stop payload.
type StopRequest struct {
	SessionID string `json:"session_id"`
}
