package gateway

// CreateRequest is the inbound create-session payload. Empty fields fall back
// to configured defaults.
type CreateRequest struct {
	AvatarID string `json:"avatar_id"`
	VoiceID  string `json:"voice_id"`
	Quality  string `json:"quality"`
}

type CreateResponse struct {
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	StreamingURL string `json:"streaming_url"`
}

type SpeakRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TaskType  string `json:"task_type"`
}

// Response is the generic command result. Data carries either stored session
// metadata or the provider's payload passed through untouched.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"

	TaskTypeTalk = "talk"
)
