package session

import "time"

type Status string

const StatusActive Status = "active"

// Session is the metadata this process keeps for a provider session.
type Session struct {
	ID        string    `json:"session_id"`
	AvatarID  string    `json:"avatar_id"`
	VoiceID   string    `json:"voice_id"`
	Quality   string    `json:"quality"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
