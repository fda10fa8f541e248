package dto

import (
	"time"

	"github.com/google/uuid"
)

// VoiceSessionRequest is read from the relay upgrade request.
type VoiceSessionRequest struct {
	CoachID string `validate:"required"`
	VoiceID string
	Token   string
}

// VoiceSessionPlan is everything resolved before the client upgrade completes.
type VoiceSessionPlan struct {
	SessionID      string
	CoachReference string
	AgentID        string
	VoiceID        string
	CallerID       *uuid.UUID
	SignedURL      string
}

func (p *VoiceSessionPlan) Anonymous() bool {
	return p.CallerID == nil
}

type ActivitySummaryResponse struct {
	AgentId       string    `json:"agent_id"`
	Summary       string    `json:"summary"`
	RecentTopics  []string  `json:"recent_topics"`
	KeyInsights   []string  `json:"key_insights"`
	SessionCount  int       `json:"session_count"`
	LastSessionId string    `json:"last_session_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ActiveSessionsResponse struct {
	InstanceId string `json:"instance_id"`
	Local      int    `json:"local"`
	Cluster    int64  `json:"cluster"`
}

type SessionLocationResponse struct {
	SessionId  string    `json:"session_id"`
	AgentId    string    `json:"agent_id"`
	InstanceId string    `json:"instance_id"`
	Local      bool      `json:"local"`
	StartedAt  time.Time `json:"started_at"`
}
