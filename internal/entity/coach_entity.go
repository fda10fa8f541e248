package entity

import (
	"time"

	"github.com/google/uuid"
)

type Coach struct {
	Id        uuid.UUID
	Name      string
	Slug      string
	AgentId   string
	VoiceId   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// HasAgent reports whether the coach is bound to an upstream voice agent.
func (c *Coach) HasAgent() bool {
	return c != nil && c.AgentId != ""
}

type CoachActivitySummary struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	AgentId       string
	Summary       string
	RecentTopics  []string
	KeyInsights   []string
	LastSessionId string
	SessionCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
