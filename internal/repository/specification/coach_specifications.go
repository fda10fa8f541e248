package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySlug filters coaches by their public slug
type BySlug struct {
	Slug string
}

func (s BySlug) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("slug = ?", s.Slug)
}

// ByAgentID filters by upstream agent id
type ByAgentID struct {
	AgentID string
}

func (s ByAgentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id = ?", s.AgentID)
}

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// WithAgentBound excludes coaches that have no upstream agent yet
type WithAgentBound struct{}

func (s WithAgentBound) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id IS NOT NULL AND agent_id <> ''")
}
