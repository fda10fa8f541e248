package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CoachActivitySummary holds one rolling summary per (user, agent) pair.
type CoachActivitySummary struct {
	Id            uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	UserId        uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_coach_activity_user_agent"`
	AgentId       string                      `gorm:"type:varchar(255);not null;uniqueIndex:idx_coach_activity_user_agent"`
	Summary       string                      `gorm:"type:text"`
	RecentTopics  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	KeyInsights   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	LastSessionId string                      `gorm:"type:varchar(64)"`
	SessionCount  int                         `gorm:"not null;default:1"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt     time.Time
}

func (CoachActivitySummary) TableName() string {
	return "coach_activity_summaries"
}

func (s *CoachActivitySummary) BeforeCreate(tx *gorm.DB) error {
	if s.Id == uuid.Nil {
		s.Id = uuid.New()
	}
	return nil
}
