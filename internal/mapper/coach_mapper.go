package mapper

import (
	"time"

	"ai-salescoach-be/internal/entity"
	"ai-salescoach-be/internal/model"

	"gorm.io/datatypes"
)

type CoachMapper struct{}

func NewCoachMapper() *CoachMapper {
	return &CoachMapper{}
}

func (m *CoachMapper) ToEntity(c *model.Coach) *entity.Coach {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Coach{
		Id:        c.Id,
		Name:      c.Name,
		Slug:      deref(c.Slug),
		AgentId:   deref(c.AgentId),
		VoiceId:   deref(c.VoiceId),
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *CoachMapper) ToModel(c *entity.Coach) *model.Coach {
	if c == nil {
		return nil
	}
	return &model.Coach{
		Id:      c.Id,
		Name:    c.Name,
		Slug:    ref(c.Slug),
		AgentId: ref(c.AgentId),
		VoiceId: ref(c.VoiceId),
	}
}

type ActivitySummaryMapper struct{}

func NewActivitySummaryMapper() *ActivitySummaryMapper {
	return &ActivitySummaryMapper{}
}

func (m *ActivitySummaryMapper) ToEntity(s *model.CoachActivitySummary) *entity.CoachActivitySummary {
	if s == nil {
		return nil
	}
	return &entity.CoachActivitySummary{
		Id:            s.Id,
		UserId:        s.UserId,
		AgentId:       s.AgentId,
		Summary:       s.Summary,
		RecentTopics:  []string(s.RecentTopics),
		KeyInsights:   []string(s.KeyInsights),
		LastSessionId: s.LastSessionId,
		SessionCount:  s.SessionCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (m *ActivitySummaryMapper) ToModel(s *entity.CoachActivitySummary) *model.CoachActivitySummary {
	if s == nil {
		return nil
	}
	topics := s.RecentTopics
	if topics == nil {
		topics = []string{}
	}
	insights := s.KeyInsights
	if insights == nil {
		insights = []string{}
	}
	return &model.CoachActivitySummary{
		Id:            s.Id,
		UserId:        s.UserId,
		AgentId:       s.AgentId,
		Summary:       s.Summary,
		RecentTopics:  datatypes.JSONSlice[string](topics),
		KeyInsights:   datatypes.JSONSlice[string](insights),
		LastSessionId: s.LastSessionId,
		SessionCount:  s.SessionCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
