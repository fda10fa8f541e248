package service

import (
	"context"
	"fmt"

	"ai-salescoach-be/internal/dto"
	"ai-salescoach-be/internal/entity"
	"ai-salescoach-be/internal/pkg/logger"
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/relay"
	"ai-salescoach-be/internal/repository/contract"
	coachEvents "ai-salescoach-be/pkg/coach/events"

	"github.com/google/uuid"
)

type IActivityService interface {
	relay.ActivitySink
	GetSummaries(ctx context.Context, userId uuid.UUID) ([]*dto.ActivitySummaryResponse, error)
	GetSummary(ctx context.Context, userId uuid.UUID, agentId string) (*dto.ActivitySummaryResponse, error)
}

type activityService struct {
	summaries contract.ActivitySummaryRepository
	events    coachEvents.Publisher
	logger    logger.ILogger
}

func NewActivityService(
	summaries contract.ActivitySummaryRepository,
	events coachEvents.Publisher,
	logger logger.ILogger,
) IActivityService {
	return &activityService{
		summaries: summaries,
		events:    events,
		logger:    logger,
	}
}

func (s *activityService) SaveActivity(ctx context.Context, record relay.ActivityRecord) error {
	ctx, span := tracer.Start(ctx, "ActivityService.SaveActivity")
	defer span.End()

	summary := &entity.CoachActivitySummary{
		UserId:        record.UserID,
		AgentId:       record.AgentID,
		Summary:       record.Summary,
		RecentTopics:  record.Topics,
		KeyInsights:   record.Insights,
		LastSessionId: record.SessionID,
		UpdatedAt:     record.UpdatedAt,
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", relay.ErrActivityFlush, err)
	}

	if s.events != nil {
		s.events.PublishActivityFlushed(ctx, coachEvents.ActivityFlushed{
			SessionID: record.SessionID,
			AgentID:   record.AgentID,
			UserID:    record.UserID.String(),
			Entries:   record.Entries,
		})
	}
	return nil
}

func (s *activityService) GetSummaries(ctx context.Context, userId uuid.UUID) ([]*dto.ActivitySummaryResponse, error) {
	summaries, err := s.summaries.FindAllByUser(ctx, userId)
	if err != nil {
		return nil, serverutils.NewInternal(err)
	}

	result := make([]*dto.ActivitySummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, toActivitySummaryResponse(summary))
	}
	return result, nil
}

func (s *activityService) GetSummary(ctx context.Context, userId uuid.UUID, agentId string) (*dto.ActivitySummaryResponse, error) {
	summary, err := s.summaries.FindByUserAndAgent(ctx, userId, agentId)
	if err != nil {
		return nil, serverutils.NewInternal(err)
	}
	if summary == nil {
		return nil, serverutils.NewNotFound("No activity recorded for this coach")
	}
	return toActivitySummaryResponse(summary), nil
}

func toActivitySummaryResponse(summary *entity.CoachActivitySummary) *dto.ActivitySummaryResponse {
	topics := summary.RecentTopics
	if topics == nil {
		topics = []string{}
	}
	insights := summary.KeyInsights
	if insights == nil {
		insights = []string{}
	}
	return &dto.ActivitySummaryResponse{
		AgentId:       summary.AgentId,
		Summary:       summary.Summary,
		RecentTopics:  topics,
		KeyInsights:   insights,
		SessionCount:  summary.SessionCount,
		LastSessionId: summary.LastSessionId,
		UpdatedAt:     summary.UpdatedAt,
	}
}
