package contract

import (
	"context"

	"ai-salescoach-be/internal/entity"

	"github.com/google/uuid"
)

type ActivitySummaryRepository interface {
	// Upsert writes the summary keyed by (user_id, agent_id), overwriting any previous row.
	Upsert(ctx context.Context, summary *entity.CoachActivitySummary) error
	FindByUserAndAgent(ctx context.Context, userId uuid.UUID, agentId string) (*entity.CoachActivitySummary, error)
	FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.CoachActivitySummary, error)
}
