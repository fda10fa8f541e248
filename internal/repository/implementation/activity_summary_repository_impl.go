package implementation

import (
	"context"
	"errors"

	"ai-salescoach-be/internal/entity"
	"ai-salescoach-be/internal/mapper"
	"ai-salescoach-be/internal/model"
	"ai-salescoach-be/internal/repository/contract"
	"ai-salescoach-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivitySummaryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ActivitySummaryMapper
}

func NewActivitySummaryRepository(db *gorm.DB) contract.ActivitySummaryRepository {
	return &ActivitySummaryRepositoryImpl{
		db:     db,
		mapper: mapper.NewActivitySummaryMapper(),
	}
}

func (r *ActivitySummaryRepositoryImpl) Upsert(ctx context.Context, summary *entity.CoachActivitySummary) error {
	m := r.mapper.ToModel(summary)
	if m.SessionCount == 0 {
		m.SessionCount = 1
	}

	// session_count only moves when a new session writes the row.
	updates := append(
		clause.AssignmentColumns([]string{"summary", "recent_topics", "key_insights", "last_session_id", "updated_at"}),
		clause.Assignment{
			Column: clause.Column{Name: "session_count"},
			Value: gorm.Expr("CASE WHEN coach_activity_summaries.last_session_id = excluded.last_session_id " +
				"THEN coach_activity_summaries.session_count ELSE coach_activity_summaries.session_count + 1 END"),
		},
	)

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "agent_id"}},
		DoUpdates: updates,
	}).Create(m).Error
}

func (r *ActivitySummaryRepositoryImpl) FindByUserAndAgent(ctx context.Context, userId uuid.UUID, agentId string) (*entity.CoachActivitySummary, error) {
	var m model.CoachActivitySummary
	query := r.db.WithContext(ctx)
	query = specification.ByUserID{UserID: userId}.Apply(query)
	query = specification.ByAgentID{AgentID: agentId}.Apply(query)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ActivitySummaryRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.CoachActivitySummary, error) {
	var models []*model.CoachActivitySummary
	query := r.db.WithContext(ctx)
	query = specification.ByUserID{UserID: userId}.Apply(query)
	query = specification.OrderBy{Field: "updated_at", Desc: true}.Apply(query)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.CoachActivitySummary, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
