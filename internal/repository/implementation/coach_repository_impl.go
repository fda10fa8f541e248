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
)

type CoachRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CoachMapper
}

func NewCoachRepository(db *gorm.DB) contract.CoachRepository {
	return &CoachRepositoryImpl{
		db:     db,
		mapper: mapper.NewCoachMapper(),
	}
}

func (r *CoachRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CoachRepositoryImpl) Create(ctx context.Context, coach *entity.Coach) error {
	m := r.mapper.ToModel(coach)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*coach = *r.mapper.ToEntity(m)
	return nil
}

func (r *CoachRepositoryImpl) FindByReference(ctx context.Context, ref string) (*entity.Coach, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return r.FindOne(ctx, specification.ByID{ID: id})
	}
	return r.FindOne(ctx, specification.BySlug{Slug: ref})
}

func (r *CoachRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Coach, error) {
	var m model.Coach
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CoachRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Coach, error) {
	var models []*model.Coach
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.Coach, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
