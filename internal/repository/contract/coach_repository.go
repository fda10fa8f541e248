package contract

import (
	"context"

	"ai-salescoach-be/internal/entity"
	"ai-salescoach-be/internal/repository/specification"
)

type CoachRepository interface {
	Create(ctx context.Context, coach *entity.Coach) error
	// FindByReference looks a coach up by id when ref is a uuid, else by slug.
	FindByReference(ctx context.Context, ref string) (*entity.Coach, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Coach, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Coach, error)
}
