package assignments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
)

// Repository persists assignments and answers the allocation engine's queries.
type Repository interface {
	allocation.Store
	WithTx(tx *gorm.DB) Repository
	PhaseExists(ctx context.Context, phaseID uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ListByPerson(ctx context.Context, personID uuid.UUID, includeInactive bool, cursor *pagination.Cursor, limit int) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateVersioned(ctx context.Context, assignment *models.Assignment, expectedVersion int64) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	AllocationVersion(ctx context.Context, personID uuid.UUID) (int64, error)
	BumpAllocationVersion(ctx context.Context, personID uuid.UUID, expected *int64) (bool, error)
}
