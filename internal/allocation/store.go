package allocation

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/pkg/db/models"
)

// Store yields the records the engine aggregates. Implementations should
// apply the filter in the query; the engine re-checks it regardless.
type Store interface {
	FindActiveAssignments(ctx context.Context, personID uuid.UUID, filter Filter) ([]models.Assignment, error)
	FindActiveAssignmentsForRoster(ctx context.Context, personIDs []uuid.UUID, filter Filter) (map[uuid.UUID][]models.Assignment, error)
	FindActivePeopleRoster(ctx context.Context) ([]uuid.UUID, error)
	PersonExists(ctx context.Context, personID uuid.UUID) (bool, error)
	// FindExistingPeople returns the subset of personIDs known to the directory.
	FindExistingPeople(ctx context.Context, personIDs []uuid.UUID) ([]uuid.UUID, error)
}
