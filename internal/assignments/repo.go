package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/internal/repo"
	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

type repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) activeAssignments(ctx context.Context, filter allocation.Filter) *gorm.DB {
	q := r.DB(ctx).
		Model(&models.Assignment{}).
		Preload("Phase").
		Where("assignments.is_active = ?", true)

	if filter.DateRangeEnd != nil {
		q = q.Where("assignments.start_date <= ?", types.TruncateDate(*filter.DateRangeEnd))
	}
	if filter.DateRangeStart != nil {
		q = q.Where("(assignments.end_date IS NULL OR assignments.end_date >= ?)", types.TruncateDate(*filter.DateRangeStart))
	}
	if filter.ProjectID != nil {
		q = q.Where("assignments.phase_id IN (?)",
			r.DB(ctx).Model(&models.Phase{}).Select("id").Where("project_id = ?", *filter.ProjectID))
	}
	return q.Order("assignments.start_date ASC").Order("assignments.id ASC")
}

// FindActiveAssignments implements allocation.Store.
func (r *repository) FindActiveAssignments(ctx context.Context, personID uuid.UUID, filter allocation.Filter) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.activeAssignments(ctx, filter).
		Where("assignments.person_id = ?", personID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActiveAssignmentsForRoster implements allocation.Store.
func (r *repository) FindActiveAssignmentsForRoster(ctx context.Context, personIDs []uuid.UUID, filter allocation.Filter) (map[uuid.UUID][]models.Assignment, error) {
	out := make(map[uuid.UUID][]models.Assignment, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}

	var rows []models.Assignment
	err := r.activeAssignments(ctx, filter).
		Where("assignments.person_id IN ?", personIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PersonID] = append(out[row.PersonID], row)
	}
	return out, nil
}

// FindActivePeopleRoster implements allocation.Store: active people with a
// staffable directory role, ordered by name.
func (r *repository) FindActivePeopleRoster(ctx context.Context) ([]uuid.UUID, error) {
	roles := make([]string, 0, len(enums.StaffableTeamRoles))
	for _, role := range enums.StaffableTeamRoles {
		roles = append(roles, role.String())
	}

	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.Person{}).
		Where("is_active = ? AND role IN ?", true, roles).
		Order("last_name ASC").Order("first_name ASC").Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PersonExists implements allocation.Store. Any directory entry counts.
func (r *repository) PersonExists(ctx context.Context, personID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Person{}).Where("id = ?", personID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindExistingPeople implements allocation.Store.
func (r *repository) FindExistingPeople(ctx context.Context, personIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(personIDs) == 0 {
		return ids, nil
	}
	if err := r.DB(ctx).Model(&models.Person{}).Where("id IN ?", personIDs).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PhaseExists reports whether the phase is known.
func (r *repository) PhaseExists(ctx context.Context, phaseID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Phase{}).Where("id = ?", phaseID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID loads an assignment with its phase.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.DB(ctx).Preload("Phase").Where("id = ?", id).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByPerson pages through a person's assignments ordered by start date.
// It fetches one extra row so callers can detect a following page.
func (r *repository) ListByPerson(ctx context.Context, personID uuid.UUID, includeInactive bool, cursor *pagination.Cursor, limit int) ([]models.Assignment, error) {
	q := r.DB(ctx).
		Preload("Phase").
		Where("person_id = ?", personID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if cursor != nil {
		start := types.TruncateDate(cursor.SortKey)
		q = q.Where("(start_date > ? OR (start_date = ? AND id > ?))", start, start, cursor.ID)
	}

	var rows []models.Assignment
	err := q.Order("start_date ASC").Order("id ASC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts the assignment with version 1. Associations are never written.
func (r *repository) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.Version = 1
	return r.DB(ctx).Omit(clause.Associations).Create(assignment).Error
}

// UpdateVersioned writes the mutable columns when the stored version still
// equals expectedVersion, bumping it by one. It reports whether a row changed.
func (r *repository) UpdateVersioned(ctx context.Context, assignment *models.Assignment, expectedVersion int64) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND version = ?", assignment.ID, expectedVersion).
		Updates(map[string]any{
			"role":               assignment.Role,
			"working_percentage": assignment.WorkingPercentage,
			"start_date":         assignment.StartDate,
			"end_date":           assignment.EndDate,
			"is_active":          assignment.IsActive,
			"version":            expectedVersion + 1,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	assignment.Version = expectedVersion + 1
	return true, nil
}

// Delete removes the assignment. It reports whether a row existed.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Assignment{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AllocationVersion reads the person's store-level allocation counter.
func (r *repository) AllocationVersion(ctx context.Context, personID uuid.UUID) (int64, error) {
	var person models.Person
	if err := r.DB(ctx).Select("allocation_version").Where("id = ?", personID).First(&person).Error; err != nil {
		return 0, err
	}
	return person.AllocationVersion, nil
}

// BumpAllocationVersion increments the person's allocation counter. When
// expected is set the increment only happens if the counter still holds that
// value; the result reports whether it did.
func (r *repository) BumpAllocationVersion(ctx context.Context, personID uuid.UUID, expected *int64) (bool, error) {
	q := r.DB(ctx).Model(&models.Person{}).Where("id = ?", personID)
	if expected != nil {
		q = q.Where("allocation_version = ?", *expected)
	}
	res := q.UpdateColumn("allocation_version", gorm.Expr("allocation_version + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
