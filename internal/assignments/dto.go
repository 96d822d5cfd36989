package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

// AssignmentDTO is the API view of an assignment.
type AssignmentDTO struct {
	ID                uuid.UUID            `json:"id"`
	PhaseID           uuid.UUID            `json:"phase_id"`
	ProjectID         *uuid.UUID           `json:"project_id,omitempty"`
	PersonID          uuid.UUID            `json:"person_id"`
	Role              enums.AssignmentRole `json:"role"`
	WorkingPercentage types.Percentage     `json:"working_percentage"`
	StartDate         types.Date           `json:"start_date"`
	EndDate           *types.Date          `json:"end_date"`
	IsActive          bool                 `json:"is_active"`
	Version           int64                `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// CreateInput carries a new staffing request. IsActive defaults to true.
type CreateInput struct {
	PhaseID           uuid.UUID
	PersonID          uuid.UUID
	Role              enums.AssignmentRole
	WorkingPercentage types.Percentage
	StartDate         time.Time
	EndDate           *time.Time
	IsActive          *bool
}

// UpdateInput is a partial update guarded by ExpectedVersion.
type UpdateInput struct {
	ExpectedVersion   int64
	Role              *enums.AssignmentRole
	WorkingPercentage *types.Percentage
	StartDate         *time.Time
	EndDate           types.NullableDate
	IsActive          *bool
}

// WriteResult is returned by create/update. Check is nil when the write did
// not need an allocation check (e.g. the resulting assignment is inactive).
type WriteResult struct {
	Assignment AssignmentDTO             `json:"assignment"`
	Check      *allocation.ValidationDTO `json:"allocation_check,omitempty"`
	Warning    *types.Warning            `json:"-"`
}

func toDTO(a models.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:                a.ID,
		PhaseID:           a.PhaseID,
		PersonID:          a.PersonID,
		Role:              a.Role,
		WorkingPercentage: a.WorkingPercentage,
		StartDate:         types.NewDate(a.StartDate),
		EndDate:           types.DatePtr(a.EndDate),
		IsActive:          a.IsActive,
		Version:           a.Version,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if projectID, ok := a.ProjectID(); ok {
		dto.ProjectID = &projectID
	}
	return dto
}
