package allocation

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

type ContributionDTO struct {
	AssignmentID      uuid.UUID            `json:"assignment_id"`
	PhaseID           uuid.UUID            `json:"phase_id"`
	ProjectID         *uuid.UUID           `json:"project_id,omitempty"`
	Role              enums.AssignmentRole `json:"role"`
	WorkingPercentage types.Percentage     `json:"working_percentage"`
	StartDate         types.Date           `json:"start_date"`
	EndDate           *types.Date          `json:"end_date"`
}

type SnapshotDTO struct {
	PersonID        uuid.UUID         `json:"person_id"`
	TotalAllocation types.Number      `json:"total_allocation"`
	IsOverallocated bool              `json:"is_overallocated"`
	Assignments     []ContributionDTO `json:"assignments"`
}

type TeamAllocationDTO struct {
	TotalPeople        int           `json:"total_people"`
	AllocatedCount     int           `json:"allocated_count"`
	OverallocatedCount int           `json:"overallocated_count"`
	People             []SnapshotDTO `json:"people"`
}

type ValidationDTO struct {
	IsOverallocated   bool         `json:"is_overallocated"`
	CurrentAllocation types.Number `json:"current_allocation"`
	ProposedTotal     types.Number `json:"proposed_total"`
}

func SnapshotToDTO(s Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		PersonID:        s.PersonID,
		TotalAllocation: types.NewNumber(s.TotalAllocation),
		IsOverallocated: s.IsOverallocated,
		Assignments:     make([]ContributionDTO, 0, len(s.Assignments)),
	}
	for _, c := range s.Assignments {
		dto.Assignments = append(dto.Assignments, ContributionDTO{
			AssignmentID:      c.AssignmentID,
			PhaseID:           c.PhaseID,
			ProjectID:         c.ProjectID,
			Role:              c.Role,
			WorkingPercentage: c.WorkingPercentage,
			StartDate:         types.NewDate(c.StartDate),
			EndDate:           types.DatePtr(c.EndDate),
		})
	}
	return dto
}

func TeamAllocationToDTO(t TeamAllocation) TeamAllocationDTO {
	dto := TeamAllocationDTO{
		TotalPeople:        t.TotalPeople,
		AllocatedCount:     t.AllocatedCount,
		OverallocatedCount: t.OverallocatedCount,
		People:             make([]SnapshotDTO, 0, len(t.Snapshots)),
	}
	for _, s := range t.Snapshots {
		dto.People = append(dto.People, SnapshotToDTO(s))
	}
	return dto
}

func ValidationToDTO(v Validation) ValidationDTO {
	return ValidationDTO{
		IsOverallocated:   v.IsOverallocated,
		CurrentAllocation: types.NewNumber(v.CurrentAllocation),
		ProposedTotal:     types.NewNumber(v.ProposedTotal),
	}
}
