package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

// Ceiling is the concurrent commitment a person may carry without being over-allocated.
var Ceiling = decimal.NewFromInt(100)

// Contribution is one assignment counted in a snapshot.
type Contribution struct {
	AssignmentID      uuid.UUID
	PhaseID           uuid.UUID
	ProjectID         *uuid.UUID
	Role              enums.AssignmentRole
	WorkingPercentage types.Percentage
	StartDate         time.Time
	EndDate           *time.Time
}

// Snapshot is the computed allocation of one person. It is never stored.
type Snapshot struct {
	PersonID        uuid.UUID
	TotalAllocation decimal.Decimal
	IsOverallocated bool
	Assignments     []Contribution
}

// TeamAllocation holds a snapshot per roster entry plus summary counts.
type TeamAllocation struct {
	Snapshots          []Snapshot
	TotalPeople        int
	AllocatedCount     int
	OverallocatedCount int
}

// Validation is the advisory outcome of checking a proposed assignment.
type Validation struct {
	IsOverallocated   bool
	CurrentAllocation decimal.Decimal
	ProposedTotal     decimal.Decimal
}

// Engine aggregates concurrent commitment and classifies over-allocation.
type Engine interface {
	ComputeAllocation(ctx context.Context, personID uuid.UUID, filter Filter) (*Snapshot, error)
	ComputeTeamAllocation(ctx context.Context, personIDs []uuid.UUID, filter Filter) (*TeamAllocation, error)
	ComputeRosterAllocation(ctx context.Context, filter Filter) (*TeamAllocation, error)
	ValidateNewAssignment(ctx context.Context, personID uuid.UUID, proposed types.Percentage, excludeAssignmentID *uuid.UUID) (*Validation, error)
}

type engine struct {
	store Store
}

// NewEngine builds an engine over the provided store.
func NewEngine(store Store) (Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("allocation store required")
	}
	return &engine{store: store}, nil
}

func (e *engine) ComputeAllocation(ctx context.Context, personID uuid.UUID, filter Filter) (*Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := e.ensurePerson(ctx, personID); err != nil {
		return nil, err
	}

	assignments, err := e.store.FindActiveAssignments(ctx, personID, filter)
	if err != nil {
		return nil, err
	}
	snapshot := buildSnapshot(personID, assignments, filter)
	return &snapshot, nil
}

// ComputeTeamAllocation resolves every requested id first; any unknown id
// fails the whole call with ErrPersonNotFound.
func (e *engine) ComputeTeamAllocation(ctx context.Context, personIDs []uuid.UUID, filter Filter) (*TeamAllocation, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	roster := dedupe(personIDs)
	if len(roster) > 0 {
		if err := e.ensurePeople(ctx, roster); err != nil {
			return nil, err
		}
	}
	return e.team(ctx, roster, filter)
}

func (e *engine) team(ctx context.Context, roster []uuid.UUID, filter Filter) (*TeamAllocation, error) {
	team := &TeamAllocation{Snapshots: make([]Snapshot, 0, len(roster))}
	if len(roster) == 0 {
		return team, nil
	}

	byPerson, err := e.store.FindActiveAssignmentsForRoster(ctx, roster, filter)
	if err != nil {
		return nil, err
	}

	for _, personID := range roster {
		snapshot := buildSnapshot(personID, byPerson[personID], filter)
		team.Snapshots = append(team.Snapshots, snapshot)
		if snapshot.TotalAllocation.IsPositive() {
			team.AllocatedCount++
		}
		if snapshot.IsOverallocated {
			team.OverallocatedCount++
		}
	}
	team.TotalPeople = len(team.Snapshots)
	return team, nil
}

// ComputeRosterAllocation computes the team view over the store's active
// roster. Roster ids come from the directory, so they are not re-resolved.
func (e *engine) ComputeRosterAllocation(ctx context.Context, filter Filter) (*TeamAllocation, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	roster, err := e.store.FindActivePeopleRoster(ctx)
	if err != nil {
		return nil, err
	}
	return e.team(ctx, dedupe(roster), filter)
}

func (e *engine) ValidateNewAssignment(ctx context.Context, personID uuid.UUID, proposed types.Percentage, excludeAssignmentID *uuid.UUID) (*Validation, error) {
	if err := e.ensurePerson(ctx, personID); err != nil {
		return nil, err
	}

	assignments, err := e.store.FindActiveAssignments(ctx, personID, Filter{})
	if err != nil {
		return nil, err
	}

	current := decimal.Zero
	for _, a := range assignments {
		if a.PersonID != personID || !a.IsActive {
			continue
		}
		if excludeAssignmentID != nil && a.ID == *excludeAssignmentID {
			continue
		}
		current = current.Add(a.WorkingPercentage.Decimal)
	}

	total := current.Add(proposed.Decimal)
	return &Validation{
		IsOverallocated:   total.GreaterThan(Ceiling),
		CurrentAllocation: current,
		ProposedTotal:     total,
	}, nil
}

func (e *engine) ensurePerson(ctx context.Context, personID uuid.UUID) error {
	exists, err := e.store.PersonExists(ctx, personID)
	if err != nil {
		return err
	}
	if !exists {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrPersonNotFound, fmt.Sprintf("person %s not found", personID))
	}
	return nil
}

func buildSnapshot(personID uuid.UUID, assignments []models.Assignment, filter Filter) Snapshot {
	snapshot := Snapshot{
		PersonID:        personID,
		TotalAllocation: decimal.Zero,
		Assignments:     make([]Contribution, 0, len(assignments)),
	}
	for _, a := range assignments {
		if a.PersonID != personID || !filter.Matches(a) {
			continue
		}
		snapshot.TotalAllocation = snapshot.TotalAllocation.Add(a.WorkingPercentage.Decimal)
		snapshot.Assignments = append(snapshot.Assignments, contributionOf(a))
	}
	snapshot.IsOverallocated = snapshot.TotalAllocation.GreaterThan(Ceiling)
	return snapshot
}

func contributionOf(a models.Assignment) Contribution {
	c := Contribution{
		AssignmentID:      a.ID,
		PhaseID:           a.PhaseID,
		Role:              a.Role,
		WorkingPercentage: a.WorkingPercentage,
		StartDate:         a.StartDate,
		EndDate:           a.EndDate,
	}
	if projectID, ok := a.ProjectID(); ok {
		c.ProjectID = &projectID
	}
	return c
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (e *engine) ensurePeople(ctx context.Context, personIDs []uuid.UUID) error {
	known, err := e.store.FindExistingPeople(ctx, personIDs)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]struct{}, len(known))
	for _, id := range known {
		found[id] = struct{}{}
	}
	var missing []string
	for _, id := range personIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrPersonNotFound, fmt.Sprintf("people not found: %s", strings.Join(missing, ", "))).
		WithDetails(map[string]any{"missing_person_ids": missing})
}
