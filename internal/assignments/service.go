package assignments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/internal/repo"
	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/logger"
	"github.com/angelmondragon/atelier-backend/pkg/metrics"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

// WarningOverallocated is the warning code attached to writes that exceed the
// ceiling under the warn policy.
const WarningOverallocated = "OVERALLOCATED"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the staffing workflow around the allocation engine.
type Service interface {
	Create(ctx context.Context, input CreateInput, policy enums.OverallocationPolicy) (*WriteResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, policy enums.OverallocationPolicy) (*WriteResult, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*AssignmentDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*AssignmentDTO, error)
	ListByPerson(ctx context.Context, personID uuid.UUID, includeInactive bool, params pagination.Params) (*pagination.Page[AssignmentDTO], error)
}

// Options tunes the workflow. An empty DefaultPolicy means reject.
type Options struct {
	DefaultPolicy enums.OverallocationPolicy
	// Strict compare-and-swaps the person's allocation version so two writers
	// cannot both pass the ceiling check against the same state.
	Strict  bool
	Metrics *metrics.AllocationMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	engine  allocation.Engine
	policy  enums.OverallocationPolicy
	strict  bool
	metrics *metrics.AllocationMetrics
	logg    *logger.Logger
}

// NewService builds the assignment workflow.
func NewService(repository Repository, tx txRunner, engine allocation.Engine, opts Options) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if engine == nil {
		return nil, fmt.Errorf("allocation engine required")
	}

	policy := opts.DefaultPolicy
	if policy == "" {
		policy = enums.OverallocationReject
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid default overallocation policy %q", policy)
	}

	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	return &service{
		repo:    repository,
		tx:      tx,
		engine:  engine,
		policy:  policy,
		strict:  opts.Strict,
		metrics: opts.Metrics,
		logg:    logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, policy enums.OverallocationPolicy) (*WriteResult, error) {
	policy, err := s.resolvePolicy(policy)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(&input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithPersonID(ctx, input.PersonID.String())

	if err := s.ensurePhase(ctx, input.PhaseID); err != nil {
		return nil, err
	}
	if err := s.ensurePerson(ctx, input.PersonID); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		PhaseID:           input.PhaseID,
		PersonID:          input.PersonID,
		Role:              input.Role,
		WorkingPercentage: input.WorkingPercentage,
		StartDate:         types.TruncateDate(input.StartDate),
		EndDate:           truncatePtr(input.EndDate),
		IsActive:          input.IsActive == nil || *input.IsActive,
	}

	expected, err := s.readAllocationVersion(ctx, input.PersonID)
	if err != nil {
		return nil, err
	}

	var check *allocation.Validation
	if assignment.IsActive {
		check, err = s.check(ctx, input.PersonID, assignment.WorkingPercentage, nil, policy)
		if err != nil {
			return nil, err
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.bumpAllocationVersion(ctx, txRepo, input.PersonID, expected); err != nil {
			return err
		}
		if err := txRepo.Create(ctx, assignment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncWrite("create")
	ctx = s.logg.WithAssignmentID(ctx, assignment.ID.String())
	s.logg.Info(ctx, "assignment created")

	return s.writeResult(ctx, assignment.ID, check, policy)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, policy enums.OverallocationPolicy) (*WriteResult, error) {
	policy, err := s.resolvePolicy(policy)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithAssignmentID(ctx, id.String())

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPersonID(ctx, existing.PersonID.String())

	if input.ExpectedVersion != existing.Version {
		return nil, versionConflict(input.ExpectedVersion, existing.Version)
	}

	updated, err := applyUpdate(*existing, input)
	if err != nil {
		return nil, err
	}

	expected, err := s.readAllocationVersion(ctx, existing.PersonID)
	if err != nil {
		return nil, err
	}

	var check *allocation.Validation
	if raisesAllocation(*existing, updated) {
		check, err = s.check(ctx, existing.PersonID, updated.WorkingPercentage, &existing.ID, policy)
		if err != nil {
			return nil, err
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.bumpAllocationVersion(ctx, txRepo, existing.PersonID, expected); err != nil {
			return err
		}
		ok, err := txRepo.UpdateVersioned(ctx, &updated, input.ExpectedVersion)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment was modified concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncWrite("update")
	s.logg.Info(ctx, "assignment updated")

	return s.writeResult(ctx, id, check, policy)
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*AssignmentDTO, error) {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		dto := toDTO(*existing)
		return &dto, nil
	}

	updated := *existing
	updated.IsActive = false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.bumpAllocationVersion(ctx, txRepo, existing.PersonID, nil); err != nil {
			return err
		}
		ok, err := txRepo.UpdateVersioned(ctx, &updated, existing.Version)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment was modified concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncWrite("deactivate")
	s.logg.Info(ctx, "assignment deactivated")
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := s.bumpAllocationVersion(ctx, txRepo, existing.PersonID, nil); err != nil {
			return err
		}
		deleted, err := txRepo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete assignment")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncWrite("delete")
	s.logg.Info(ctx, "assignment deleted")
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AssignmentDTO, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(*assignment)
	return &dto, nil
}

func (s *service) ListByPerson(ctx context.Context, personID uuid.UUID, includeInactive bool, params pagination.Params) (*pagination.Page[AssignmentDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err := s.ensurePerson(ctx, personID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByPerson(ctx, personID, includeInactive, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}

	page := pagination.Trim(rows, params.Limit, func(a models.Assignment) pagination.Cursor {
		return pagination.Cursor{SortKey: a.StartDate, ID: a.ID}
	})
	out := &pagination.Page[AssignmentDTO]{
		Items:      make([]AssignmentDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, row := range page.Items {
		out.Items = append(out.Items, toDTO(row))
	}
	return out, nil
}

// check runs the ceiling check and applies the policy. Under reject an
// over-allocating write fails; under warn the caller gets the result back.
func (s *service) check(ctx context.Context, personID uuid.UUID, pct types.Percentage, exclude *uuid.UUID, policy enums.OverallocationPolicy) (*allocation.Validation, error) {
	result, err := s.engine.ValidateNewAssignment(ctx, personID, pct, exclude)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current allocation")
	}
	s.metrics.ObserveCheck(result.IsOverallocated, policy.String())

	if result.IsOverallocated && policy == enums.OverallocationReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, overallocationMessage(*result)).
			WithDetails(allocation.ValidationToDTO(*result))
	}
	return result, nil
}

func (s *service) writeResult(ctx context.Context, id uuid.UUID, check *allocation.Validation, policy enums.OverallocationPolicy) (*WriteResult, error) {
	dto, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &WriteResult{Assignment: *dto}
	if check == nil {
		return result, nil
	}

	checkDTO := allocation.ValidationToDTO(*check)
	result.Check = &checkDTO
	if check.IsOverallocated && policy == enums.OverallocationWarn {
		result.Warning = &types.Warning{
			Code:    WarningOverallocated,
			Message: overallocationMessage(*check),
			Details: checkDTO,
		}
		s.logg.Warn(ctx, "assignment write exceeds allocation ceiling")
	}
	return result, nil
}

func (s *service) resolvePolicy(policy enums.OverallocationPolicy) (enums.OverallocationPolicy, error) {
	if policy == "" {
		return s.policy, nil
	}
	if !policy.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("overallocation must be %q or %q", enums.OverallocationReject, enums.OverallocationWarn))
	}
	return policy, nil
}

func (s *service) readAllocationVersion(ctx context.Context, personID uuid.UUID) (*int64, error) {
	if !s.strict {
		return nil, nil
	}
	version, err := s.repo.AllocationVersion(ctx, personID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, wrapPersonNotFound(personID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read allocation version")
	}
	return &version, nil
}

func (s *service) bumpAllocationVersion(ctx context.Context, txRepo Repository, personID uuid.UUID, expected *int64) error {
	ok, err := txRepo.BumpAllocationVersion(ctx, personID, expected)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump allocation version")
	}
	if ok {
		return nil
	}
	if expected != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "allocation changed concurrently").
			WithDetails(map[string]any{"person_id": personID})
	}
	return wrapPersonNotFound(personID)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return assignment, nil
}

func (s *service) ensurePhase(ctx context.Context, phaseID uuid.UUID) error {
	ok, err := s.repo.PhaseExists(ctx, phaseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup phase")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "phase not found")
	}
	return nil
}

func (s *service) ensurePerson(ctx context.Context, personID uuid.UUID) error {
	ok, err := s.repo.PersonExists(ctx, personID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup person")
	}
	if !ok {
		return wrapPersonNotFound(personID)
	}
	return nil
}

func wrapPersonNotFound(personID uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, allocation.ErrPersonNotFound, fmt.Sprintf("person %s not found", personID))
}

func versionConflict(expected, current int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "assignment version mismatch").
		WithDetails(map[string]int64{"expected_version": expected, "current_version": current})
}

func overallocationMessage(v allocation.Validation) string {
	return fmt.Sprintf("assignment would raise allocation to %s%% (currently %s%%)", v.ProposedTotal.String(), v.CurrentAllocation.String())
}

func validateCreate(input *CreateInput) error {
	var problems []string
	if input.PhaseID == uuid.Nil {
		problems = append(problems, "phase_id is required")
	}
	if input.PersonID == uuid.Nil {
		problems = append(problems, "person_id is required")
	}
	if input.Role == "" {
		input.Role = enums.AssignmentRoleMember
	}
	if !input.Role.IsValid() {
		problems = append(problems, fmt.Sprintf("role %q is not one of member, leader", input.Role))
	}
	if input.StartDate.IsZero() {
		problems = append(problems, "start_date is required")
	}
	if input.EndDate != nil && !input.StartDate.IsZero() && types.TruncateDate(*input.EndDate).Before(types.TruncateDate(input.StartDate)) {
		problems = append(problems, "end_date must not be before start_date")
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

func applyUpdate(a models.Assignment, input UpdateInput) (models.Assignment, error) {
	if input.Role != nil {
		if !input.Role.IsValid() {
			return a, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("role %q is not one of member, leader", *input.Role))
		}
		a.Role = *input.Role
	}
	if input.WorkingPercentage != nil {
		a.WorkingPercentage = *input.WorkingPercentage
	}
	if input.StartDate != nil {
		a.StartDate = types.TruncateDate(*input.StartDate)
	}
	if input.EndDate.Valid {
		a.EndDate = truncatePtr(input.EndDate.Value)
	}
	if input.IsActive != nil {
		a.IsActive = *input.IsActive
	}
	if a.EndDate != nil && a.EndDate.Before(types.TruncateDate(a.StartDate)) {
		return a, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date")
	}
	return a, nil
}

// raisesAllocation reports whether the write can increase the person's total:
// the assignment becomes active, or an active one asks for a higher percentage.
func raisesAllocation(before, after models.Assignment) bool {
	if !after.IsActive {
		return false
	}
	if !before.IsActive {
		return true
	}
	return after.WorkingPercentage.GreaterThan(before.WorkingPercentage.Decimal)
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := types.TruncateDate(*t)
	return &d
}
