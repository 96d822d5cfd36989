package assignments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/pkg/db"
	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/metrics"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

type serviceHarness struct {
	fixtures
	svc  Service
	repo Repository
}

func newHarness(t *testing.T, opts Options) serviceHarness {
	t.Helper()
	conn := setupStaffingDB(t)
	repository := NewRepository(conn)
	return newHarnessWithRepo(t, conn, repository, opts)
}

func newHarnessWithRepo(t *testing.T, conn *gorm.DB, repository Repository, opts Options) serviceHarness {
	t.Helper()
	engine, err := allocation.NewEngine(repository)
	require.NoError(t, err)
	svc, err := NewService(repository, db.FromConn(conn), engine, opts)
	require.NoError(t, err)
	return serviceHarness{fixtures: fixtures{t: t, conn: conn}, svc: svc, repo: repository}
}

func createInput(person models.Person, phase models.Phase, pct string) CreateInput {
	return CreateInput{
		PhaseID:           phase.ID,
		PersonID:          person.ID,
		WorkingPercentage: types.MustPercentage(pct),
		StartDate:         day("2024-04-01"),
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "error: %v", err)
	return typed
}

func countAssignments(t *testing.T, conn *gorm.DB, personID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Assignment{}).Where("person_id = ?", personID).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	conn := setupStaffingDB(t)
	repository := NewRepository(conn)
	engine, err := allocation.NewEngine(repository)
	require.NoError(t, err)

	_, err = NewService(nil, db.FromConn(conn), engine, Options{})
	assert.Error(t, err)
	_, err = NewService(repository, nil, engine, Options{})
	assert.Error(t, err)
	_, err = NewService(repository, db.FromConn(conn), nil, Options{})
	assert.Error(t, err)
	_, err = NewService(repository, db.FromConn(conn), engine, Options{DefaultPolicy: "ignore"})
	assert.Error(t, err)
}

func TestCreateWithinCeiling(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, Options{Metrics: metrics.NewAllocationMetrics(reg)})
	person := h.person(enums.TeamRoleMember, "Lee", true)
	phase := h.phase("C-1")
	h.assignment(person, phase, "40", "2024-01-01", "", true)

	input := createInput(person, phase, "60")
	input.EndDate = dayPtr("2024-06-30")
	res, err := h.svc.Create(bg, input, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Assignment.Version)
	assert.Equal(t, enums.AssignmentRoleMember, res.Assignment.Role)
	assert.True(t, res.Assignment.IsActive)
	require.NotNil(t, res.Assignment.ProjectID)
	assert.Equal(t, phase.ProjectID, *res.Assignment.ProjectID)
	require.NotNil(t, res.Assignment.EndDate)
	assert.Equal(t, "2024-06-30", res.Assignment.EndDate.Format(types.DateLayout))
	require.NotNil(t, res.Check)
	assert.False(t, res.Check.IsOverallocated)
	assert.True(t, res.Check.ProposedTotal.Equal(decimal.NewFromInt(100)))
	assert.Nil(t, res.Warning)
	assert.Equal(t, int64(1), h.allocationVersion(person.ID))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCreateRejectsOverallocationByDefault(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Kim", true)
	phase := h.phase("C-2")
	h.assignment(person, phase, "80", "2024-01-01", "", true)

	_, err := h.svc.Create(bg, createInput(person, phase, "30"), "")
	typed := requireCode(t, err, pkgerrors.CodeValidation)

	details, ok := typed.Details().(allocation.ValidationDTO)
	require.True(t, ok, "details should carry the check result")
	assert.True(t, details.IsOverallocated)
	assert.True(t, details.CurrentAllocation.Equal(decimal.NewFromInt(80)))
	assert.True(t, details.ProposedTotal.Equal(decimal.NewFromInt(110)))

	assert.Equal(t, int64(1), countAssignments(t, h.conn, person.ID), "nothing written")
	assert.Equal(t, int64(0), h.allocationVersion(person.ID))
}

func TestCreateWarnPolicyPersistsWithWarning(t *testing.T) {
	h := newHarness(t, Options{DefaultPolicy: enums.OverallocationReject})
	person := h.person(enums.TeamRoleLeader, "Ng", true)
	phase := h.phase("C-3")
	h.assignment(person, phase, "80", "2024-01-01", "", true)

	res, err := h.svc.Create(bg, createInput(person, phase, "30"), enums.OverallocationWarn)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, WarningOverallocated, res.Warning.Code)
	require.NotNil(t, res.Check)
	assert.True(t, res.Check.IsOverallocated)
	assert.Equal(t, int64(2), countAssignments(t, h.conn, person.ID))
}

func TestCreateDefaultWarnPolicyFromOptions(t *testing.T) {
	h := newHarness(t, Options{DefaultPolicy: enums.OverallocationWarn})
	person := h.person(enums.TeamRoleMember, "Ruiz", true)
	phase := h.phase("C-4")

	res, err := h.svc.Create(bg, createInput(person, phase, "100"), "")
	require.NoError(t, err)
	assert.Nil(t, res.Warning)

	res, err = h.svc.Create(bg, createInput(person, phase, "1"), "")
	require.NoError(t, err)
	require.NotNil(t, res.Warning)

	_, err = h.svc.Create(bg, createInput(person, phase, "1"), enums.OverallocationPolicy("maybe"))
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateInactiveSkipsCheck(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Ola", true)
	phase := h.phase("C-5")
	h.assignment(person, phase, "100", "2024-01-01", "", true)

	inactive := false
	input := createInput(person, phase, "50")
	input.IsActive = &inactive

	res, err := h.svc.Create(bg, input, enums.OverallocationReject)
	require.NoError(t, err)
	assert.False(t, res.Assignment.IsActive)
	assert.Nil(t, res.Check)
}

func TestCreateValidatesReferencesAndDates(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Ref", true)
	phase := h.phase("C-6")

	missingPhase := createInput(person, phase, "10")
	missingPhase.PhaseID = uuid.New()
	_, err := h.svc.Create(bg, missingPhase, "")
	requireCode(t, err, pkgerrors.CodeNotFound)

	missingPerson := createInput(person, phase, "10")
	missingPerson.PersonID = uuid.New()
	_, err = h.svc.Create(bg, missingPerson, "")
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.ErrorIs(t, typed, allocation.ErrPersonNotFound)

	backwards := createInput(person, phase, "10")
	backwards.EndDate = dayPtr("2024-03-01")
	_, err = h.svc.Create(bg, backwards, "")
	requireCode(t, err, pkgerrors.CodeValidation)

	badRole := createInput(person, phase, "10")
	badRole.Role = enums.AssignmentRole("owner")
	_, err = h.svc.Create(bg, badRole, "")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateExcludesOwnContribution(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Self", true)
	phase := h.phase("U-1")
	existing := h.assignment(person, phase, "60", "2024-01-01", "", true)

	pct := types.MustPercentage("100")
	res, err := h.svc.Update(bg, existing.ID, UpdateInput{ExpectedVersion: 1, WorkingPercentage: &pct}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Assignment.Version)
	assert.True(t, res.Assignment.WorkingPercentage.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, res.Check)
	assert.True(t, res.Check.CurrentAllocation.IsZero())
	assert.False(t, res.Check.IsOverallocated)
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Stale", true)
	phase := h.phase("U-2")
	existing := h.assignment(person, phase, "20", "2024-01-01", "", true)

	role := enums.AssignmentRoleLeader
	_, err := h.svc.Update(bg, existing.ID, UpdateInput{ExpectedVersion: 3, Role: &role}, "")
	typed := requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, map[string]int64{"expected_version": 3, "current_version": 1}, typed.Details())

	_, err = h.svc.Update(bg, uuid.New(), UpdateInput{ExpectedVersion: 1}, "")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateRejectsIncreaseOverCeiling(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Tight", true)
	phase := h.phase("U-3")
	h.assignment(person, phase, "70", "2024-01-01", "", true)
	target := h.assignment(person, phase, "20", "2024-01-01", "", true)

	pct := types.MustPercentage("40")
	_, err := h.svc.Update(bg, target.ID, UpdateInput{ExpectedVersion: 1, WorkingPercentage: &pct}, enums.OverallocationReject)
	requireCode(t, err, pkgerrors.CodeValidation)

	got, err := h.svc.Get(bg, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.WorkingPercentage.Equal(decimal.NewFromInt(20)))

	lower := types.MustPercentage("10")
	res, err := h.svc.Update(bg, target.ID, UpdateInput{ExpectedVersion: 1, WorkingPercentage: &lower}, enums.OverallocationReject)
	require.NoError(t, err)
	assert.Nil(t, res.Check, "lowering never needs a check")
}

func TestUpdateReactivationIsChecked(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Back", true)
	phase := h.phase("U-4")
	h.assignment(person, phase, "90", "2024-01-01", "", true)
	dormant := h.assignment(person, phase, "20", "2024-01-01", "", false)

	active := true
	_, err := h.svc.Update(bg, dormant.ID, UpdateInput{ExpectedVersion: 1, IsActive: &active}, "")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateClearsAndValidatesEndDate(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Dates", true)
	phase := h.phase("U-5")
	existing := h.assignment(person, phase, "20", "2024-02-01", "2024-02-28", true)

	res, err := h.svc.Update(bg, existing.ID, UpdateInput{ExpectedVersion: 1, EndDate: types.NullableDate{Valid: true}}, "")
	require.NoError(t, err)
	assert.Nil(t, res.Assignment.EndDate)

	_, err = h.svc.Update(bg, existing.ID, UpdateInput{ExpectedVersion: 2, EndDate: types.NullableDate{Valid: true, Value: dayPtr("2024-01-01")}}, "")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeactivateIsIdempotentAndFreesCapacity(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Off", true)
	phase := h.phase("D-1")
	existing := h.assignment(person, phase, "100", "2024-01-01", "", true)

	dto, err := h.svc.Deactivate(bg, existing.ID)
	require.NoError(t, err)
	assert.False(t, dto.IsActive)
	assert.Equal(t, int64(2), dto.Version)

	again, err := h.svc.Deactivate(bg, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)

	_, err = h.svc.Create(bg, createInput(person, phase, "100"), enums.OverallocationReject)
	require.NoError(t, err)
}

func TestDeleteRemovesAssignment(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "Del", true)
	phase := h.phase("D-2")
	existing := h.assignment(person, phase, "50", "2024-01-01", "", true)

	require.NoError(t, h.svc.Delete(bg, existing.ID))
	_, err := h.svc.Get(bg, existing.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	requireCode(t, h.svc.Delete(bg, existing.ID), pkgerrors.CodeNotFound)
	assert.Equal(t, int64(1), h.allocationVersion(person.ID))
}

func TestListByPersonPages(t *testing.T) {
	h := newHarness(t, Options{})
	person := h.person(enums.TeamRoleMember, "List", true)
	phase := h.phase("L-1")
	h.assignment(person, phase, "10", "2024-01-01", "", true)
	h.assignment(person, phase, "10", "2024-02-01", "", true)
	h.assignment(person, phase, "10", "2024-03-01", "", true)

	page, err := h.svc.ListByPerson(bg, person.ID, false, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.ListByPerson(bg, person.ID, false, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "2024-03-01", rest.Items[0].StartDate.Format(types.DateLayout))
	assert.Empty(t, rest.NextCursor)

	_, err = h.svc.ListByPerson(bg, person.ID, false, pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.ListByPerson(bg, uuid.New(), false, pagination.Params{})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

// racingRepository simulates another writer committing between the strict
// version read and the write.
type racingRepository struct {
	Repository
	conn *gorm.DB
}

func (r racingRepository) AllocationVersion(ctx context.Context, personID uuid.UUID) (int64, error) {
	version, err := r.Repository.AllocationVersion(ctx, personID)
	if err != nil {
		return 0, err
	}
	err = r.conn.Model(&models.Person{}).Where("id = ?", personID).
		UpdateColumn("allocation_version", gorm.Expr("allocation_version + 1")).Error
	return version, err
}

func TestStrictModeDetectsConcurrentAllocationChange(t *testing.T) {
	conn := setupStaffingDB(t)
	racing := racingRepository{Repository: NewRepository(conn), conn: conn}
	h := newHarnessWithRepo(t, conn, racing, Options{Strict: true})
	person := h.person(enums.TeamRoleMember, "Race", true)
	phase := h.phase("S-1")

	_, err := h.svc.Create(bg, createInput(person, phase, "10"), "")
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, int64(0), countAssignments(t, conn, person.ID))
}

func TestStrictModeWritesWhenUncontended(t *testing.T) {
	h := newHarness(t, Options{Strict: true})
	person := h.person(enums.TeamRoleMember, "Calm", true)
	phase := h.phase("S-2")

	_, err := h.svc.Create(bg, createInput(person, phase, "10"), "")
	require.NoError(t, err)
	_, err = h.svc.Create(bg, createInput(person, phase, "10"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.allocationVersion(person.ID))
}
