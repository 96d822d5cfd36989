package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/api/responses"
	"github.com/angelmondragon/atelier-backend/api/validators"
	"github.com/angelmondragon/atelier-backend/internal/assignments"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/logger"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

type createAssignmentRequest struct {
	PhaseID           *uuid.UUID        `json:"phase_id" validate:"required"`
	PersonID          *uuid.UUID        `json:"person_id" validate:"required"`
	Role              string            `json:"role"`
	WorkingPercentage *types.Percentage `json:"working_percentage" validate:"required"`
	StartDate         *types.Date       `json:"start_date" validate:"required"`
	EndDate           *types.Date       `json:"end_date"`
	IsActive          *bool             `json:"is_active"`
}

func (r createAssignmentRequest) toInput() (assignments.CreateInput, error) {
	input := assignments.CreateInput{
		PhaseID:           *r.PhaseID,
		PersonID:          *r.PersonID,
		WorkingPercentage: *r.WorkingPercentage,
		StartDate:         r.StartDate.Time,
		EndDate:           dateValue(r.EndDate),
		IsActive:          r.IsActive,
	}
	if strings.TrimSpace(r.Role) != "" {
		role, err := enums.ParseAssignmentRole(r.Role)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").WithDetails(map[string]string{"role": "must be one of [member leader]"})
		}
		input.Role = role
	}
	return input, nil
}

type updateAssignmentRequest struct {
	Version           *int64             `json:"version" validate:"required,gte=1"`
	Role              *string            `json:"role"`
	WorkingPercentage *types.Percentage  `json:"working_percentage"`
	StartDate         *types.Date        `json:"start_date"`
	EndDate           types.NullableDate `json:"end_date"`
	IsActive          *bool              `json:"is_active"`
}

func (r updateAssignmentRequest) toInput() (assignments.UpdateInput, error) {
	input := assignments.UpdateInput{
		ExpectedVersion:   *r.Version,
		WorkingPercentage: r.WorkingPercentage,
		StartDate:         dateValue(r.StartDate),
		EndDate:           r.EndDate,
		IsActive:          r.IsActive,
	}
	if r.Role != nil {
		role, err := enums.ParseAssignmentRole(*r.Role)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").WithDetails(map[string]string{"role": "must be one of [member leader]"})
		}
		input.Role = &role
	}
	return input, nil
}

// AssignmentCreate staffs a person on a phase, gated by the allocation check.
func AssignmentCreate(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		policy, err := parsePolicy(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAssignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPersonID(ctx, input.PersonID.String())
		}
		result, err := svc.Create(ctx, input, policy)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessWithWarnings(w, http.StatusCreated, result, result.Warning)
	}
}

// AssignmentUpdate applies a partial update guarded by the record version.
func AssignmentUpdate(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policy, err := parsePolicy(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateAssignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAssignmentID(ctx, id.String())
		}
		result, err := svc.Update(ctx, id, input, policy)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessWithWarnings(w, http.StatusOK, result, result.Warning)
	}
}

func AssignmentDeactivate(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}
		id, err := validators.ParseURLUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AssignmentDelete(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}
		id, err := validators.ParseURLUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AssignmentGet(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}
		id, err := validators.ParseURLUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// AssignmentList pages through one person's assignments.
func AssignmentList(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		personID, err := validators.ParseQueryUUID(r, "person_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if personID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "person_id is required"))
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		page, err := svc.ListByPerson(r.Context(), *personID, includeInactive, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parsePolicy(r *http.Request) (enums.OverallocationPolicy, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("overallocation"))
	if raw == "" {
		return "", nil
	}
	policy, err := enums.ParseOverallocationPolicy(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "overallocation must be reject or warn").WithDetails(map[string]any{"field": "overallocation"})
	}
	return policy, nil
}

func dateValue(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
