package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/api/responses"
	"github.com/angelmondragon/atelier-backend/api/validators"
	"github.com/angelmondragon/atelier-backend/internal/allocation"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/logger"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

const maxTeamQueryPeople = 500

type validateAllocationRequest struct {
	PersonID            *uuid.UUID        `json:"person_id" validate:"required"`
	WorkingPercentage   *types.Percentage `json:"working_percentage" validate:"required"`
	ExcludeAssignmentID *uuid.UUID        `json:"exclude_assignment_id"`
}

// PersonAllocation returns the allocation snapshot of one person.
func PersonAllocation(engine allocation.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allocation engine unavailable"))
			return
		}

		personID, err := validators.ParseURLUUID(r, "personId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPersonID(ctx, personID.String())
		}
		snapshot, err := engine.ComputeAllocation(ctx, personID, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocation.SnapshotToDTO(*snapshot))
	}
}

// TeamAllocation returns snapshots for the active staffing roster, or for the
// explicit person_ids list (comma separated) when one is given.
func TeamAllocation(engine allocation.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allocation engine unavailable"))
			return
		}

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		personIDs, explicit, err := parsePersonIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var team *allocation.TeamAllocation
		if explicit {
			team, err = engine.ComputeTeamAllocation(r.Context(), personIDs, filter)
		} else {
			team, err = engine.ComputeRosterAllocation(r.Context(), filter)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocation.TeamAllocationToDTO(*team))
	}
}

// ValidateAllocation previews whether adding a percentage would over-allocate
// a person. It never writes.
func ValidateAllocation(engine allocation.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allocation engine unavailable"))
			return
		}

		var payload validateAllocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.ValidateNewAssignment(r.Context(), *payload.PersonID, *payload.WorkingPercentage, payload.ExcludeAssignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocation.ValidationToDTO(*result))
	}
}

func parseFilter(r *http.Request) (allocation.Filter, error) {
	start, err := validators.ParseQueryDate(r, "date_range_start")
	if err != nil {
		return allocation.Filter{}, err
	}
	end, err := validators.ParseQueryDate(r, "date_range_end")
	if err != nil {
		return allocation.Filter{}, err
	}
	projectID, err := validators.ParseQueryUUID(r, "project_id")
	if err != nil {
		return allocation.Filter{}, err
	}
	return allocation.Filter{DateRangeStart: start, DateRangeEnd: end, ProjectID: projectID}, nil
}

func parsePersonIDs(r *http.Request) ([]uuid.UUID, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("person_ids"))
	if raw == "" {
		return nil, false, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxTeamQueryPeople {
		return nil, true, pkgerrors.New(pkgerrors.CodeValidation, "too many person_ids").WithDetails(map[string]any{"max": maxTeamQueryPeople})
	}
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "person_ids must be uuids").WithDetails(map[string]any{"value": part})
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}
