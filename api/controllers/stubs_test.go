package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/internal/assignments"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/pagination"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

type stubEngine struct {
	compute  func(ctx context.Context, personID uuid.UUID, filter allocation.Filter) (*allocation.Snapshot, error)
	team     func(ctx context.Context, personIDs []uuid.UUID, filter allocation.Filter) (*allocation.TeamAllocation, error)
	roster   func(ctx context.Context, filter allocation.Filter) (*allocation.TeamAllocation, error)
	validate func(ctx context.Context, personID uuid.UUID, proposed types.Percentage, exclude *uuid.UUID) (*allocation.Validation, error)
}

func (s *stubEngine) ComputeAllocation(ctx context.Context, personID uuid.UUID, filter allocation.Filter) (*allocation.Snapshot, error) {
	if s.compute != nil {
		return s.compute(ctx, personID, filter)
	}
	panic("not implemented")
}

func (s *stubEngine) ComputeTeamAllocation(ctx context.Context, personIDs []uuid.UUID, filter allocation.Filter) (*allocation.TeamAllocation, error) {
	if s.team != nil {
		return s.team(ctx, personIDs, filter)
	}
	panic("not implemented")
}

func (s *stubEngine) ComputeRosterAllocation(ctx context.Context, filter allocation.Filter) (*allocation.TeamAllocation, error) {
	if s.roster != nil {
		return s.roster(ctx, filter)
	}
	panic("not implemented")
}

func (s *stubEngine) ValidateNewAssignment(ctx context.Context, personID uuid.UUID, proposed types.Percentage, exclude *uuid.UUID) (*allocation.Validation, error) {
	if s.validate != nil {
		return s.validate(ctx, personID, proposed, exclude)
	}
	panic("not implemented")
}

type stubAssignmentService struct {
	create     func(ctx context.Context, input assignments.CreateInput, policy enums.OverallocationPolicy) (*assignments.WriteResult, error)
	update     func(ctx context.Context, id uuid.UUID, input assignments.UpdateInput, policy enums.OverallocationPolicy) (*assignments.WriteResult, error)
	deactivate func(ctx context.Context, id uuid.UUID) (*assignments.AssignmentDTO, error)
	remove     func(ctx context.Context, id uuid.UUID) error
	get        func(ctx context.Context, id uuid.UUID) (*assignments.AssignmentDTO, error)
	list       func(ctx context.Context, personID uuid.UUID, includeInactive bool, params pagination.Params) (*pagination.Page[assignments.AssignmentDTO], error)
}

func (s *stubAssignmentService) Create(ctx context.Context, input assignments.CreateInput, policy enums.OverallocationPolicy) (*assignments.WriteResult, error) {
	if s.create != nil {
		return s.create(ctx, input, policy)
	}
	panic("not implemented")
}

func (s *stubAssignmentService) Update(ctx context.Context, id uuid.UUID, input assignments.UpdateInput, policy enums.OverallocationPolicy) (*assignments.WriteResult, error) {
	if s.update != nil {
		return s.update(ctx, id, input, policy)
	}
	panic("not implemented")
}

func (s *stubAssignmentService) Deactivate(ctx context.Context, id uuid.UUID) (*assignments.AssignmentDTO, error) {
	if s.deactivate != nil {
		return s.deactivate(ctx, id)
	}
	panic("not implemented")
}

func (s *stubAssignmentService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.remove != nil {
		return s.remove(ctx, id)
	}
	panic("not implemented")
}

func (s *stubAssignmentService) Get(ctx context.Context, id uuid.UUID) (*assignments.AssignmentDTO, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	panic("not implemented")
}

func (s *stubAssignmentService) ListByPerson(ctx context.Context, personID uuid.UUID, includeInactive bool, params pagination.Params) (*pagination.Page[assignments.AssignmentDTO], error) {
	if s.list != nil {
		return s.list(ctx, personID, includeInactive, params)
	}
	panic("not implemented")
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
