package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/pkg/logger"
	"github.com/angelmondragon/atelier-backend/pkg/metrics"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

const (
	OverallocationScanJobName = "allocation-overallocation-scan"
	defaultLookaheadDays      = 14

	windowToday     = "today"
	windowLookahead = "lookahead"
)

type rosterAllocator interface {
	ComputeRosterAllocation(ctx context.Context, filter allocation.Filter) (*allocation.TeamAllocation, error)
}

// OverallocationScanJobParams configures the periodic over-allocation scan.
type OverallocationScanJobParams struct {
	Logger        *logger.Logger
	Engine        rosterAllocator
	Metrics       *metrics.AllocationMetrics
	LookaheadDays int
}

type scanWindow struct {
	name  string
	start time.Time
	end   time.Time
}

type overallocationScanJob struct {
	logg      *logger.Logger
	engine    rosterAllocator
	metrics   *metrics.AllocationMetrics
	lookahead int
	now       func() time.Time
}

// NewOverallocationScanJob builds the job. It only reads; assignments are never changed.
func NewOverallocationScanJob(params OverallocationScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("allocation engine required")
	}
	lookahead := params.LookaheadDays
	if lookahead <= 0 {
		lookahead = defaultLookaheadDays
	}
	return &overallocationScanJob{
		logg:      params.Logger,
		engine:    params.Engine,
		metrics:   params.Metrics,
		lookahead: lookahead,
		now:       time.Now,
	}, nil
}

func (j *overallocationScanJob) Name() string { return OverallocationScanJobName }

// Run scans each window independently so one failing window does not hide the other.
func (j *overallocationScanJob) Run(ctx context.Context) error {
	var errs error
	for _, window := range j.windows() {
		if err := j.scan(ctx, window); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("window %s: %w", window.name, err))
		}
	}
	return errs
}

func (j *overallocationScanJob) windows() []scanWindow {
	today := types.TruncateDate(j.now())
	return []scanWindow{
		{name: windowToday, start: today, end: today},
		{name: windowLookahead, start: today, end: today.AddDate(0, 0, j.lookahead)},
	}
}

func (j *overallocationScanJob) scan(ctx context.Context, window scanWindow) error {
	ctx = j.logg.WithFields(ctx, map[string]any{
		"window":       window.name,
		"window_start": window.start.Format(types.DateLayout),
		"window_end":   window.end.Format(types.DateLayout),
	})

	start, end := window.start, window.end
	team, err := j.engine.ComputeRosterAllocation(ctx, allocation.Filter{DateRangeStart: &start, DateRangeEnd: &end})
	if err != nil {
		return err
	}

	j.metrics.SetScan(window.name, team.TotalPeople, team.OverallocatedCount)
	for _, snapshot := range team.Snapshots {
		if !snapshot.IsOverallocated {
			continue
		}
		personCtx := j.logg.WithPersonID(ctx, snapshot.PersonID.String())
		personCtx = j.logg.WithFields(personCtx, map[string]any{
			"total_allocation": snapshot.TotalAllocation.String(),
			"assignment_count": len(snapshot.Assignments),
		})
		j.logg.Warn(personCtx, "person over-allocated")
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"roster_people":        team.TotalPeople,
		"allocated_people":     team.AllocatedCount,
		"overallocated_people": team.OverallocatedCount,
	}), "allocation scan complete")
	return nil
}
