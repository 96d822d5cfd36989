package allocation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/atelier-backend/pkg/errors"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

var (
	// ErrInvalidFilter marks a filter whose date range ends before it starts.
	ErrInvalidFilter = errors.New("invalid allocation filter")
	// ErrPersonNotFound marks a person id unknown to the directory.
	ErrPersonNotFound = errors.New("person not found")
)

// Filter narrows which assignments count toward an allocation. Every field is
// optional; a nil bound leaves that side of the window open.
type Filter struct {
	DateRangeStart *time.Time
	DateRangeEnd   *time.Time
	ProjectID      *uuid.UUID
}

// Validate rejects windows with end < start.
func (f Filter) Validate() error {
	if f.DateRangeStart == nil || f.DateRangeEnd == nil {
		return nil
	}
	start := types.TruncateDate(*f.DateRangeStart)
	end := types.TruncateDate(*f.DateRangeEnd)
	if end.Before(start) {
		return pkgerrors.Wrap(
			pkgerrors.CodeValidation,
			ErrInvalidFilter,
			fmt.Sprintf("date_range_end %s is before date_range_start %s", end.Format(types.DateLayout), start.Format(types.DateLayout)),
		)
	}
	return nil
}

// Matches reports whether a counts under f. Inactive assignments never match.
// Overlap is inclusive on both ends and an open-ended assignment has no upper bound.
func (f Filter) Matches(a models.Assignment) bool {
	if !a.IsActive {
		return false
	}
	if f.DateRangeEnd != nil && types.TruncateDate(a.StartDate).After(types.TruncateDate(*f.DateRangeEnd)) {
		return false
	}
	if f.DateRangeStart != nil && a.EndDate != nil && types.TruncateDate(*a.EndDate).Before(types.TruncateDate(*f.DateRangeStart)) {
		return false
	}
	if f.ProjectID != nil {
		projectID, ok := a.ProjectID()
		if !ok || projectID != *f.ProjectID {
			return false
		}
	}
	return true
}
