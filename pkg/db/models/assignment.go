package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

// Assignment commits a person to a phase at a working percentage for an
// inclusive date interval. A nil EndDate means open-ended.
type Assignment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID           uuid.UUID            `gorm:"column:phase_id;type:uuid;not null;index"`
	PersonID          uuid.UUID            `gorm:"column:person_id;type:uuid;not null;index"`
	Role              enums.AssignmentRole `gorm:"column:role;type:text;not null"`
	WorkingPercentage types.Percentage     `gorm:"column:working_percentage;type:numeric(5,2);not null"`
	StartDate         time.Time            `gorm:"column:start_date;type:date;not null"`
	EndDate           *time.Time           `gorm:"column:end_date;type:date"`
	IsActive          bool                 `gorm:"column:is_active;not null"`
	Version           int64                `gorm:"column:version;not null"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Phase *Phase `gorm:"foreignKey:PhaseID;references:ID"`
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ProjectID resolves the owning project through the preloaded phase.
func (a Assignment) ProjectID() (uuid.UUID, bool) {
	if a.Phase == nil {
		return uuid.Nil, false
	}
	return a.Phase.ProjectID, true
}
