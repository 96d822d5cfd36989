package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Phase is a stage of a project that people get assigned to.
type Phase struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID uuid.UUID  `gorm:"column:project_id;type:uuid;not null;index"`
	Name      string     `gorm:"column:name;not null"`
	StartDate time.Time  `gorm:"column:start_date;type:date;not null"`
	EndDate   *time.Time `gorm:"column:end_date;type:date"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Phase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
