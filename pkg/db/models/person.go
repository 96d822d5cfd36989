package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/pkg/enums"
)

// Person is a directory entry that can be staffed on project phases.
type Person struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName string         `gorm:"column:first_name;not null"`
	LastName  string         `gorm:"column:last_name;not null"`
	Role      enums.TeamRole `gorm:"column:role;type:text;not null"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	// AllocationVersion is bumped by every assignment write for this person.
	AllocationVersion int64     `gorm:"column:allocation_version;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Person) TableName() string { return "people" }

// BeforeCreate assigns an id and normalizes the directory role.
func (p *Person) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	role, err := enums.ParseTeamRole(string(p.Role))
	if err != nil {
		return err
	}
	p.Role = role
	return nil
}
