package assignments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/atelier-backend/pkg/db/models"
	"github.com/angelmondragon/atelier-backend/pkg/enums"
	"github.com/angelmondragon/atelier-backend/pkg/types"
)

const staffingSchema = `
CREATE TABLE IF NOT EXISTS people (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  allocation_version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  client_name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS phases (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id),
  name TEXT NOT NULL,
  start_date DATE NOT NULL,
  end_date DATE,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  phase_id TEXT NOT NULL REFERENCES phases(id),
  person_id TEXT NOT NULL REFERENCES people(id),
  role TEXT NOT NULL,
  working_percentage NUMERIC NOT NULL,
  start_date DATE NOT NULL,
  end_date DATE,
  is_active INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`

func setupStaffingDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(staffingSchema).Error)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

type fixtures struct {
	t    *testing.T
	conn *gorm.DB
}

func (f fixtures) person(role enums.TeamRole, last string, active bool) models.Person {
	f.t.Helper()
	p := models.Person{
		Email:     fmt.Sprintf("%s-%s@atelier.test", last, uuid.NewString()[:8]),
		FirstName: "Test",
		LastName:  last,
		Role:      role,
		IsActive:  active,
	}
	require.NoError(f.t, f.conn.Create(&p).Error)
	return p
}

func (f fixtures) phase(projectCode string) models.Phase {
	f.t.Helper()
	var project models.Project
	err := f.conn.Where("code = ?", projectCode).First(&project).Error
	if err != nil {
		project = models.Project{Code: projectCode, Name: "Project " + projectCode, ClientName: "Client"}
		require.NoError(f.t, f.conn.Create(&project).Error)
	}
	phase := models.Phase{ProjectID: project.ID, Name: "Design", StartDate: day("2024-01-01")}
	require.NoError(f.t, f.conn.Create(&phase).Error)
	return phase
}

func (f fixtures) assignment(person models.Person, phase models.Phase, pct, start, end string, active bool) models.Assignment {
	f.t.Helper()
	a := models.Assignment{
		PhaseID:           phase.ID,
		PersonID:          person.ID,
		Role:              enums.AssignmentRoleMember,
		WorkingPercentage: types.MustPercentage(pct),
		StartDate:         day(start),
		IsActive:          active,
		Version:           1,
	}
	if end != "" {
		d := day(end)
		a.EndDate = &d
	}
	require.NoError(f.t, f.conn.Create(&a).Error)
	return a
}

func (f fixtures) allocationVersion(personID uuid.UUID) int64 {
	f.t.Helper()
	var p models.Person
	require.NoError(f.t, f.conn.Where("id = ?", personID).First(&p).Error)
	return p.AllocationVersion
}

func day(value string) time.Time {
	d, err := types.ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(value string) *time.Time {
	d := day(value)
	return &d
}

var bg = context.Background()
