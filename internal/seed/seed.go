package seed

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// Fixture is the reference data a fresh study center needs before offerings can be scheduled.
type Fixture struct {
	Departments []models.Department `yaml:"departments"`
	Subjects    []models.Subject    `yaml:"subjects"`
	Rooms       []models.Room       `yaml:"rooms"`
	Instructors []models.Instructor `yaml:"instructors"`
}

// Store persists reference data.
type Store interface {
	UpsertDepartment(ctx context.Context, department *models.Department) error
	UpsertSubject(ctx context.Context, subject *models.Subject) error
	UpsertRoom(ctx context.Context, room *models.Room) error
	UpsertInstructor(ctx context.Context, instructor *models.Instructor) error
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates fixture YAML.
func Parse(raw []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := fixture.validate(); err != nil {
		return nil, err
	}
	return &fixture, nil
}

func (f *Fixture) validate() error {
	departments := make(map[string]struct{}, len(f.Departments))
	for _, d := range f.Departments {
		if d.ID == "" || d.Name == "" {
			return fmt.Errorf("department requires id and name")
		}
		departments[d.ID] = struct{}{}
	}
	for _, s := range f.Subjects {
		if s.ID == "" || s.Code == "" {
			return fmt.Errorf("subject requires id and code")
		}
		if _, ok := departments[s.DepartmentID]; !ok {
			return fmt.Errorf("subject %s references unknown department %q", s.ID, s.DepartmentID)
		}
	}
	for _, r := range f.Rooms {
		if r.ID == "" || r.Capacity <= 0 {
			return fmt.Errorf("room %q requires id and a positive capacity", r.ID)
		}
	}
	for _, i := range f.Instructors {
		if i.ID == "" {
			return fmt.Errorf("instructor requires id")
		}
		if _, ok := departments[i.DepartmentID]; !ok {
			return fmt.Errorf("instructor %s references unknown department %q", i.ID, i.DepartmentID)
		}
		if i.LoadCeiling < 0 {
			return fmt.Errorf("instructor %s has negative load ceiling", i.ID)
		}
	}
	return nil
}

// Apply upserts the fixture, departments first.
func Apply(ctx context.Context, store Store, fixture *Fixture, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range fixture.Departments {
		if err := store.UpsertDepartment(ctx, &fixture.Departments[i]); err != nil {
			return err
		}
	}
	for i := range fixture.Subjects {
		if err := store.UpsertSubject(ctx, &fixture.Subjects[i]); err != nil {
			return err
		}
	}
	for i := range fixture.Rooms {
		if err := store.UpsertRoom(ctx, &fixture.Rooms[i]); err != nil {
			return err
		}
	}
	for i := range fixture.Instructors {
		if err := store.UpsertInstructor(ctx, &fixture.Instructors[i]); err != nil {
			return err
		}
	}
	logger.Info("seed applied",
		zap.Int("departments", len(fixture.Departments)),
		zap.Int("subjects", len(fixture.Subjects)),
		zap.Int("rooms", len(fixture.Rooms)),
		zap.Int("instructors", len(fixture.Instructors)),
	)
	return nil
}
