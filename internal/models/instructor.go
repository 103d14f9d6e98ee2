package models

import "time"

// Instructor teaches offerings within their department. LoadCeiling caps the number of
// concurrently running offerings; zero means no ceiling is configured.
type Instructor struct {
	ID           string    `db:"id" json:"id" yaml:"id"`
	FullName     string    `db:"full_name" json:"full_name" yaml:"full_name"`
	DepartmentID string    `db:"department_id" json:"department_id" yaml:"department_id"`
	LoadCeiling  int       `db:"load_ceiling" json:"load_ceiling" yaml:"load_ceiling"`
	CreatedAt    time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}

// HasLoadCeiling reports whether a ceiling applies.
func (i Instructor) HasLoadCeiling() bool {
	return i.LoadCeiling > 0
}
