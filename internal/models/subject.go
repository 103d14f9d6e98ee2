package models

import "time"

// Department groups subjects and the instructors qualified to teach them.
type Department struct {
	ID        string    `db:"id" json:"id" yaml:"id"`
	Name      string    `db:"name" json:"name" yaml:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Subject represents a teachable subject owned by a department.
type Subject struct {
	ID           string    `db:"id" json:"id" yaml:"id"`
	Code         string    `db:"code" json:"code" yaml:"code"`
	Name         string    `db:"name" json:"name" yaml:"name"`
	DepartmentID string    `db:"department_id" json:"department_id" yaml:"department_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}
