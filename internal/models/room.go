package models

import "time"

// Room is a physical space with a seating capacity.
type Room struct {
	ID        string    `db:"id" json:"id" yaml:"id"`
	Name      string    `db:"name" json:"name" yaml:"name"`
	Capacity  int       `db:"capacity" json:"capacity" yaml:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}
