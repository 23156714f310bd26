package model

import "time"

// Organization is the unit of data isolation: every tenant-owned entity
// carries an organization ID and every data access is scoped by it.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
