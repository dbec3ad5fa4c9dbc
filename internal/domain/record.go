package domain

import "time"

// Record holds the identity and timestamps shared by catalog and account entities.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamp sets both timestamps. Call it once when the entity is created.
func (r *Record) Stamp(now time.Time) {
	r.CreatedAt = now
	r.UpdatedAt = now
}

// Touch records a modification.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = now
}
