package models

import "time"

// ChecklistSet groups a hierarchy of checklist items that a document is
// reviewed against. A review job always references exactly one set.
type ChecklistSet struct {
	// ID is a unique identifier for the set, stored as a UUID in the database.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	// Name is the set's display name, required.
	Name string `gorm:"not null"`

	// Description provides details about what the set covers.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}
