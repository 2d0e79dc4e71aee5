package models

import (
	"time"

	"gorm.io/datatypes"
)

// Checklist item kinds. Simple items are judged directly against the
// document; flow items carry routing metadata used by flow-style checklists.
const (
	ItemTypeSimple = "simple"
	ItemTypeFlow   = "flow"
)

// ChecklistItem is a single rule in a checklist set. Items form a forest:
// ParentID is nil for roots, and the parent graph must stay acyclic for the
// lifetime of the set.
type ChecklistItem struct {
	// ID is a unique identifier for the item, stored as a UUID in the database.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	// SetID references the checklist set that owns this item.
	SetID string `gorm:"type:uuid;not null;index"`

	// ParentID references the parent item, or nil for a root item.
	ParentID *string `gorm:"type:uuid;index"`

	// Name is the rule's name, required. Used in prompts and in synthesized
	// parent explanations.
	Name string `gorm:"not null"`

	// Description is the rule text handed to the judge.
	Description string

	// ItemType is either "simple" or "flow".
	ItemType string `gorm:"not null;default:simple"`

	// IsConclusion marks the item that carries the overall conclusion of a
	// flow-style checklist.
	IsConclusion bool

	// FlowData is optional flow-routing metadata, stored as JSONB.
	FlowData datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}
