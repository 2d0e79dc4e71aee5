package models

import "time"

// Review job statuses. A job is terminal once completed or failed.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ReviewJob is one evaluation of a document against a checklist set. The job
// row is mutated only by the review job service; results hang off it and are
// removed by cascade when the job is deleted.
type ReviewJob struct {
	// ID is a unique identifier for the job, stored as a UUID in the database.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	// Name is a human-readable label for the job.
	Name string `gorm:"not null"`

	// ChecklistSetID references the checklist set the job evaluates against.
	ChecklistSetID string `gorm:"type:uuid;not null;index"`

	// Status is one of pending, processing, completed, failed.
	Status string `gorm:"not null;default:pending"`

	// ErrorDetail holds the failure reason when Status is failed.
	ErrorDetail string

	CreatedAt time.Time
	UpdatedAt time.Time

	// CompletedAt is set when the job reaches a terminal status.
	CompletedAt *time.Time
}
