package models

import "time"

// ReviewDocument is an uploaded source document attached to a review job.
// The bytes live in S3; this row only records where they are.
type ReviewDocument struct {
	// ID is a unique identifier for the document, stored as a UUID in the database.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	// JobID references the review job the document belongs to.
	JobID string `gorm:"type:uuid;not null;index"`

	// Filename is the original upload filename.
	Filename string `gorm:"not null"`

	// S3Key is the object key under the review document bucket.
	S3Key string `gorm:"not null"`

	// FileType is the lowercase file extension without the dot (e.g. "pdf").
	FileType string

	// SizeBytes is the uploaded size, for display only.
	SizeBytes int64

	CreatedAt time.Time
}
