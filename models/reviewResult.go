package models

import "time"

// Review result statuses. Completed and failed are terminal: automatic
// processing never rewrites them, only an explicit user override may change
// a completed result's verdict.
const (
	ResultStatusPending    = "pending"
	ResultStatusProcessing = "processing"
	ResultStatusCompleted  = "completed"
	ResultStatusFailed     = "failed"
)

// Verdicts assigned to a checklist item for one job. The empty string means
// no verdict has been recorded yet.
const (
	VerdictPass  = "pass"
	VerdictFail  = "fail"
	VerdictUnset = ""
)

// ReviewResult is the outcome of one checklist item for one review job.
// Exactly one row exists per (job, item) for the lifetime of the job: all
// rows are created together during job preparation and afterwards only
// updated, never re-created. A verdict is set only when Status is completed.
type ReviewResult struct {
	// ID is a unique identifier for the result, stored as a UUID in the database.
	// In Elasticsearch, it's indexed as a keyword for exact matching.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" elastic:"type:keyword"`

	// JobID references the review job, indexed as a keyword.
	JobID string `gorm:"type:uuid;not null;uniqueIndex:idx_review_results_job_check" elastic:"type:keyword"`

	// CheckID references the checklist item being evaluated, indexed as a keyword.
	CheckID string `gorm:"type:uuid;not null;uniqueIndex:idx_review_results_job_check" elastic:"type:keyword"`

	// Status is one of pending, processing, completed, failed.
	Status string `gorm:"not null;default:processing" elastic:"type:keyword"`

	// Verdict is "pass" or "fail" once Status is completed, empty otherwise.
	Verdict string `elastic:"type:keyword"`

	// Confidence is the judge's confidence in [0,1], nil until a verdict is
	// recorded. Aggregated results carry the mean of their children.
	Confidence *float64 `elastic:"type:float"`

	// Explanation is the judge's reasoning, or the synthesized summary for
	// aggregated items. Indexed as text for full-text search over findings.
	Explanation string `elastic:"type:text,analyzer:standard"`

	// ExtractedText is the supporting excerpt the judge pulled from the
	// document, indexed as text.
	ExtractedText string `elastic:"type:text,analyzer:standard"`

	// UserOverride is true once a human has replaced the verdict. Overridden
	// verdicts are never rewritten by automatic recomputation.
	UserOverride bool `elastic:"type:boolean"`

	// UserComment is the human's justification for an override.
	UserComment string `elastic:"type:text,analyzer:standard"`

	CreatedAt time.Time `elastic:"type:date"`
	UpdatedAt time.Time `elastic:"type:date"`
}
