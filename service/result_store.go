package services

import (
	"fmt"
	"log"
	"time"

	model "github.com/Itish41/ReviewEagle/models"
	"gorm.io/gorm"
)

// ResultPatch is a partial update to a review result. Nil fields are left
// untouched, which is what keeps a user's override comment intact when the
// aggregator later rewrites the computed fields of a sibling path.
type ResultPatch struct {
	Status        *string
	Verdict       *string
	Confidence    *float64
	Explanation   *string
	ExtractedText *string
	UserComment   *string
	UserOverride  *bool
}

// ResultStore is the engine's only persistence dependency: a durable mapping
// of (jobID, checkID) to a review result row. Reads must observe the latest
// write for the same key.
type ResultStore interface {
	// CreateAll inserts one processing-status placeholder per check id,
	// atomically: either every row exists afterwards or none does. The
	// created rows are returned with their generated ids.
	CreateAll(jobID string, checkIDs []string) ([]model.ReviewResult, error)
	Get(jobID, checkID string) (*model.ReviewResult, error)
	GetByID(resultID string) (*model.ReviewResult, error)
	// GetChildrenResults returns the results for the given check ids. The
	// caller passes the child ids from its checklist snapshot, so checklist
	// edits made while a job runs cannot change the job's aggregation shape.
	GetChildrenResults(jobID string, checkIDs []string) ([]model.ReviewResult, error)
	ListByJob(jobID string) ([]model.ReviewResult, error)
	// Upsert applies the patch to the existing row for (jobID, checkID) and
	// returns the updated row. Rows are only ever created by CreateAll.
	Upsert(jobID, checkID string, patch ResultPatch) (*model.ReviewResult, error)
}

type gormResultStore struct {
	db *gorm.DB
}

// NewResultStore returns a ResultStore backed by the relational database.
func NewResultStore(db *gorm.DB) ResultStore {
	return &gormResultStore{db: db}
}

func (s *gormResultStore) CreateAll(jobID string, checkIDs []string) ([]model.ReviewResult, error) {
	if len(checkIDs) == 0 {
		return nil, fmt.Errorf("no checklist items to create results for job %s", jobID)
	}

	now := time.Now()
	results := make([]model.ReviewResult, 0, len(checkIDs))
	for _, checkID := range checkIDs {
		results = append(results, model.ReviewResult{
			JobID:     jobID,
			CheckID:   checkID,
			Status:    model.ResultStatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	// One transaction so a mid-batch failure leaves no partial placeholder
	// set behind; aggregation's completion gate counts on every row existing.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&results).Error
	})
	if err != nil {
		log.Printf("[ResultStore] Error creating %d placeholder results for job %s: %v", len(checkIDs), jobID, err)
		return nil, fmt.Errorf("failed to create review results for job %s: %w", jobID, err)
	}
	return results, nil
}

func (s *gormResultStore) Get(jobID, checkID string) (*model.ReviewResult, error) {
	var result model.ReviewResult
	if err := s.db.Where("job_id = ? AND check_id = ?", jobID, checkID).First(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch result for job %s check %s: %w", jobID, checkID, err)
	}
	return &result, nil
}

func (s *gormResultStore) GetByID(resultID string) (*model.ReviewResult, error) {
	var result model.ReviewResult
	if err := s.db.First(&result, "id = ?", resultID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch result %s: %w", resultID, err)
	}
	return &result, nil
}

func (s *gormResultStore) GetChildrenResults(jobID string, checkIDs []string) ([]model.ReviewResult, error) {
	if len(checkIDs) == 0 {
		return nil, nil
	}
	var results []model.ReviewResult
	err := s.db.
		Where("job_id = ? AND check_id IN ?", jobID, checkIDs).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch child results for job %s: %w", jobID, err)
	}
	return results, nil
}

func (s *gormResultStore) ListByJob(jobID string) ([]model.ReviewResult, error) {
	var results []model.ReviewResult
	if err := s.db.Where("job_id = ?", jobID).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch results for job %s: %w", jobID, err)
	}
	return results, nil
}

func (s *gormResultStore) Upsert(jobID, checkID string, patch ResultPatch) (*model.ReviewResult, error) {
	var result model.ReviewResult
	if err := s.db.Where("job_id = ? AND check_id = ?", jobID, checkID).First(&result).Error; err != nil {
		return nil, fmt.Errorf("no result row for job %s check %s: %w", jobID, checkID, err)
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Verdict != nil {
		updates["verdict"] = *patch.Verdict
	}
	if patch.Confidence != nil {
		updates["confidence"] = *patch.Confidence
	}
	if patch.Explanation != nil {
		updates["explanation"] = *patch.Explanation
	}
	if patch.ExtractedText != nil {
		updates["extracted_text"] = *patch.ExtractedText
	}
	if patch.UserComment != nil {
		updates["user_comment"] = *patch.UserComment
	}
	if patch.UserOverride != nil {
		updates["user_override"] = *patch.UserOverride
	}

	if err := s.db.Model(&result).Updates(updates).Error; err != nil {
		log.Printf("[ResultStore] Error updating result for job %s check %s: %v", jobID, checkID, err)
		return nil, fmt.Errorf("failed to update result for job %s check %s: %w", jobID, checkID, err)
	}
	return &result, nil
}
