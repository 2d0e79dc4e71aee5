package services

import (
	"fmt"
	"time"

	model "github.com/Itish41/ReviewEagle/models"
	"gorm.io/gorm"
)

// JobStore persists review job rows. The state machine in ReviewJobService is
// the only writer; terminal statuses also stamp CompletedAt.
type JobStore interface {
	Create(job *model.ReviewJob) error
	Get(jobID string) (*model.ReviewJob, error)
	List() ([]model.ReviewJob, error)
	UpdateStatus(jobID, status, errorDetail string) error
	Delete(jobID string) error
}

type gormJobStore struct {
	db *gorm.DB
}

// NewJobStore returns a JobStore backed by the relational database.
func NewJobStore(db *gorm.DB) JobStore {
	return &gormJobStore{db: db}
}

func (s *gormJobStore) Create(job *model.ReviewJob) error {
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create review job: %w", err)
	}
	return nil
}

func (s *gormJobStore) Get(jobID string) (*model.ReviewJob, error) {
	var job model.ReviewJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("review job %s not found: %w", jobID, err)
	}
	return &job, nil
}

func (s *gormJobStore) List() ([]model.ReviewJob, error) {
	var jobs []model.ReviewJob
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch review jobs: %w", err)
	}
	return jobs, nil
}

func (s *gormJobStore) UpdateStatus(jobID, status, errorDetail string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"error_detail": errorDetail,
		"updated_at":   now,
	}
	if status == model.JobStatusCompleted || status == model.JobStatusFailed {
		updates["completed_at"] = now
	}
	if err := s.db.Model(&model.ReviewJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update status of job %s: %w", jobID, err)
	}
	return nil
}

func (s *gormJobStore) Delete(jobID string) error {
	// review_results and review_documents go with the job via ON DELETE
	// CASCADE in the schema.
	if err := s.db.Delete(&model.ReviewJob{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}
