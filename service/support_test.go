package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	model "github.com/Itish41/ReviewEagle/models"
)

// FixedTime is used with gomonkey to pin time.Now in tests.
var FixedTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// memStore is an in-memory ResultStore used to exercise the engine without a
// database. It mirrors the real store's contract: rows exist only after
// CreateAll, Upsert patches in place.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*model.ReviewResult // key jobID/checkID
	byID    map[string]*model.ReviewResult
	nextID  int
	failAll bool // makes CreateAll fail, for preparation tests
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[string]*model.ReviewResult),
		byID: make(map[string]*model.ReviewResult),
	}
}

func (m *memStore) key(jobID, checkID string) string { return jobID + "/" + checkID }

func (m *memStore) CreateAll(jobID string, checkIDs []string) ([]model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, fmt.Errorf("simulated insert failure")
	}
	if len(checkIDs) == 0 {
		return nil, fmt.Errorf("no checklist items to create results for job %s", jobID)
	}
	// Existing rows for the job mean a double-prepare; surface it the way
	// the unique (job_id, check_id) index would.
	for _, checkID := range checkIDs {
		if _, exists := m.rows[m.key(jobID, checkID)]; exists {
			return nil, fmt.Errorf("duplicate key value violates unique constraint \"idx_review_results_job_check\"")
		}
	}
	created := make([]model.ReviewResult, 0, len(checkIDs))
	for _, checkID := range checkIDs {
		m.nextID++
		row := &model.ReviewResult{
			ID:        fmt.Sprintf("result-%d", m.nextID),
			JobID:     jobID,
			CheckID:   checkID,
			Status:    model.ResultStatusProcessing,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		m.rows[m.key(jobID, checkID)] = row
		m.byID[row.ID] = row
		created = append(created, *row)
	}
	return created, nil
}

func (m *memStore) Get(jobID, checkID string) (*model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[m.key(jobID, checkID)]
	if !ok {
		return nil, fmt.Errorf("no result row for job %s check %s", jobID, checkID)
	}
	copied := *row
	return &copied, nil
}

func (m *memStore) GetByID(resultID string) (*model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.byID[resultID]
	if !ok {
		return nil, fmt.Errorf("result %s not found", resultID)
	}
	copied := *row
	return &copied, nil
}

func (m *memStore) GetChildrenResults(jobID string, checkIDs []string) ([]model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []model.ReviewResult
	for _, checkID := range checkIDs {
		if row, ok := m.rows[m.key(jobID, checkID)]; ok {
			results = append(results, *row)
		}
	}
	return results, nil
}

func (m *memStore) ListByJob(jobID string) ([]model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []model.ReviewResult
	for _, row := range m.rows {
		if row.JobID == jobID {
			results = append(results, *row)
		}
	}
	return results, nil
}

func (m *memStore) Upsert(jobID, checkID string, patch ResultPatch) (*model.ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[m.key(jobID, checkID)]
	if !ok {
		return nil, fmt.Errorf("no result row for job %s check %s", jobID, checkID)
	}
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.Verdict != nil {
		row.Verdict = *patch.Verdict
	}
	if patch.Confidence != nil {
		c := *patch.Confidence
		row.Confidence = &c
	}
	if patch.Explanation != nil {
		row.Explanation = *patch.Explanation
	}
	if patch.ExtractedText != nil {
		row.ExtractedText = *patch.ExtractedText
	}
	if patch.UserComment != nil {
		row.UserComment = *patch.UserComment
	}
	if patch.UserOverride != nil {
		row.UserOverride = *patch.UserOverride
	}
	row.UpdatedAt = time.Now()
	copied := *row
	return &copied, nil
}

// memJobStore is an in-memory JobStore.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.ReviewJob
	next int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*model.ReviewJob)}
}

func (m *memJobStore) Create(job *model.ReviewJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	job.ID = fmt.Sprintf("job-%d", m.next)
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobStore) Get(jobID string) (*model.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("review job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (m *memJobStore) List() ([]model.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []model.ReviewJob
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (m *memJobStore) UpdateStatus(jobID, status, errorDetail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("review job %s not found", jobID)
	}
	job.Status = status
	job.ErrorDetail = errorDetail
	job.UpdatedAt = time.Now()
	if status == model.JobStatusCompleted || status == model.JobStatusFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func (m *memJobStore) Delete(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

// stubJudge adapts a function to the Judge interface and counts calls.
type stubJudge struct {
	calls int64
	fn    func(call int64, ruleName, prompt string) (string, error)
}

func (j *stubJudge) Ask(ctx context.Context, ruleName, ruleDescription string, documentBytes []byte, mediaType, prompt string) (string, error) {
	call := atomic.AddInt64(&j.calls, 1)
	return j.fn(call, ruleName, prompt)
}

func (j *stubJudge) callCount() int64 { return atomic.LoadInt64(&j.calls) }

// staticTreeLoader serves one prebuilt tree for any set id.
type staticTreeLoader struct {
	tree *ChecklistTree
}

func (l *staticTreeLoader) LoadTree(setID string) (*ChecklistTree, error) {
	if l.tree == nil {
		return nil, fmt.Errorf("checklist set %s not found", setID)
	}
	return l.tree, nil
}

// staticDocFetcher serves fixed bytes for any job.
type staticDocFetcher struct {
	doc DocumentContent
	err error
}

func (f *staticDocFetcher) FetchJobDocument(jobID string) (DocumentContent, error) {
	if f.err != nil {
		return DocumentContent{}, f.err
	}
	return f.doc, nil
}

func strPtr(s string) *string { return &s }

// newItem builds a checklist item for tree fixtures.
func newItem(id, name string, parentID *string) model.ChecklistItem {
	return model.ChecklistItem{
		ID:       id,
		SetID:    "set-1",
		ParentID: parentID,
		Name:     name,
		ItemType: model.ItemTypeSimple,
	}
}

// newTestTree builds the fixture used across the engine tests:
//
//	root
//	├── parent
//	│   ├── leaf-a
//	│   └── leaf-b
//	└── leaf-c
func newTestTree() *ChecklistTree {
	items := []model.ChecklistItem{
		newItem("root", "Root", nil),
		newItem("parent", "Parent", strPtr("root")),
		newItem("leaf-a", "Leaf A", strPtr("parent")),
		newItem("leaf-b", "Leaf B", strPtr("parent")),
		newItem("leaf-c", "Leaf C", strPtr("root")),
	}
	tree, err := NewChecklistTree(items)
	if err != nil {
		panic(err)
	}
	return tree
}

// pdfDoc is the document fixture handed to the judge in tests.
var pdfDoc = DocumentContent{Bytes: []byte("%PDF-1.4 test"), MediaType: MediaTypePDF}

// verdictJSON renders a well-formed judge response.
func verdictJSON(result string, confidence float64, explanation string) string {
	return fmt.Sprintf(`{"result": %q, "confidence": %v, "explanation": %q, "extractedText": "section 2"}`, result, confidence, explanation)
}
