package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	model "github.com/Itish41/ReviewEagle/models"
)

// defaultWorkerCount bounds how many judge calls run at once per job.
const defaultWorkerCount = 4

// TreeLoader produces the immutable checklist snapshot for a set.
type TreeLoader interface {
	LoadTree(setID string) (*ChecklistTree, error)
}

// DocumentFetcher retrieves the source document bytes for a job.
type DocumentFetcher interface {
	FetchJobDocument(jobID string) (DocumentContent, error)
}

// ResultIndexer pushes finished results into the search index. Indexing is
// best-effort and never fails a job.
type ResultIndexer interface {
	IndexJobResults(jobID string) error
}

// JobOutcome summarizes where a job stands after a finalize sweep.
type JobOutcome struct {
	JobID      string
	Status     string
	Total      int
	Passed     int
	Failed     int
	Processing int
}

// ReviewResultNode is one node of the result hierarchy returned to clients:
// the result enriched with its item's name and nested children.
type ReviewResultNode struct {
	model.ReviewResult
	CheckName string
	Children  []*ReviewResultNode
}

// ReviewJobService owns the job state machine: pending at creation,
// processing once placeholders are prepared, completed when every root
// result is completed, failed only when preparation itself fails. Individual
// item failures never abort siblings; they leave the job stuck in processing
// with the failed results visible.
type ReviewJobService struct {
	jobs    JobStore
	store   ResultStore
	judge   Judge
	trees   TreeLoader
	docs    DocumentFetcher
	indexer ResultIndexer
	workers int
}

// NewReviewJobService wires the state machine to its collaborators. indexer
// may be nil when no search backend is configured.
func NewReviewJobService(jobs JobStore, store ResultStore, judge Judge, trees TreeLoader, docs DocumentFetcher, indexer ResultIndexer) *ReviewJobService {
	return &ReviewJobService{
		jobs:    jobs,
		store:   store,
		judge:   judge,
		trees:   trees,
		docs:    docs,
		indexer: indexer,
		workers: defaultWorkerCount,
	}
}

// CreateReviewJob registers a pending job after checking the checklist set
// exists and holds at least one item.
func (s *ReviewJobService) CreateReviewJob(name, checklistSetID string) (*model.ReviewJob, error) {
	if name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if _, err := s.trees.LoadTree(checklistSetID); err != nil {
		return nil, fmt.Errorf("checklist set %s is not usable: %w", checklistSetID, err)
	}

	job := &model.ReviewJob{
		Name:           name,
		ChecklistSetID: checklistSetID,
		Status:         model.JobStatusPending,
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	log.Printf("[ReviewJobService] Created job %s for checklist set %s", job.ID, checklistSetID)
	return job, nil
}

// PreparedResult names one placeholder created during job preparation.
type PreparedResult struct {
	CheckID  string
	ResultID string
}

// Prepare materializes one processing-status placeholder result per checklist
// item, moves the job to processing and returns the created (check, result)
// pairs. Placeholder creation is atomic; on any persistence failure the job
// is marked failed and nothing schedulable remains.
func (s *ReviewJobService) Prepare(jobID string, tree *ChecklistTree) ([]PreparedResult, error) {
	nodes := tree.AllNodes()
	checkIDs := make([]string, len(nodes))
	for i, n := range nodes {
		checkIDs[i] = n.ID
	}

	created, err := s.store.CreateAll(jobID, checkIDs)
	if err != nil {
		log.Printf("[ReviewJobService] Preparation of job %s failed: %v", jobID, err)
		if serr := s.jobs.UpdateStatus(jobID, model.JobStatusFailed, err.Error()); serr != nil {
			log.Printf("[ReviewJobService] Could not mark job %s failed: %v", jobID, serr)
		}
		return nil, fmt.Errorf("failed to prepare job %s: %w", jobID, err)
	}

	if err := s.jobs.UpdateStatus(jobID, model.JobStatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("failed to move job %s to processing: %w", jobID, err)
	}

	pairs := make([]PreparedResult, len(created))
	for i, r := range created {
		pairs[i] = PreparedResult{CheckID: r.CheckID, ResultID: r.ID}
	}
	log.Printf("[ReviewJobService] Prepared job %s with %d results", jobID, len(pairs))
	return pairs, nil
}

// RunReviewJob drives one job end to end: prepare, fan out leaf evaluations,
// fold completed subtrees as they finish, then finalize. Leaf evaluations are
// independent and run concurrently; each completion triggers the reactive
// fold for its ancestors.
func (s *ReviewJobService) RunReviewJob(ctx context.Context, jobID string) (*JobOutcome, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
		return s.jobOutcome(jobID)
	}
	// A processing job already has its placeholder rows; running it again
	// would re-prepare against the unique (job, check) index and wrongly
	// fail the live job. Stuck jobs are resumed through Finalize instead.
	if job.Status != model.JobStatusPending {
		return nil, fmt.Errorf("job %s is %s; only pending jobs can be run", jobID, job.Status)
	}

	tree, err := s.trees.LoadTree(job.ChecklistSetID)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("checklist set could not be loaded: %v", err))
		return nil, fmt.Errorf("failed to load checklist for job %s: %w", jobID, err)
	}

	doc, err := s.docs.FetchJobDocument(jobID)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("source document could not be loaded: %v", err))
		return nil, fmt.Errorf("failed to load document for job %s: %w", jobID, err)
	}

	if _, err := s.Prepare(jobID, tree); err != nil {
		return nil, err
	}

	evaluator := NewItemEvaluator(s.judge, s.store)
	aggregator := NewAggregator(tree, s.store)

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)
	for _, leaf := range tree.Leaves() {
		wg.Add(1)
		go func(item *model.ChecklistItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := evaluator.Evaluate(ctx, jobID, item, doc)
			if err != nil {
				// Transport failure: record it on the result and move on.
				// The failed status blocks this item's ancestors for good.
				log.Printf("[ReviewJobService] Evaluation of check %s in job %s failed: %v", item.ID, jobID, err)
				failed := model.ResultStatusFailed
				explanation := err.Error()
				if _, uerr := s.store.Upsert(jobID, item.ID, ResultPatch{Status: &failed, Explanation: &explanation}); uerr != nil {
					log.Printf("[ReviewJobService] Could not record failure for check %s: %v", item.ID, uerr)
				}
				return
			}
			if result.Status == model.ResultStatusCompleted {
				if aerr := aggregator.Recompute(jobID, item.ID); aerr != nil {
					log.Printf("[ReviewJobService] Aggregation from check %s failed: %v", item.ID, aerr)
				}
			}
		}(leaf)
	}
	wg.Wait()

	return s.Finalize(jobID)
}

// Finalize runs a last aggregation sweep over any unresolved ancestors and
// completes the job once every root result is completed. Calling it on a job
// that is already terminal is a no-op returning the current outcome.
func (s *ReviewJobService) Finalize(jobID string) (*JobOutcome, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
		return s.jobOutcome(jobID)
	}

	tree, err := s.trees.LoadTree(job.ChecklistSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist for job %s: %w", jobID, err)
	}
	aggregator := NewAggregator(tree, s.store)

	// Drive the fold from every leaf; Recompute re-reads current child state
	// so sweeping an already-resolved chain is harmless.
	for _, leaf := range tree.Leaves() {
		if err := aggregator.Recompute(jobID, leaf.ID); err != nil {
			log.Printf("[ReviewJobService] Finalize sweep from check %s failed: %v", leaf.ID, err)
		}
	}

	allRootsCompleted := true
	for _, root := range tree.Roots() {
		result, err := s.store.Get(jobID, root.ID)
		if err != nil || result.Status != model.ResultStatusCompleted {
			allRootsCompleted = false
			break
		}
	}

	if allRootsCompleted {
		if err := s.jobs.UpdateStatus(jobID, model.JobStatusCompleted, ""); err != nil {
			return nil, fmt.Errorf("failed to complete job %s: %w", jobID, err)
		}
		log.Printf("[ReviewJobService] Job %s completed", jobID)
		if s.indexer != nil {
			if err := s.indexer.IndexJobResults(jobID); err != nil {
				log.Printf("[ReviewJobService] Indexing results of job %s failed: %v", jobID, err)
			}
		}
	} else {
		log.Printf("[ReviewJobService] Job %s has unresolved roots, leaving it in processing", jobID)
	}

	return s.jobOutcome(jobID)
}

// Override replaces the verdict of a completed result with a human decision
// and re-folds the ancestors as if the result had just completed. The AI's
// confidence and explanation stay on the row for audit.
func (s *ReviewJobService) Override(jobID, resultID, verdict, userComment string) (*model.ReviewResult, error) {
	if verdict != model.VerdictPass && verdict != model.VerdictFail {
		return nil, fmt.Errorf("verdict must be %q or %q, got %q", model.VerdictPass, model.VerdictFail, verdict)
	}

	result, err := s.store.GetByID(resultID)
	if err != nil {
		return nil, err
	}
	if result.JobID != jobID {
		return nil, fmt.Errorf("result %s does not belong to job %s", resultID, jobID)
	}
	if result.Status != model.ResultStatusCompleted {
		return nil, fmt.Errorf("result %s is %s; only completed results can be overridden", resultID, result.Status)
	}

	override := true
	updated, err := s.store.Upsert(jobID, result.CheckID, ResultPatch{
		Verdict:      &verdict,
		UserComment:  &userComment,
		UserOverride: &override,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[ReviewJobService] Result %s overridden to %s by user", resultID, verdict)

	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.LoadTree(job.ChecklistSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist for job %s: %w", jobID, err)
	}
	if err := NewAggregator(tree, s.store).Recompute(jobID, result.CheckID); err != nil {
		return nil, fmt.Errorf("failed to re-aggregate after override: %w", err)
	}
	return updated, nil
}

// GetReviewJob returns one job with its outcome counts.
func (s *ReviewJobService) GetReviewJob(jobID string) (*model.ReviewJob, *JobOutcome, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := s.jobOutcome(jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, outcome, nil
}

// GetReviewJobs lists all jobs, newest first, each with its outcome counts.
func (s *ReviewJobService) GetReviewJobs() ([]map[string]interface{}, error) {
	jobs, err := s.jobs.List()
	if err != nil {
		return nil, err
	}
	listing := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		outcome, err := s.jobOutcome(job.ID)
		if err != nil {
			log.Printf("[ReviewJobService] Could not summarize job %s: %v", job.ID, err)
			continue
		}
		listing = append(listing, map[string]interface{}{
			"job":     job,
			"summary": outcome,
		})
	}
	return listing, nil
}

// DeleteReviewJob removes the job row; results and documents cascade.
func (s *ReviewJobService) DeleteReviewJob(jobID string) error {
	if _, err := s.jobs.Get(jobID); err != nil {
		return err
	}
	return s.jobs.Delete(jobID)
}

// GetResultHierarchy returns the job's results nested by the checklist's
// parent/child structure, roots first.
func (s *ReviewJobService) GetResultHierarchy(jobID string) ([]*ReviewResultNode, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.LoadTree(job.ChecklistSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist for job %s: %w", jobID, err)
	}
	results, err := s.store.ListByJob(jobID)
	if err != nil {
		return nil, err
	}

	byCheck := make(map[string]model.ReviewResult, len(results))
	for _, r := range results {
		byCheck[r.CheckID] = r
	}

	var build func(item *model.ChecklistItem) *ReviewResultNode
	build = func(item *model.ChecklistItem) *ReviewResultNode {
		node := &ReviewResultNode{
			ReviewResult: byCheck[item.ID],
			CheckName:    item.Name,
		}
		for _, child := range tree.GetChildren(item.ID) {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	var roots []*ReviewResultNode
	for _, root := range tree.Roots() {
		roots = append(roots, build(root))
	}
	return roots, nil
}

func (s *ReviewJobService) jobOutcome(jobID string) (*JobOutcome, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListByJob(jobID)
	if err != nil {
		return nil, err
	}

	outcome := &JobOutcome{JobID: jobID, Status: job.Status, Total: len(results)}
	for _, r := range results {
		switch {
		case r.Status == model.ResultStatusFailed:
			outcome.Failed++
		case r.Status != model.ResultStatusCompleted:
			outcome.Processing++
		case r.Verdict == model.VerdictPass:
			outcome.Passed++
		default:
			outcome.Failed++
		}
	}
	return outcome, nil
}

func (s *ReviewJobService) failJob(jobID, detail string) {
	if err := s.jobs.UpdateStatus(jobID, model.JobStatusFailed, detail); err != nil {
		log.Printf("[ReviewJobService] Could not mark job %s failed: %v", jobID, err)
	}
}
