package services

import (
	"fmt"
	"log"
	"strings"
	"sync"

	model "github.com/Itish41/ReviewEagle/models"
)

const allPassedExplanation = "All sub-items passed."

// unnamedItemPlaceholder stands in for a failing child whose name is missing
// when the parent explanation is synthesized.
const unnamedItemPlaceholder = "unnamed item"

// Aggregator folds child verdicts into parent verdicts, bottom-up. It is
// driven reactively: every time a result reaches a terminal state, Recompute
// is called for that item and climbs as far up the tree as the completed
// results allow. Because each parent is recomputed from a fresh read of all
// its children, re-running the fold is idempotent and children may complete
// in any order.
type Aggregator struct {
	tree  *ChecklistTree
	store ResultStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator builds an aggregator over one job's checklist snapshot.
func NewAggregator(tree *ChecklistTree, store ResultStore) *Aggregator {
	return &Aggregator{
		tree:  tree,
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// parentLock serializes recomputation per (job, parent) so that two siblings
// completing at the same time cannot interleave the gate check and the write.
func (a *Aggregator) parentLock(jobID, parentID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := jobID + "/" + parentID
	lock, ok := a.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[key] = lock
	}
	return lock
}

// Recompute attempts to resolve the parent of the given item, and on success
// keeps climbing toward the root. It stops at the first ancestor whose
// children are not all completed, or at the root.
func (a *Aggregator) Recompute(jobID, checkID string) error {
	node := a.tree.GetNode(checkID)
	if node == nil {
		return fmt.Errorf("unknown checklist item %s", checkID)
	}
	if node.ParentID == nil {
		return nil
	}
	parentID := *node.ParentID

	resolved, err := a.recomputeParent(jobID, parentID)
	if err != nil {
		return err
	}
	if !resolved {
		return nil
	}
	return a.Recompute(jobID, parentID)
}

// recomputeParent applies the fold to one parent. It reports whether the
// parent reached a terminal verdict, so the caller knows whether to keep
// climbing.
func (a *Aggregator) recomputeParent(jobID, parentID string) (bool, error) {
	lock := a.parentLock(jobID, parentID)
	lock.Lock()
	defer lock.Unlock()

	// Child ids come from the snapshot, never from the live checklist, so a
	// re-parent during the job cannot change the fold's shape.
	childNodes := a.tree.GetChildren(parentID)
	childIDs := make([]string, len(childNodes))
	for i, n := range childNodes {
		childIDs[i] = n.ID
	}
	results, err := a.store.GetChildrenResults(jobID, childIDs)
	if err != nil {
		return false, err
	}

	// Completion gate: every direct child must be completed. A pending,
	// processing or failed child stops the climb here; a permanently failed
	// child therefore leaves this parent unresolved for good.
	if len(results) < len(childNodes) {
		return false, nil
	}
	for _, r := range results {
		if r.Status != model.ResultStatusCompleted {
			return false, nil
		}
	}

	verdict := model.VerdictPass
	for _, r := range results {
		if r.Verdict != model.VerdictPass {
			verdict = model.VerdictFail
			break
		}
	}

	confidence := meanConfidence(results)
	explanation := synthesizeExplanation(childNodes, results, verdict)

	parentResult, err := a.store.Get(jobID, parentID)
	if err != nil {
		return false, err
	}

	// A human override on the parent wins over the fold. The overridden
	// verdict still participates in the grandparent's fold below.
	if parentResult.UserOverride {
		log.Printf("[Aggregator] Check %s has a user override, keeping it", parentID)
		return true, nil
	}

	completed := model.ResultStatusCompleted
	if _, err := a.store.Upsert(jobID, parentID, ResultPatch{
		Status:      &completed,
		Verdict:     &verdict,
		Confidence:  &confidence,
		Explanation: &explanation,
	}); err != nil {
		return false, err
	}
	log.Printf("[Aggregator] Check %s aggregated from %d children: %s (confidence %.2f)", parentID, len(results), verdict, confidence)
	return true, nil
}

// meanConfidence is the arithmetic mean over the children; a child without a
// confidence contributes 0 and an empty child set yields 0.
func meanConfidence(results []model.ReviewResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		if r.Confidence != nil {
			sum += *r.Confidence
		}
	}
	return sum / float64(len(results))
}

func synthesizeExplanation(childNodes []*model.ChecklistItem, results []model.ReviewResult, verdict string) string {
	if verdict == model.VerdictPass {
		return allPassedExplanation
	}

	names := make(map[string]string, len(childNodes))
	for _, n := range childNodes {
		names[n.ID] = n.Name
	}

	var failing []string
	for _, r := range results {
		if r.Verdict == model.VerdictPass {
			continue
		}
		name := names[r.CheckID]
		if name == "" {
			name = unnamedItemPlaceholder
		}
		failing = append(failing, name)
	}
	return fmt.Sprintf("The following sub-items did not pass: %s", strings.Join(failing, ", "))
}
