package services

import (
	"sync"
	"testing"

	model "github.com/Itish41/ReviewEagle/models"
	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 { return &f }

// completeLeaf marks one leaf completed with the given verdict and confidence.
func completeLeaf(t *testing.T, store *memStore, jobID, checkID, verdict string, confidence *float64) {
	t.Helper()
	completed := model.ResultStatusCompleted
	patch := ResultPatch{Status: &completed, Verdict: &verdict}
	if confidence != nil {
		patch.Confidence = confidence
	}
	_, err := store.Upsert(jobID, checkID, patch)
	assert.NoError(t, err)
}

func aggregatorFixture(t *testing.T) (*Aggregator, *memStore) {
	tree := newTestTree()
	store := newMemStore()
	_, err := store.CreateAll("job-1", []string{"root", "parent", "leaf-a", "leaf-b", "leaf-c"})
	assert.NoError(t, err)
	return NewAggregator(tree, store), store
}

func TestRecomputeWaitsForAllChildren(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	assert.NoError(t, agg.Recompute("job-1", "leaf-a"))

	// leaf-b is still processing, so parent must not resolve.
	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusProcessing, parent.Status)
	assert.Equal(t, model.VerdictUnset, parent.Verdict)
}

func TestRecomputeAllPass(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.7))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(1.0))

	assert.NoError(t, agg.Recompute("job-1", "leaf-a"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-b"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-c"))

	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, parent.Status)
	assert.Equal(t, model.VerdictPass, parent.Verdict)
	// Mean of 0.9 and 0.7.
	assert.InDelta(t, 0.8, *parent.Confidence, 1e-9)
	assert.Equal(t, allPassedExplanation, parent.Explanation)

	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, root.Status)
	assert.Equal(t, model.VerdictPass, root.Verdict)
	// Mean of parent's 0.8 and leaf-c's 1.0.
	assert.InDelta(t, 0.9, *root.Confidence, 1e-9)
}

func TestRecomputeFailingChildNamesItInExplanation(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictFail, floatPtr(0.6))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(0.8))

	assert.NoError(t, agg.Recompute("job-1", "leaf-b"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-c"))

	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.VerdictFail, parent.Verdict)
	assert.Contains(t, parent.Explanation, "did not pass")
	assert.Contains(t, parent.Explanation, "Leaf B")
	assert.NotContains(t, parent.Explanation, "Leaf A")

	// The failure propagates to the root, which names the parent.
	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.VerdictFail, root.Verdict)
	assert.Contains(t, root.Explanation, "Parent")
}

func TestRecomputeStopsAboveFailedChild(t *testing.T) {
	agg, store := aggregatorFixture(t)

	failed := model.ResultStatusFailed
	_, err := store.Upsert("job-1", "leaf-a", ResultPatch{Status: &failed})
	assert.NoError(t, err)
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(0.9))

	assert.NoError(t, agg.Recompute("job-1", "leaf-b"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-c"))

	// A failed child is not completed, so its parent never resolves.
	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusProcessing, parent.Status)

	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusProcessing, root.Status)
}

func TestRecomputeMissingConfidenceCountsAsZero(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.8))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, nil)

	assert.NoError(t, agg.Recompute("job-1", "leaf-a"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-b"))

	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, parent.Status)
	assert.InDelta(t, 0.4, *parent.Confidence, 1e-9)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.7))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(1.0))

	for i := 0; i < 3; i++ {
		assert.NoError(t, agg.Recompute("job-1", "leaf-a"))
	}
	assert.NoError(t, agg.Recompute("job-1", "leaf-c"))

	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.InDelta(t, 0.8, *parent.Confidence, 1e-9)
}

func TestRecomputePreservesUserOverride(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(0.9))

	// The human already decided the parent fails.
	completed := model.ResultStatusCompleted
	override := true
	fail := model.VerdictFail
	_, err := store.Upsert("job-1", "parent", ResultPatch{
		Status:       &completed,
		Verdict:      &fail,
		UserOverride: &override,
	})
	assert.NoError(t, err)

	assert.NoError(t, agg.Recompute("job-1", "leaf-a"))
	assert.NoError(t, agg.Recompute("job-1", "leaf-c"))

	// The fold must not rewrite the overridden parent...
	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.VerdictFail, parent.Verdict)
	assert.True(t, parent.UserOverride)

	// ...but the root still folds over the overridden verdict.
	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, root.Status)
	assert.Equal(t, model.VerdictFail, root.Verdict)
	assert.Contains(t, root.Explanation, "Parent")
}

func TestRecomputeConcurrentSiblings(t *testing.T) {
	agg, store := aggregatorFixture(t)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.8))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.6))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(1.0))

	var wg sync.WaitGroup
	for _, leaf := range []string{"leaf-a", "leaf-b", "leaf-c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, agg.Recompute("job-1", id))
		}(leaf)
	}
	wg.Wait()

	parent, err := store.Get("job-1", "parent")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, parent.Status)
	assert.InDelta(t, 0.7, *parent.Confidence, 1e-9)

	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusCompleted, root.Status)
	assert.Equal(t, model.VerdictPass, root.Verdict)
}

// recordingStore captures the child id sets the fold requests.
type recordingStore struct {
	ResultStore
	mu      sync.Mutex
	queried [][]string
}

func (r *recordingStore) GetChildrenResults(jobID string, checkIDs []string) ([]model.ReviewResult, error) {
	r.mu.Lock()
	r.queried = append(r.queried, checkIDs)
	r.mu.Unlock()
	return r.ResultStore.GetChildrenResults(jobID, checkIDs)
}

func TestRecomputeReadsChildrenFromSnapshot(t *testing.T) {
	// The fold must query exactly the snapshot's child ids, so checklist
	// edits made after the job started cannot change its shape.
	tree := newTestTree()
	store := newMemStore()
	_, err := store.CreateAll("job-1", []string{"root", "parent", "leaf-a", "leaf-b", "leaf-c"})
	assert.NoError(t, err)
	recorder := &recordingStore{ResultStore: store}
	agg := NewAggregator(tree, recorder)

	completeLeaf(t, store, "job-1", "leaf-a", model.VerdictPass, floatPtr(0.9))
	completeLeaf(t, store, "job-1", "leaf-b", model.VerdictPass, floatPtr(0.7))
	completeLeaf(t, store, "job-1", "leaf-c", model.VerdictPass, floatPtr(1.0))
	assert.NoError(t, agg.Recompute("job-1", "leaf-a"))

	assert.Contains(t, recorder.queried, []string{"leaf-a", "leaf-b"})
	assert.Contains(t, recorder.queried, []string{"parent", "leaf-c"})
}

func TestRecomputeUnknownItem(t *testing.T) {
	agg, _ := aggregatorFixture(t)
	err := agg.Recompute("job-1", "ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown checklist item")
}

func TestRecomputeRootIsNoOp(t *testing.T) {
	agg, store := aggregatorFixture(t)
	assert.NoError(t, agg.Recompute("job-1", "root"))

	root, err := store.Get("job-1", "root")
	assert.NoError(t, err)
	assert.Equal(t, model.ResultStatusProcessing, root.Status)
}
