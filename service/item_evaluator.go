package services

import (
	"context"
	"fmt"
	"log"

	model "github.com/Itish41/ReviewEagle/models"
)

// DocumentContent is the payload handed to the judge for one evaluation.
type DocumentContent struct {
	Bytes     []byte
	MediaType string
}

// ItemEvaluator resolves the verdict for exactly one checklist item. It owns
// the judge protocol: prompt construction, response parsing, and the single
// corrective retry for malformed output. Transport errors from the judge are
// returned to the caller instead of being retried here.
type ItemEvaluator struct {
	judge Judge
	store ResultStore
}

// NewItemEvaluator wires the evaluator to a judge and the result store.
func NewItemEvaluator(judge Judge, store ResultStore) *ItemEvaluator {
	return &ItemEvaluator{judge: judge, store: store}
}

// Evaluate runs the judge protocol for one item and persists the outcome.
//
// The returned result is terminal: completed with a verdict on success, or
// failed when the media type is unsupported or the judge's output stays
// malformed after the one retry. A non-nil error means the judge transport
// itself failed; nothing is persisted in that case and the caller records
// the failure.
func (e *ItemEvaluator) Evaluate(ctx context.Context, jobID string, item *model.ChecklistItem, doc DocumentContent) (*model.ReviewResult, error) {
	if doc.MediaType != MediaTypePDF {
		log.Printf("[ItemEvaluator] Unsupported media type %q for check %s, recording failure", doc.MediaType, item.ID)
		return e.recordFailure(jobID, item.ID,
			fmt.Sprintf("unsupported media type %q: only %s documents can be reviewed", doc.MediaType, MediaTypePDF))
	}

	prompt := buildReviewPrompt(item.Name, item.Description)
	raw, err := e.judge.Ask(ctx, item.Name, item.Description, doc.Bytes, doc.MediaType, prompt)
	if err != nil {
		return nil, fmt.Errorf("judge call for check %s failed: %w", item.ID, err)
	}

	verdict, parseErr := parseJudgeVerdict(raw)
	if parseErr != nil {
		// Exactly one retry, with the prompt amended to demand pure JSON.
		log.Printf("[ItemEvaluator] Malformed judge output for check %s (%v), retrying once", item.ID, parseErr)
		raw, err = e.judge.Ask(ctx, item.Name, item.Description, doc.Bytes, doc.MediaType, buildRetryPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("judge retry for check %s failed: %w", item.ID, err)
		}
		verdict, parseErr = parseJudgeVerdict(raw)
		if parseErr != nil {
			log.Printf("[ItemEvaluator] Judge output for check %s still malformed after retry: %v", item.ID, parseErr)
			return e.recordFailure(jobID, item.ID,
				fmt.Sprintf("judge returned malformed output twice: %v", parseErr))
		}
	}

	completed := model.ResultStatusCompleted
	result, err := e.store.Upsert(jobID, item.ID, ResultPatch{
		Status:        &completed,
		Verdict:       &verdict.Result,
		Confidence:    &verdict.Confidence,
		Explanation:   &verdict.Explanation,
		ExtractedText: &verdict.ExtractedText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist verdict for check %s: %w", item.ID, err)
	}
	log.Printf("[ItemEvaluator] Check %s completed: %s (confidence %.2f)", item.ID, verdict.Result, verdict.Confidence)
	return result, nil
}

// recordFailure writes a terminal failed result. No verdict is recorded and
// the row is never rewritten by automatic processing afterwards.
func (e *ItemEvaluator) recordFailure(jobID, checkID, explanation string) (*model.ReviewResult, error) {
	failed := model.ResultStatusFailed
	result, err := e.store.Upsert(jobID, checkID, ResultPatch{
		Status:      &failed,
		Explanation: &explanation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failure for check %s: %w", checkID, err)
	}
	return result, nil
}
