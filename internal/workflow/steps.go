package workflow

import "github.com/hyperjump/kotae/internal/models"

// stepKind is the outcome of one workflow step and selects the next one.
type stepKind int

const (
	stepIntentResolved stepKind = iota + 1
	stepRetrievalSucceeded
	stepRetrievalFailed
	stepClarify
	stepCompleted
)

func (k stepKind) String() string {
	switch k {
	case stepIntentResolved:
		return "intent_resolved"
	case stepRetrievalSucceeded:
		return "retrieval_succeeded"
	case stepRetrievalFailed:
		return "retrieval_failed"
	case stepClarify:
		return "clarify"
	case stepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// step carries the payload of one outcome. Only the fields of its kind are set.
type step struct {
	kind stepKind

	// intentResolved, retrievalSucceeded
	query  string
	intent models.IntentContext

	// retrievalSucceeded: exactly one is non-empty
	projects    []models.ScoredRecord[models.Project]
	caseStudies []models.ScoredRecord[models.CaseStudy]

	// retrievalFailed, clarify
	reason models.FailureReason

	// completed
	result *Result
}

func intentResolved(query string, ic models.IntentContext) step {
	return step{kind: stepIntentResolved, query: query, intent: ic}
}

func clarify(ic models.IntentContext, reason models.FailureReason) step {
	return step{kind: stepClarify, intent: ic, reason: reason}
}

func retrievalFailed(ic models.IntentContext) step {
	return step{kind: stepRetrievalFailed, intent: ic, reason: models.FailureNoMatchingRecords}
}

func completed(r *Result) step {
	return step{kind: stepCompleted, result: r}
}
