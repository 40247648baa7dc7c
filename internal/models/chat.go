package models

// WorkflowStatus is the outcome of one conversational turn.
type WorkflowStatus string

const (
	StatusCompleted             WorkflowStatus = "completed"
	StatusClarificationRequired WorkflowStatus = "clarification_required"
	StatusFailed                WorkflowStatus = "failed"
)

// ChatRequest is the body of POST /workflow. An empty WorkflowID starts a new conversation.
// Query must be present but may be empty.
type ChatRequest struct {
	WorkflowID string  `json:"workflow_id,omitempty" validate:"omitempty,max=128"`
	Query      *string `json:"query" validate:"required,max=4000"`
}

// NewChatRequest builds a request body for one turn.
func NewChatRequest(workflowID, query string) ChatRequest {
	return ChatRequest{WorkflowID: workflowID, Query: &query}
}

// ChatResponse is returned for every turn. Context holds the scored records
// backing a completed answer: []ScoredRecord[Project] or []ScoredRecord[CaseStudy].
type ChatResponse struct {
	WorkflowID string         `json:"workflow_id"`
	Status     WorkflowStatus `json:"status"`
	Response   string         `json:"response"`
	Context    any            `json:"context,omitempty"`
}
