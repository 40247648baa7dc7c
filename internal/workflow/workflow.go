// Package workflow runs the conversational retrieval state machine: intent detection,
// retrieval, summarization and the clarification loop that suspends a conversation
// until the user answers.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/query"
	"github.com/hyperjump/kotae/internal/session"
)

var tracer = otel.Tracer("github.com/hyperjump/kotae/internal/workflow")

// DefaultMaxAttempts is the clarification cap used when none is configured.
const DefaultMaxAttempts = 2

// maxSteps bounds one run. A healthy run takes at most three steps after intent detection.
const maxSteps = 8

// Classifier detects intent and condenses chat history.
type Classifier interface {
	Classify(ctx context.Context, query string) (models.IntentContext, error)
	Condense(ctx context.Context, history []string) (string, error)
}

// Retriever finds scored projects and case studies.
type Retriever interface {
	RetrieveProjects(ctx context.Context, ic models.IntentContext) ([]models.ScoredRecord[models.Project], error)
	RetrieveCaseStudies(ctx context.Context, query string) ([]models.ScoredRecord[models.CaseStudy], error)
}

// TextGenerator produces the final answer text.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userMessage string, opts ...llm.Option) (string, error)
}

// Result is the outcome of one turn.
type Result struct {
	WorkflowID string
	Status     models.WorkflowStatus
	Response   string
	// Records backs a completed answer: []models.ScoredRecord[models.Project]
	// or []models.ScoredRecord[models.CaseStudy]. Nil otherwise.
	Records any
	Intent  *models.IntentContext
}

// ChatResponse converts r to the HTTP response shape.
func (r *Result) ChatResponse() models.ChatResponse {
	return models.ChatResponse{
		WorkflowID: r.WorkflowID,
		Status:     r.Status,
		Response:   r.Response,
		Context:    r.Records,
	}
}

// Engine runs turns of the retrieval workflow.
type Engine struct {
	classifier  Classifier
	retriever   Retriever
	generator   TextGenerator
	store       session.Store
	maxAttempts int
	chatOpts    []llm.Option
	newID       func() string
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxAttempts sets how many clarification round-trips are allowed before giving up.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) { e.maxAttempts = n }
}

// WithChatOptions sets generation options for summaries.
func WithChatOptions(opts ...llm.Option) EngineOption {
	return func(e *Engine) { e.chatOpts = opts }
}

// WithIDGenerator replaces the workflow ID generator.
func WithIDGenerator(f func() string) EngineOption {
	return func(e *Engine) { e.newID = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(classifier Classifier, retriever Retriever, generator TextGenerator, store session.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier:  classifier,
		retriever:   retriever,
		generator:   generator,
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		newID:       uuid.NewString,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turn is the in-memory execution of one Run.
type turn struct {
	workflowID string
	state      *ConversationState
}

// Run executes one turn. An empty workflowID, or one with no suspended
// conversation, starts a new conversation under a fresh ID; otherwise query is
// the user's answer to the pending clarification.
// Errors are system failures; domain outcomes are reported through Result.Status.
func (e *Engine) Run(ctx context.Context, workflowID, rawQuery string) (*Result, error) {
	// Only the persisted state outlives the turn.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "workflow.run")
	defer span.End()

	t, next, err := e.begin(ctx, workflowID, rawQuery)
	if err != nil {
		return nil, e.fail(span, "workflow start failed", err)
	}
	span.SetAttributes(attribute.String("workflow.id", t.workflowID))

	for i := 0; i < maxSteps; i++ {
		switch next.kind {
		case stepIntentResolved:
			next, err = e.retrieve(ctx, next)
		case stepRetrievalSucceeded:
			next, err = e.summarize(ctx, t, next)
		case stepRetrievalFailed, stepClarify:
			next, err = e.clarify(ctx, t, next)
		case stepCompleted:
			span.SetAttributes(attribute.String("workflow.status", string(next.result.Status)))
			return next.result, nil
		default:
			e.logger.Error("workflow produced an unknown step",
				zap.String("workflow_id", t.workflowID), zap.Int("kind", int(next.kind)))
			return e.failed(t), nil
		}
		if err != nil {
			return nil, e.fail(span, "workflow step failed", err)
		}
	}
	e.logger.Error("workflow ended without a terminal step", zap.String("workflow_id", t.workflowID))
	return e.failed(t), nil
}

// begin starts or resumes a conversation and runs intent detection.
func (e *Engine) begin(ctx context.Context, workflowID, rawQuery string) (*turn, step, error) {
	preprocessed := query.Preprocess(rawQuery)

	if workflowID != "" {
		data, ok, err := e.store.Take(ctx, workflowID)
		if err != nil {
			return nil, step{}, fmt.Errorf("load conversation %s: %w", workflowID, err)
		}
		if ok {
			state, err := decodeState(data)
			if err != nil {
				return nil, step{}, err
			}
			t := &turn{workflowID: workflowID, state: state}
			state.addUser(preprocessed)
			state.Iterations++
			e.logger.Info("workflow resumed",
				zap.String("workflow_id", workflowID), zap.Int("iterations", state.Iterations))

			condensed, err := e.classifier.Condense(ctx, state.ChatHistory)
			if err != nil {
				e.restore(ctx, workflowID, data)
				return nil, step{}, err
			}
			next, err := e.detectIntent(ctx, condensed)
			if err != nil {
				e.restore(ctx, workflowID, data)
			}
			return t, next, err
		}
		e.logger.Info("no suspended conversation, starting a new one", zap.String("requested_id", workflowID))
	}

	t := &turn{workflowID: e.newID(), state: newState(preprocessed)}
	e.logger.Info("workflow started", zap.String("workflow_id", t.workflowID), zap.String("query", preprocessed))
	next, err := e.detectIntent(ctx, preprocessed)
	return t, next, err
}

// restore puts a taken pause point back so the client can retry its answer.
func (e *Engine) restore(ctx context.Context, workflowID string, data []byte) {
	if err := e.store.Save(context.WithoutCancel(ctx), workflowID, data); err != nil {
		e.logger.Warn("failed to restore conversation state", zap.String("workflow_id", workflowID), zap.Error(err))
	}
}

func (e *Engine) detectIntent(ctx context.Context, q string) (step, error) {
	ctx, span := tracer.Start(ctx, "workflow.intent_detection")
	defer span.End()

	ic, err := e.classifier.Classify(ctx, q)
	if err != nil {
		return step{}, err
	}
	span.SetAttributes(attribute.String("workflow.intent", string(ic.Intent)))
	e.logger.Info("intent detected", zap.String("query", q), zap.String("intent", string(ic.Intent)))

	switch ic.Intent {
	case models.IntentProjectMatching, models.IntentCaseStudyRetrieval:
		return intentResolved(q, ic), nil
	default:
		return clarify(ic, models.FailureAmbiguousIntent), nil
	}
}

func (e *Engine) retrieve(ctx context.Context, s step) (step, error) {
	ctx, span := tracer.Start(ctx, "workflow.retrieval")
	defer span.End()

	switch s.intent.Intent {
	case models.IntentCaseStudyRetrieval:
		records, err := e.retriever.RetrieveCaseStudies(ctx, s.query)
		if err != nil {
			return step{}, err
		}
		e.logger.Info("case studies retrieved", zap.Int("count", len(records)))
		if len(records) == 0 {
			return retrievalFailed(s.intent), nil
		}
		return step{kind: stepRetrievalSucceeded, query: s.query, intent: s.intent, caseStudies: records}, nil
	case models.IntentProjectMatching:
		records, err := e.retriever.RetrieveProjects(ctx, s.intent)
		if err != nil {
			return step{}, err
		}
		e.logger.Info("projects retrieved", zap.Int("count", len(records)))
		if len(records) == 0 {
			return retrievalFailed(s.intent), nil
		}
		return step{kind: stepRetrievalSucceeded, query: s.query, intent: s.intent, projects: records}, nil
	default:
		return step{}, fmt.Errorf("retrieval for intent %q", s.intent.Intent)
	}
}

func (e *Engine) summarize(ctx context.Context, t *turn, s step) (step, error) {
	ctx, span := tracer.Start(ctx, "workflow.summarization")
	defer span.End()

	var (
		records      any
		systemPrompt string
		userTemplate string
	)
	if len(s.projects) > 0 {
		records, systemPrompt, userTemplate = s.projects, projectSummarySystemPrompt, projectSummaryUserMessage
	} else {
		records, systemPrompt, userTemplate = s.caseStudies, caseStudySummarySystemPrompt, caseStudySummaryUserMessage
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return step{}, fmt.Errorf("marshal records: %w", err)
	}
	answer, err := e.generator.GenerateText(ctx, systemPrompt, fmt.Sprintf(userTemplate, s.query, data), e.chatOpts...)
	if err != nil {
		return step{}, fmt.Errorf("summarize: %w", err)
	}
	if err := e.store.Delete(ctx, t.workflowID); err != nil {
		e.logger.Warn("failed to delete conversation state", zap.String("workflow_id", t.workflowID), zap.Error(err))
	}
	ic := s.intent
	return completed(&Result{
		WorkflowID: t.workflowID,
		Status:     models.StatusCompleted,
		Response:   answer,
		Records:    records,
		Intent:     &ic,
	}), nil
}

// clarify gives up once the attempt cap is reached, otherwise asks the user and suspends.
func (e *Engine) clarify(ctx context.Context, t *turn, s step) (step, error) {
	ctx, span := tracer.Start(ctx, "workflow.clarification")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.reason", string(s.reason)),
		attribute.Int("workflow.iterations", t.state.Iterations),
	)

	if t.state.Iterations >= e.maxAttempts {
		e.logger.Warn("clarification attempts exhausted",
			zap.String("workflow_id", t.workflowID), zap.String("reason", string(s.reason)))
		if err := e.store.Delete(ctx, t.workflowID); err != nil {
			e.logger.Warn("failed to delete conversation state", zap.String("workflow_id", t.workflowID), zap.Error(err))
		}
		return completed(&Result{WorkflowID: t.workflowID, Status: models.StatusCompleted, Response: GiveUpMessage}), nil
	}

	prompt := clarificationPrompt(s.reason)
	t.state.addAssistant(prompt)
	t.state.Position = PositionAwaitingFeedback
	data, err := encodeState(t.state)
	if err != nil {
		return step{}, fmt.Errorf("encode conversation state: %w", err)
	}
	if err := e.store.Save(ctx, t.workflowID, data); err != nil {
		return step{}, fmt.Errorf("save conversation %s: %w", t.workflowID, err)
	}
	e.logger.Info("workflow suspended for clarification",
		zap.String("workflow_id", t.workflowID),
		zap.String("reason", string(s.reason)),
		zap.Int("iterations", t.state.Iterations))

	ic := s.intent
	return completed(&Result{
		WorkflowID: t.workflowID,
		Status:     models.StatusClarificationRequired,
		Response:   prompt,
		Intent:     &ic,
	}), nil
}

func (e *Engine) failed(t *turn) *Result {
	return &Result{WorkflowID: t.workflowID, Status: models.StatusFailed, Response: FailedMessage}
}

func (e *Engine) fail(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Error(msg, zap.Error(err))
	return err
}
