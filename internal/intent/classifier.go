// Package intent classifies user queries and condenses multi-turn conversations.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

// Schema is the structured-output contract for IntentContext.
var Schema = llm.Schema{
	Name: "intent_context",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": []string{
					string(models.IntentProjectMatching),
					string(models.IntentCaseStudyRetrieval),
					string(models.IntentAmbiguous),
				},
			},
			"justification": map[string]any{"type": "string"},
			"technologies":  stringList,
			"solutions":     stringList,
			"services":      stringList,
			"industry":      stringList,
		},
		"required":             []string{"intent", "justification", "technologies", "solutions", "services", "industry"},
		"additionalProperties": false,
	},
}

// Classifier turns queries into IntentContext values through the language model.
type Classifier struct {
	model        llm.Model
	parseOpts    []llm.Option
	condenseOpts []llm.Option
	logger       *zap.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithParseOptions sets generation options for Classify.
func WithParseOptions(opts ...llm.Option) ClassifierOption {
	return func(c *Classifier) { c.parseOpts = opts }
}

// WithCondenseOptions sets generation options for Condense.
func WithCondenseOptions(opts ...llm.Option) ClassifierOption {
	return func(c *Classifier) { c.condenseOpts = opts }
}

// WithLogger sets a logger for classification results.
func WithLogger(l *zap.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a classifier backed by model.
func NewClassifier(model llm.Model, opts ...ClassifierOption) *Classifier {
	c := &Classifier{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify extracts the intent and entities of query. A response outside the
// schema is returned as llm.ErrSchemaViolation.
func (c *Classifier) Classify(ctx context.Context, query string) (models.IntentContext, error) {
	var ic models.IntentContext
	if err := c.model.GenerateStructured(ctx, ParsePrompt, query, Schema, &ic, c.parseOpts...); err != nil {
		return models.IntentContext{}, fmt.Errorf("classify: %w", err)
	}
	ic.Intent = models.Intent(strings.ToLower(strings.TrimSpace(string(ic.Intent))))
	if err := ic.Validate(); err != nil {
		return models.IntentContext{}, fmt.Errorf("classify: %w: %v", llm.ErrSchemaViolation, err)
	}
	c.logger.Debug("query classified",
		zap.String("intent", string(ic.Intent)),
		zap.Strings("technologies", ic.Technologies),
		zap.Strings("services", ic.Services),
	)
	return ic, nil
}

// Condense rewrites the chat history as one standalone search string.
// An empty history returns "" without calling the model.
func (c *Classifier) Condense(ctx context.Context, history []string) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	out, err := c.model.GenerateText(ctx, CondensePrompt, strings.Join(history, "\n"), c.condenseOpts...)
	if err != nil {
		return "", fmt.Errorf("condense: %w", err)
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}
