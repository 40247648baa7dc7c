package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structuredReturning(v any) func(context.Context, string, string, llm.Schema, any) error {
	return func(_ context.Context, _, _ string, _ llm.Schema, out any) error {
		return llm.Fill(v, out)
	}
}

func TestClassify(t *testing.T) {
	mock := llm.NewMockModel(4)
	mock.StructuredFunc = func(_ context.Context, system, user string, schema llm.Schema, out any) error {
		assert.Equal(t, ParsePrompt, system)
		assert.Equal(t, "intent_context", schema.Name)
		return llm.Fill(map[string]any{
			"intent":        "PROJECT_MATCHING",
			"justification": "asks about delivered work",
			"technologies":  []string{"Python"},
			"solutions":     []string{},
			"services":      []string{},
			"industry":      []string{"Healthcare"},
		}, out)
	}
	c := NewClassifier(mock)

	ic, err := c.Classify(context.Background(), "Show me Python projects in Healthcare")
	require.NoError(t, err)
	assert.Equal(t, models.IntentProjectMatching, ic.Intent)
	assert.Equal(t, []string{"Python"}, ic.Technologies)
	assert.Equal(t, []string{"Healthcare"}, ic.Industry)
	assert.Equal(t, []string{"Show me Python projects in Healthcare"}, mock.StructuredCalls())
}

func TestClassify_unknownIntentIsSchemaViolation(t *testing.T) {
	mock := llm.NewMockModel(4)
	mock.StructuredFunc = structuredReturning(map[string]any{"intent": "staffing"})
	_, err := NewClassifier(mock).Classify(context.Background(), "Who is free?")
	assert.ErrorIs(t, err, llm.ErrSchemaViolation)
}

func TestClassify_propagatesModelError(t *testing.T) {
	mock := llm.NewMockModel(4)
	boom := errors.New("upstream down")
	mock.StructuredFunc = func(context.Context, string, string, llm.Schema, any) error { return boom }
	_, err := NewClassifier(mock).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestCondense_emptyHistorySkipsModel(t *testing.T) {
	mock := llm.NewMockModel(4)
	out, err := NewClassifier(mock).Condense(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Empty(t, mock.TextCalls())
}

func TestCondense_joinsHistory(t *testing.T) {
	mock := llm.NewMockModel(4)
	mock.TextFunc = func(_ context.Context, system, user string, o llm.GenerateOptions) (string, error) {
		assert.Equal(t, CondensePrompt, system)
		assert.Equal(t, "gpt-4o-mini", o.Model)
		return ` "Python healthcare projects with HIPAA compliance" `, nil
	}
	c := NewClassifier(mock, WithCondenseOptions(llm.WithModel("gpt-4o-mini")))
	history := []string{
		"User: Show me Python projects in Healthcare",
		"Assistant: I couldn't find any records that match those specific criteria.",
		"User: ones with HIPAA compliance",
	}
	out, err := c.Condense(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Python healthcare projects with HIPAA compliance", out)
	calls := mock.TextCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, strings.Join(history, "\n"), calls[0])
}
