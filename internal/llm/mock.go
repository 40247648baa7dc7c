package llm

import (
	"context"
	"encoding/json"
	"math"
	"sync"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockModel is a deterministic Model for tests. Embeddings are derived from the text
// hash so equal texts always embed equally; generation is scripted through the hooks.
type MockModel struct {
	Dimensions     int
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	TextFunc       func(ctx context.Context, systemPrompt, userMessage string, o GenerateOptions) (string, error)
	StructuredFunc func(ctx context.Context, systemPrompt, userMessage string, schema Schema, out any) error

	mu              sync.Mutex
	embedCalls      []string
	textCalls       []string
	structuredCalls []string
}

// NewMockModel returns a mock producing embeddings of the given dimensions.
func NewMockModel(dimensions int) *MockModel {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockModel{Dimensions: dimensions}
}

// Embed records the call and returns EmbedFunc's result or a hash embedding.
func (m *MockModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls = append(m.embedCalls, text)
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return HashEmbedding(text, m.Dimensions), nil
}

// GenerateText records the user message and returns TextFunc's result or "ok".
func (m *MockModel) GenerateText(ctx context.Context, systemPrompt, userMessage string, opts ...Option) (string, error) {
	m.mu.Lock()
	m.textCalls = append(m.textCalls, userMessage)
	m.mu.Unlock()
	if m.TextFunc != nil {
		return m.TextFunc(ctx, systemPrompt, userMessage, Resolve(GenerateOptions{}, opts...))
	}
	return "ok", nil
}

// GenerateStructured records the user message and delegates to StructuredFunc.
func (m *MockModel) GenerateStructured(ctx context.Context, systemPrompt, userMessage string, schema Schema, out any, opts ...Option) error {
	m.mu.Lock()
	m.structuredCalls = append(m.structuredCalls, userMessage)
	m.mu.Unlock()
	if m.StructuredFunc == nil {
		return ErrSchemaViolation
	}
	return m.StructuredFunc(ctx, systemPrompt, userMessage, schema, out)
}

// EmbedCalls returns the texts passed to Embed.
func (m *MockModel) EmbedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embedCalls...)
}

// TextCalls returns the user messages passed to GenerateText.
func (m *MockModel) TextCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.textCalls...)
}

// StructuredCalls returns the user messages passed to GenerateStructured.
func (m *MockModel) StructuredCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.structuredCalls...)
}

// Fill copies v into out through JSON, the way a provider response would be decoded.
func Fill(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// HashEmbedding returns a unit-length vector derived from the text hash.
func HashEmbedding(text string, dimensions int) []float32 {
	h := 0
	for _, c := range text {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	emb := make([]float32, dimensions)
	for i := 0; i < dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}
