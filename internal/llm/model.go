// Package llm provides the language model adapter: embeddings, free-text generation
// and schema-constrained extraction against an OpenAI-compatible API.
package llm

import "context"

// Model is the language model capability the workflow depends on.
// Implementations apply the same RetryPolicy to every call.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateText(ctx context.Context, systemPrompt, userMessage string, opts ...Option) (string, error)
	GenerateStructured(ctx context.Context, systemPrompt, userMessage string, schema Schema, out any, opts ...Option) error
}

// Schema is a named JSON schema used to constrain structured output.
type Schema struct {
	Name       string
	Definition map[string]any
}

// GenerateOptions are per-call sampling settings. Nil pointers fall back to the client defaults.
type GenerateOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        *float64
}

// Option configures a single generation call.
type Option func(*GenerateOptions)

// WithModel overrides the model for one call.
func WithModel(model string) Option {
	return func(o *GenerateOptions) { o.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *GenerateOptions) { o.Temperature = &t }
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(n int) Option {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithTopP overrides nucleus sampling.
func WithTopP(p float64) Option {
	return func(o *GenerateOptions) { o.TopP = &p }
}

// Resolve applies opts on top of base and returns the result.
func Resolve(base GenerateOptions, opts ...Option) GenerateOptions {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
