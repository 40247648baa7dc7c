package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hyperjump/kotae/internal/llm")

// Client talks to an OpenAI-compatible HTTP API.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	defaults       GenerateOptions
	httpClient     *http.Client
	retry          RetryPolicy
	logger         *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for request diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithRetryPolicy sets the retry policy applied to every call.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

// WithDefaults sets the generation settings used when a call does not override them.
func WithDefaults(o GenerateOptions) ClientOption {
	return func(c *Client) { c.defaults = o }
}

// NewClient creates a client for baseURL (e.g. https://api.openai.com/v1).
func NewClient(baseURL, apiKey, embeddingModel string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		embeddingModel: embeddingModel,
		defaults:       GenerateOptions{Model: "gpt-4o-mini"},
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		retry:          DefaultRetryPolicy(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Logger == nil {
		c.retry.Logger = c.logger
	}
	return c
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "llm.embed")
	defer span.End()

	var out embeddingResponse
	err := c.retry.Do(ctx, "embed", func(ctx context.Context) error {
		return c.post(ctx, "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: text}, &out)
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embedding failed: empty response")
	}
	return out.Data[0].Embedding, nil
}

// GenerateText returns the assistant reply for a system prompt and one user message.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userMessage string, opts ...Option) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate_text")
	defer span.End()

	content, err := c.complete(ctx, "generate_text", systemPrompt, userMessage, nil, Resolve(c.defaults, opts...))
	if err != nil {
		recordError(span, err)
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	return content, nil
}

// GenerateStructured asks for JSON conforming to schema and decodes it into out.
// Undecodable content is reported as ErrSchemaViolation.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, userMessage string, schema Schema, out any, opts ...Option) error {
	ctx, span := tracer.Start(ctx, "llm.generate_structured")
	defer span.End()
	span.SetAttributes(attribute.String("llm.schema", schema.Name))

	format := &responseFormat{
		Type:       "json_schema",
		JSONSchema: &jsonSchema{Name: schema.Name, Schema: schema.Definition, Strict: true},
	}
	content, err := c.complete(ctx, "generate_structured", systemPrompt, userMessage, format, Resolve(c.defaults, opts...))
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("structured generation failed: %w", err)
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		recordError(span, err)
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, schema.Name, err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, op, systemPrompt, userMessage string, format *responseFormat, o GenerateOptions) (string, error) {
	req := chatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature:    o.Temperature,
		MaxTokens:      o.MaxTokens,
		TopP:           o.TopP,
		ResponseFormat: format,
	}
	var out chatResponse
	err := c.retry.Do(ctx, op, func(ctx context.Context) error {
		return c.post(ctx, "/chat/completions", req, &out)
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("model api call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := string(b)
		var apiErr apiErrorBody
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Message: msg}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
