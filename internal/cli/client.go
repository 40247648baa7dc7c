package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// Client talks to a running kotae server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for serverURL (e.g. http://localhost:8000).
// Turns can take several model calls, so the timeout is generous.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Chat sends one turn. workflowID is empty for a new conversation.
func (c *Client) Chat(ctx context.Context, workflowID, query string) (*models.ChatResponse, error) {
	body, err := json.Marshal(models.NewChatRequest(workflowID, query))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/workflow", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out models.ChatResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches GET /api/v1/status as a generic document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NextWorkflowID returns the ID to send with the following turn: the current
// one while clarification is pending, empty once the conversation has ended.
func NextWorkflowID(resp *models.ChatResponse) string {
	if resp.Status == models.StatusClarificationRequired {
		return resp.WorkflowID
	}
	return ""
}
