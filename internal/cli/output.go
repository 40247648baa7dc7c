// Package cli provides the chat client and output formatting for the kotae command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for chat turn output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteChatResponse writes one turn to w in the given format.
func WriteChatResponse(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return writeChatText(w, resp)
	}
}

// contextRecord is the part of a scored record shown in text output. Both
// projects and case studies carry a title.
type contextRecord struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Record struct {
		Title     string `json:"title"`
		SourceURL string `json:"sourceUrl"`
	} `json:"record"`
}

func writeChatText(w io.Writer, resp *models.ChatResponse) error {
	statusColor(resp.Status).Fprintf(w, "[%s]", resp.Status)
	fmt.Fprintf(w, " %s\n\n", resp.WorkflowID)
	fmt.Fprintf(w, "%s\n", resp.Response)

	records, err := contextRecords(resp.Context)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	color.New(color.Faint).Fprintf(w, "--- %d supporting record(s) ---\n", len(records))
	for i, r := range records {
		fmt.Fprintf(w, "%2d. %s (score %.4f)\n", i+1, utils.Truncate(r.Record.Title, 80), r.Score)
		if r.Record.SourceURL != "" {
			fmt.Fprintf(w, "    %s\n", r.Record.SourceURL)
		}
	}
	return nil
}

// contextRecords re-reads the opaque response context as a list of titled records.
func contextRecords(ctx any) ([]contextRecord, error) {
	if ctx == nil {
		return nil, nil
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	var records []contextRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return records, nil
}

func statusColor(s models.WorkflowStatus) *color.Color {
	switch s {
	case models.StatusCompleted:
		return color.New(color.FgGreen, color.Bold)
	case models.StatusClarificationRequired:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
