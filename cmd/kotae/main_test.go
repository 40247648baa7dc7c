package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

func init() {
	color.NoColor = true
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"fintech"}, "fintech"},
		{"multiple words", []string{"fintech", "projects"}, "fintech projects"},
		{"single quoted phrase", []string{"fintech projects"}, "fintech projects"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

type chatCall struct {
	workflowID string
	query      string
}

type scriptedChatter struct {
	calls     []chatCall
	responses []*models.ChatResponse
	err       error
}

func (s *scriptedChatter) Chat(ctx context.Context, workflowID, query string) (*models.ChatResponse, error) {
	s.calls = append(s.calls, chatCall{workflowID, query})
	if s.err != nil {
		return nil, s.err
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func TestChatLoop_CarriesWorkflowIDAcrossClarification(t *testing.T) {
	chatter := &scriptedChatter{responses: []*models.ChatResponse{
		{WorkflowID: "wf-1", Status: models.StatusClarificationRequired, Response: "Which industry?"},
		{WorkflowID: "wf-1", Status: models.StatusCompleted, Response: "Here are two projects."},
		{WorkflowID: "wf-2", Status: models.StatusCompleted, Response: "A new answer."},
	}}
	in := strings.NewReader("projects\n\nretail\nsomething else\n/quit\nignored\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), chatter, in, &out, "", cli.OutputText); err != nil {
		t.Fatal(err)
	}
	want := []chatCall{{"", "projects"}, {"wf-1", "retail"}, {"", "something else"}}
	if len(chatter.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", chatter.calls, want)
	}
	for i := range want {
		if chatter.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, chatter.calls[i], want[i])
		}
	}
	if !strings.Contains(out.String(), "Which industry?") || !strings.Contains(out.String(), "Here are two projects.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestChatLoop_NewDropsPendingConversation(t *testing.T) {
	chatter := &scriptedChatter{responses: []*models.ChatResponse{
		{WorkflowID: "wf-1", Status: models.StatusClarificationRequired, Response: "?"},
		{WorkflowID: "wf-2", Status: models.StatusCompleted, Response: "done"},
	}}
	in := strings.NewReader("first\n/new\nsecond\n")
	var out bytes.Buffer
	if err := chatLoop(context.Background(), chatter, in, &out, "", cli.OutputText); err != nil {
		t.Fatal(err)
	}
	if len(chatter.calls) != 2 || chatter.calls[1].workflowID != "" {
		t.Errorf("expected /new to reset the workflow id, calls = %+v", chatter.calls)
	}
}

func TestChatLoop_ResumeFromFlagAndReportErrors(t *testing.T) {
	chatter := &scriptedChatter{err: errors.New("server returned 500")}
	in := strings.NewReader("answer\n")
	var out bytes.Buffer
	if err := chatLoop(context.Background(), chatter, in, &out, "wf-9", cli.OutputText); err != nil {
		t.Fatal(err)
	}
	if len(chatter.calls) != 1 || chatter.calls[0].workflowID != "wf-9" {
		t.Errorf("calls = %+v", chatter.calls)
	}
	if !strings.Contains(out.String(), "error: server returned 500") {
		t.Errorf("error not reported:\n%s", out.String())
	}
}

func TestWriteStatusText(t *testing.T) {
	status := map[string]any{
		"projects":     float64(3),
		"case_studies": float64(1),
		"config": map[string]any{
			"vector_index_type": "memory",
		},
	}
	var buf bytes.Buffer
	writeStatusText(&buf, status)
	out := buf.String()
	if strings.Index(out, "case_studies:") > strings.Index(out, "projects:") {
		t.Errorf("fields should be sorted:\n%s", out)
	}
	if !strings.Contains(out, "# configuration") || !strings.Contains(out, "vector_index_type:") {
		t.Errorf("missing config section:\n%s", out)
	}
	if strings.Contains(out, "config:") {
		t.Errorf("nested map should not be printed inline:\n%s", out)
	}
}

func TestGenerationOptions(t *testing.T) {
	temp := 0.3
	got := llm.Resolve(llm.GenerateOptions{}, generationOptions(config.GenerationConfig{
		Model: "gpt-4o", Temperature: &temp, MaxTokens: 200, TopP: 0.9,
	})...)
	if got.Model != "gpt-4o" || got.MaxTokens != 200 {
		t.Errorf("unexpected options: %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.TopP == nil || *got.TopP != 0.9 {
		t.Errorf("top_p = %v", got.TopP)
	}

	noTemp := llm.Resolve(llm.GenerateOptions{}, generationOptions(config.GenerationConfig{Model: "m"})...)
	if noTemp.Temperature != nil {
		t.Errorf("temperature should stay unset, got %v", *noTemp.Temperature)
	}
}

func TestCorpusFiles(t *testing.T) {
	cfg := &config.Config{Data: config.DataConfig{ProjectsFile: "p.json", CaseStudiesFile: "c.json"}}
	files := corpusFiles(cfg)
	if files["p.json"] != indexer.KindProjects || files["c.json"] != indexer.KindCaseStudies {
		t.Errorf("corpusFiles = %v", files)
	}
}

func TestNewModel_requiresAPIKey(t *testing.T) {
	t.Setenv("KOTAE_TEST_MISSING_KEY", "")
	cfg := &config.Config{LLM: config.LLMConfig{APIKeyEnv: "KOTAE_TEST_MISSING_KEY"}}
	if _, err := newModel(cfg, nil); err == nil || !strings.Contains(err.Error(), "KOTAE_TEST_MISSING_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8000
storage:
  database_path: "records.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Data.ProjectsFile != "projects.json" {
		t.Errorf("defaults not applied: %+v", cfg.Data)
	}
}
