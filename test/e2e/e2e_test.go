package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/workflow"
)

type harness struct {
	cfg     *config.Config
	catalog *storage.SQLiteCatalog
	indexes *vector.Set
	http    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "records.db")
	cfg.Session = config.SessionConfig{Type: "sqlite", TTL: time.Minute, DatabasePath: filepath.Join(dir, "sessions.db")}
	cfg.Data.Directory = dir
	config.ApplyDefaults(cfg)
	cfg.Vector.Dimensions = dimensions
	zero := 0.0
	cfg.Retrieval.CaseStudyScoreThreshold = &zero

	if err := WriteSeedFiles(dir); err != nil {
		t.Fatal(err)
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	indexes, err := vector.NewSet(cfg.Vector.Type, "", cfg.Vector.Dimensions)
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := session.NewStore(context.Background(), cfg.Session)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	model := NewScriptedModel()
	idx := indexer.NewIndexer(model,
		vector.Tee(catalog.Projects(), indexes.Projects),
		vector.Tee(catalog.CaseStudies(), indexes.CaseStudies),
	)
	ctx := context.Background()
	if _, err := idx.IndexFile(ctx, cfg.Data.ProjectsPath(), indexer.KindProjects); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IndexFile(ctx, cfg.Data.CaseStudiesPath(), indexer.KindCaseStudies); err != nil {
		t.Fatal(err)
	}

	retriever := search.NewRetriever(model, indexes.Projects, indexes.CaseStudies, &cfg.Retrieval)
	engine := workflow.NewEngine(intent.NewClassifier(model), retriever, model, sessions,
		workflow.WithMaxAttempts(cfg.Workflow.Attempts()))
	srv := server.NewServer(engine, indexes, sessions, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &harness{cfg: cfg, catalog: catalog, indexes: indexes, http: ts}
}

type chatResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Response   string `json:"response"`
	Context    []struct {
		ID     string          `json:"id"`
		Score  float64         `json:"score"`
		Record json.RawMessage `json:"record"`
	} `json:"context"`
}

func (h *harness) chat(t *testing.T, workflowID, query string) chatResponse {
	t.Helper()
	body, _ := json.Marshal(models.NewChatRequest(workflowID, query))
	resp, err := http.Post(h.http.URL+"/workflow", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /workflow returned %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestE2E_ClarifyThenAnswer(t *testing.T) {
	h := newHarness(t)

	first := h.chat(t, "", "Tell me something interesting")
	if first.Status != string(models.StatusClarificationRequired) {
		t.Fatalf("first turn status = %s, want clarification_required", first.Status)
	}
	if first.WorkflowID == "" || len(first.Context) != 0 {
		t.Fatalf("unexpected first turn: %+v", first)
	}

	second := h.chat(t, first.WorkflowID, "Retail case studies please")
	if second.Status != string(models.StatusCompleted) {
		t.Fatalf("second turn status = %s, want completed", second.Status)
	}
	if second.WorkflowID != first.WorkflowID {
		t.Errorf("resumed turn should keep the workflow id: %s != %s", second.WorkflowID, first.WorkflowID)
	}
	if len(second.Context) != 2 {
		t.Fatalf("expected both case studies with the threshold disabled, got %d", len(second.Context))
	}
	var top models.CaseStudy
	if err := json.Unmarshal(second.Context[0].Record, &top); err != nil {
		t.Fatal(err)
	}
	if top.Title != "Growing retail engagement" || top.SourceURL != "https://example.com/retail" {
		t.Errorf("top record = %+v", top)
	}
	if second.Context[0].Score < second.Context[1].Score {
		t.Errorf("records should be sorted by score: %v < %v", second.Context[0].Score, second.Context[1].Score)
	}
	if second.Context[0].ID != indexer.CaseStudyID(top) {
		t.Errorf("record id = %s, want %s", second.Context[0].ID, indexer.CaseStudyID(top))
	}

	// The conversation was consumed; the same id now starts over under a new one.
	third := h.chat(t, first.WorkflowID, "Something vague")
	if third.WorkflowID == first.WorkflowID {
		t.Error("a finished conversation must not be resumable")
	}
	if third.Status != string(models.StatusClarificationRequired) {
		t.Errorf("third turn status = %s", third.Status)
	}
}

func TestE2E_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)

	resp := h.chat(t, "", "hmm")
	for i := 0; i < h.cfg.Workflow.Attempts(); i++ {
		if resp.Status != string(models.StatusClarificationRequired) {
			t.Fatalf("turn %d status = %s", i, resp.Status)
		}
		resp = h.chat(t, resp.WorkflowID, "still unclear")
	}
	if resp.Status != string(models.StatusCompleted) || resp.Response != workflow.GiveUpMessage {
		t.Errorf("expected give-up, got %+v", resp)
	}
}

func TestE2E_StatusAndRestartHydration(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status struct {
		Projects    int64 `json:"projects"`
		CaseStudies int64 `json:"case_studies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Projects != 2 || status.CaseStudies != 2 {
		t.Errorf("status counts = %+v, want 2/2", status)
	}

	// A fresh memory index replayed from the catalog answers like the original.
	ctx := context.Background()
	fresh, err := vector.NewSet("memory", "", dimensions)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := h.catalog.LoadProjects(ctx, fresh.Projects); err != nil || n != 2 {
		t.Fatalf("LoadProjects = %d, %v", n, err)
	}
	if n, err := h.catalog.LoadCaseStudies(ctx, fresh.CaseStudies); err != nil || n != 2 {
		t.Fatalf("LoadCaseStudies = %d, %v", n, err)
	}
	query := retailAxis("retail")
	before, err := h.indexes.CaseStudies.Search(ctx, query, vector.VectorDefault, 1)
	if err != nil {
		t.Fatal(err)
	}
	after, err := fresh.CaseStudies.Search(ctx, query, vector.VectorDefault, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 || len(after) != 1 || before[0].ID != after[0].ID {
		t.Errorf("hydrated search differs: %+v vs %+v", before, after)
	}
}
