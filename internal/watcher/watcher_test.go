package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	kinds   []string
	removed []string
}

func (r *recorder) onChange(path, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, path)
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) snapshot() (changed, kinds, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.kinds...), append([]string(nil), r.removed...)
}

var corpusFiles = map[string]string{
	"projects.json":     "projects",
	"case_studies.json": "case_studies",
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_ReloadsKnownFileWithKind(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, corpusFiles, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "case_studies.json")
	if err := writeFile(path, "[]"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		changed, _, _ := rec.snapshot()
		return len(changed) > 0
	})
	changed, kinds, _ := rec.snapshot()
	if changed[0] != path {
		t.Errorf("changed path = %q, want %q", changed[0], path)
	}
	if kinds[0] != "case_studies" {
		t.Errorf("kind = %q, want case_studies", kinds[0])
	}
}

func TestWatcher_IgnoresUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, corpusFiles, rec.onChange, rec.onRemove, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "projects.json"), "[]"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if changed, _, _ := rec.snapshot(); len(changed) != 0 {
		t.Errorf("expected no reloads, got %v", changed)
	}
}

func TestWatcher_DebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, corpusFiles, rec.onChange, rec.onRemove, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "projects.json")
	for i := 0; i < 5; i++ {
		if err := writeFile(path, "[]"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, func() bool {
		changed, _, _ := rec.snapshot()
		return len(changed) > 0
	})
	time.Sleep(300 * time.Millisecond)
	if changed, _, _ := rec.snapshot(); len(changed) != 1 {
		t.Errorf("expected a single debounced reload, got %d", len(changed))
	}
}

func TestWatcher_RemoveCallsOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.json")
	if err := writeFile(path, "[]"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher(dir, corpusFiles, rec.onChange, rec.onRemove, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, _, removed := rec.snapshot()
		return len(removed) > 0
	})
	_, _, removed := rec.snapshot()
	if removed[0] != path {
		t.Errorf("removed = %q, want %q", removed[0], path)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "projects.json"), "[]"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "other.json"), "[]"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher(dir, corpusFiles, rec.onChange, nil)
	w.SyncExistingFiles()

	changed, kinds, _ := rec.snapshot()
	if len(changed) != 1 || filepath.Base(changed[0]) != "projects.json" || kinds[0] != "projects" {
		t.Errorf("expected only projects.json, got %v %v", changed, kinds)
	}
}

func TestWatcher_Start_createsMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "seed")
	w := NewWatcher(dir, corpusFiles, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), corpusFiles, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_Files(t *testing.T) {
	w := NewWatcher("/data", map[string]string{"/elsewhere/projects.json": "projects", "case_studies.json": "case_studies"}, nil, nil)
	got := w.Files()
	if len(got) != 2 || got[0] != "case_studies.json" || got[1] != "projects.json" {
		t.Errorf("Files() = %v", got)
	}
	if kind, ok := w.kindOf("/data/projects.json"); !ok || kind != "projects" {
		t.Errorf("kindOf = %q, %v", kind, ok)
	}
	if _, ok := w.kindOf("/other/projects.json"); ok {
		t.Error("file outside the data directory should be ignored")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
