package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gatewatch/promptbench/internal/correlate"
	"github.com/gatewatch/promptbench/internal/report"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	return fs
}

func TestEnsureTypeFolders(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.EnsureTypeFolders([]string{"dialogue_response", "evaluate_mood"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range []string{
		"request/dialogue_response",
		"request/evaluate_mood",
		"response/dialogue_response",
		"response/evaluate_mood",
	} {
		info, err := os.Stat(filepath.Join(fs.Root(), p))
		if err != nil || !info.IsDir() {
			t.Errorf("missing folder %s: %v", p, err)
		}
	}
}

func TestSaveRequest(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.SaveRequest("dialogue_response", "abc-123", "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(fs.Root(), "request", "dialogue_response", "abc-123.txt"))
	if err != nil {
		t.Fatalf("read saved request: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("content = %q", data)
	}
}

func TestSaveResponse_MetadataHeader(t *testing.T) {
	fs := newTestFS(t)
	elapsed := 2.5
	rec := correlate.TimingRecord{
		ID:           "abc-123",
		PromptType:   "dialogue_response",
		ResponseTime: &elapsed,
	}

	if err := fs.SaveResponse(rec, "the reply body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(fs.Root(), "response", "dialogue_response", "abc-123.txt"))
	if err != nil {
		t.Fatalf("read saved response: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"# Response ID: abc-123",
		"# Prompt Type: dialogue_response",
		"# Response Time: 2.500000 seconds",
		"# Content:",
		"the reply body",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("response file missing %q in:\n%s", want, out)
		}
	}
}

func TestSaveResponse_UnknownTiming(t *testing.T) {
	fs := newTestFS(t)
	rec := correlate.TimingRecord{ID: "x", PromptType: "evaluate_mood"}

	if err := fs.SaveResponse(rec, "body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(fs.Root(), "response", "evaluate_mood", "x.txt"))
	if !strings.Contains(string(data), "# Response Time: unknown") {
		t.Errorf("expected unknown timing marker, got:\n%s", data)
	}
}

func TestIdentifiersRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	entries := []correlate.IdentifierEntry{
		{ID: "a", Timestamp: "2024-01-01 10:00:00.000000", PromptType: "dialogue_response"},
		{ID: "b", Timestamp: "2024-01-01 10:01:00.000000", PromptType: "evaluate_mood"},
	}

	if err := fs.SaveIdentifiers(entries); err != nil {
		t.Fatalf("save: %v", err)
	}

	// total_count must be present for downstream tooling.
	raw, _ := os.ReadFile(filepath.Join(fs.Root(), "unique_identifiers.json"))
	if !strings.Contains(string(raw), `"total_count": 2`) {
		t.Errorf("missing total_count in:\n%s", raw)
	}

	got, err := fs.LoadIdentifiers()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].PromptType != "evaluate_mood" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestLoadIdentifiers_Missing(t *testing.T) {
	fs := newTestFS(t)
	if _, err := fs.LoadIdentifiers(); err == nil {
		t.Error("expected error for missing identifiers file")
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	elapsed := 1.5
	a := report.Analyze([]correlate.TimingRecord{
		{ID: "a", PromptType: "dialogue_response", ResponseTime: &elapsed},
	})

	if err := fs.SaveAnalysis(a); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := fs.LoadAnalysis()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Overall.TotalResponses != 1 {
		t.Errorf("total = %d, want 1", got.Overall.TotalResponses)
	}
	if got.ByType["dialogue_response"].Count != 1 {
		t.Errorf("by type = %+v", got.ByType)
	}
}

func TestSaveTimingData(t *testing.T) {
	fs := newTestFS(t)
	elapsed := 3.0
	summary := report.Summarize([]correlate.TimingRecord{
		{ID: "a", PromptType: "t", ResponseTime: &elapsed},
	})

	if err := fs.SaveTimingData(summary); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(fs.Root(), "response_timing_data.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"responses_with_timing": 1`) {
		t.Errorf("timing data missing counts:\n%s", raw)
	}
}
