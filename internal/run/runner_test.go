package run

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gatewatch/promptbench/internal/signature"
	"github.com/gatewatch/promptbench/internal/store"
)

const testPromptTypes = `{
  "prompt_types": {
    "dialogue_response": {
      "usage": "default",
      "original_signature": "You are roleplaying as {{ npc.name }}. Remain completely in character and speak as they would.",
      "simplified_signature": "You are roleplaying as [VAR]. Remain completely in character and speak as they would"
    }
  }
}`

const inputLog = `[2024-01-01 10:00:00.000000] Generate dialogue request via OpenRouter [abc-123]:
{
  "messages": [
    {
      "role": "system",
      "content": "You are roleplaying as a guard. Remain completely in character and speak as they would."
    }
  ]
}
[2024-01-01 10:00:05.000000] Generate dialogue request via OpenRouter [def-456]:
not json at all
`

const outputLog = `[2024-01-01 10:00:02.500000] Generate dialogue via OpenRouter response [abc-123]:
Halt. You there.
[2024-01-01 10:00:06.000000] Generate dialogue via OpenRouter response [zzz-999]:
An orphaned response.
`

func testRunner(t *testing.T, logDir string) (*Runner, *store.FS) {
	t.Helper()

	sigs, err := signature.Parse([]byte(testPromptTypes))
	if err != nil {
		t.Fatalf("parse prompt types: %v", err)
	}
	fs, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	state, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New([]string{logDir}, sigs, fs, state, logger), fs
}

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	logDir := t.TempDir()
	writeLog(t, logDir, "openrouter_input.log", inputLog)
	writeLog(t, logDir, "openrouter_output.log", outputLog)

	r, fs := testRunner(t, logDir)
	counters, timings, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if counters.RequestsParsed != 1 {
		t.Errorf("requests parsed = %d, want 1", counters.RequestsParsed)
	}
	if counters.RequestsSkipped != 1 {
		t.Errorf("requests skipped = %d, want 1 (the non-JSON body)", counters.RequestsSkipped)
	}
	if counters.ResponsesParsed != 2 {
		t.Errorf("responses parsed = %d, want 2", counters.ResponsesParsed)
	}
	if counters.ResponsesCorrelated != 1 {
		t.Errorf("responses correlated = %d, want 1", counters.ResponsesCorrelated)
	}
	if counters.UnmatchedResponses != 1 {
		t.Errorf("unmatched = %d, want 1", counters.UnmatchedResponses)
	}
	if counters.ClassifiedByTier["pattern"] != 1 {
		t.Errorf("tier counts = %v, want 1 pattern hit", counters.ClassifiedByTier)
	}
	if counters.RequestsByType["dialogue_response"] != 1 {
		t.Errorf("type counts = %v, want 1 dialogue_response", counters.RequestsByType)
	}
	if counters.TimestampParseFailures != 0 {
		t.Errorf("timestamp parse failures = %d, want 0", counters.TimestampParseFailures)
	}

	if len(timings) != 1 {
		t.Fatalf("timings = %d, want 1", len(timings))
	}
	if timings[0].ID != "abc-123" || timings[0].PromptType != "dialogue_response" {
		t.Errorf("timing = %+v", timings[0])
	}
	if timings[0].ResponseTime == nil || *timings[0].ResponseTime != 2.5 {
		t.Errorf("elapsed = %v, want 2.5", timings[0].ResponseTime)
	}

	reqPath := filepath.Join(fs.Root(), "request", "dialogue_response", "abc-123.txt")
	if _, err := os.Stat(reqPath); err != nil {
		t.Errorf("missing saved request: %v", err)
	}
	respPath := filepath.Join(fs.Root(), "response", "dialogue_response", "abc-123.txt")
	data, err := os.ReadFile(respPath)
	if err != nil {
		t.Fatalf("missing saved response: %v", err)
	}
	if !strings.Contains(string(data), "Halt. You there.") {
		t.Errorf("response body not persisted:\n%s", data)
	}

	entries, err := fs.LoadIdentifiers()
	if err != nil {
		t.Fatalf("load identifiers: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc-123" {
		t.Errorf("identifiers = %+v", entries)
	}
}

func TestRun_SkipsProcessedFiles(t *testing.T) {
	logDir := t.TempDir()
	writeLog(t, logDir, "openrouter_input.log", inputLog)
	writeLog(t, logDir, "openrouter_output.log", outputLog)

	r, _ := testRunner(t, logDir)
	if _, _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	counters, timings, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if counters.RequestsParsed != 0 || counters.ResponsesParsed != 0 {
		t.Errorf("second run reparsed files: %+v", counters)
	}
	if len(timings) != 0 {
		t.Errorf("second run produced timings: %+v", timings)
	}
}

func TestRun_RotatedFilesDiscovered(t *testing.T) {
	logDir := t.TempDir()
	writeLog(t, logDir, "openrouter_input.log.1", inputLog)
	writeLog(t, logDir, "unrelated.log", inputLog)

	r, _ := testRunner(t, logDir)
	files, err := r.discover(inputLogPrefix)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "openrouter_input.log.1") {
		t.Errorf("files = %v", files)
	}
}

func TestRun_MissingLogDir(t *testing.T) {
	r, _ := testRunner(t, filepath.Join(t.TempDir(), "no_such_dir"))
	if _, _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error for missing log directory")
	}
}

func TestRun_UnknownRequestsCounted(t *testing.T) {
	logDir := t.TempDir()
	unknownLog := `[2024-01-01 10:00:00.000000] Generate request via OpenRouter [mystery-1]:
{"messages": [{"role": "system", "content": "Entirely novel instructions nothing recognizes."}]}
`
	writeLog(t, logDir, "openrouter_input.log", unknownLog)

	r, fs := testRunner(t, logDir)
	counters, _, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if counters.UnknownRequests != 1 {
		t.Errorf("unknown requests = %d, want 1", counters.UnknownRequests)
	}
	if _, err := os.Stat(filepath.Join(fs.Root(), "request", "unknown", "mystery-1.txt")); err != nil {
		t.Errorf("unknown request not persisted under unknown/: %v", err)
	}
}

func TestRun_TimestampParseFailureCounted(t *testing.T) {
	logDir := t.TempDir()
	badTSInput := `[garbled stamp] Generate dialogue request via OpenRouter [bad-ts-1]:
{"messages": [{"role": "system", "content": "You are roleplaying as a guard. Remain completely in character and speak as they would."}]}
`
	badTSOutput := `[2024-01-01 10:00:02.500000] Generate dialogue via OpenRouter response [bad-ts-1]:
A reply despite the broken request stamp.
`
	writeLog(t, logDir, "openrouter_input.log", badTSInput)
	writeLog(t, logDir, "openrouter_output.log", badTSOutput)

	r, _ := testRunner(t, logDir)
	counters, timings, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if counters.ResponsesCorrelated != 1 {
		t.Fatalf("correlated = %d, want 1", counters.ResponsesCorrelated)
	}
	if counters.TimestampParseFailures != 1 {
		t.Errorf("timestamp parse failures = %d, want 1", counters.TimestampParseFailures)
	}
	if len(timings) != 1 || timings[0].ResponseTime != nil {
		t.Errorf("timing record must be kept with absent elapsed time: %+v", timings)
	}
}

func TestRun_CorruptIdentifierIndexWarnsAndRecovers(t *testing.T) {
	logDir := t.TempDir()
	writeLog(t, logDir, "openrouter_input.log", inputLog)

	sigs, err := signature.Parse([]byte(testPromptTypes))
	if err != nil {
		t.Fatalf("parse prompt types: %v", err)
	}
	fs, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root(), "unique_identifiers.json"), []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("write corrupt index: %v", err)
	}
	state, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	r := New([]string{logDir}, sigs, fs, state, logger)
	counters, _, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run must survive a corrupt identifier index: %v", err)
	}
	if counters.RequestsParsed != 1 {
		t.Errorf("requests parsed = %d, want 1", counters.RequestsParsed)
	}
	if !strings.Contains(logBuf.String(), "identifier index unreadable") {
		t.Errorf("expected a warning about the corrupt index, got:\n%s", logBuf.String())
	}

	entries, err := fs.LoadIdentifiers()
	if err != nil {
		t.Fatalf("index not rewritten after run: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc-123" {
		t.Errorf("identifiers = %+v", entries)
	}
}

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.RunID == "" {
		t.Error("fresh state must get a run id")
	}
	s.MarkProcessed("/logs/openrouter_input.log")
	s.RequestsParsed = 7
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.RunID != s.RunID {
		t.Errorf("run id changed across reload: %q vs %q", loaded.RunID, s.RunID)
	}
	if !loaded.IsProcessed("/logs/openrouter_input.log") {
		t.Error("processed file not persisted")
	}
	if loaded.RequestsParsed != 7 {
		t.Errorf("requests parsed = %d, want 7", loaded.RequestsParsed)
	}
	if loaded.IsProcessed("/logs/other.log") {
		t.Error("unexpected processed file")
	}
}
