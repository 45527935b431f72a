// Package store persists run artifacts: extracted prompt and response
// bodies on disk organized by prompt type, plus optional Postgres copies
// for querying across runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gatewatch/promptbench/internal/correlate"
	"github.com/gatewatch/promptbench/internal/report"
)

const (
	requestDir      = "request"
	responseDir     = "response"
	identifiersFile = "unique_identifiers.json"
	timingFile      = "response_timing_data.json"
	analysisFile    = "benchmark_analysis.json"
)

// identifiersDoc is the on-disk shape of unique_identifiers.json.
type identifiersDoc struct {
	Identifiers []correlate.IdentifierEntry `json:"identifiers"`
	TotalCount  int                         `json:"total_count"`
}

// FS writes run output under a single root directory.
type FS struct {
	root string
}

// NewFS creates the output root if needed.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FS{root: root}, nil
}

// Root returns the output root directory.
func (f *FS) Root() string {
	return f.root
}

// EnsureTypeFolders creates request/ and response/ subfolders for every
// prompt type so empty types still show up in the output tree.
func (f *FS) EnsureTypeFolders(promptTypes []string) error {
	for _, side := range []string{requestDir, responseDir} {
		for _, promptType := range promptTypes {
			dir := filepath.Join(f.root, side, promptType)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create type folder %s: %w", dir, err)
			}
		}
	}
	return nil
}

// SaveRequest writes one extracted request body under its prompt type.
func (f *FS) SaveRequest(promptType, id, content string) error {
	return f.saveBody(requestDir, promptType, id, content)
}

// SaveResponse writes one response body with a metadata header recording
// the correlation result.
func (f *FS) SaveResponse(rec correlate.TimingRecord, content string) error {
	timing := "unknown"
	if rec.ResponseTime != nil {
		timing = fmt.Sprintf("%.6f seconds", *rec.ResponseTime)
	}
	body := fmt.Sprintf("# Response ID: %s\n# Prompt Type: %s\n# Response Time: %s\n# Content:\n\n%s",
		rec.ID, rec.PromptType, timing, content)
	return f.saveBody(responseDir, rec.PromptType, rec.ID, body)
}

func (f *FS) saveBody(side, promptType, id, body string) error {
	dir := filepath.Join(f.root, side, promptType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create type folder %s: %w", dir, err)
	}
	path := filepath.Join(dir, id+".txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SaveIdentifiers persists the request-pass identifier index.
func (f *FS) SaveIdentifiers(entries []correlate.IdentifierEntry) error {
	doc := identifiersDoc{
		Identifiers: entries,
		TotalCount:  len(entries),
	}
	return f.writeJSON(identifiersFile, doc)
}

// LoadIdentifiers reads a previously saved identifier index.
func (f *FS) LoadIdentifiers() ([]correlate.IdentifierEntry, error) {
	data, err := os.ReadFile(filepath.Join(f.root, identifiersFile))
	if err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}
	var doc identifiersDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse identifiers: %w", err)
	}
	return doc.Identifiers, nil
}

// SaveTimingData persists the response-pass timing summary.
func (f *FS) SaveTimingData(summary report.Summary) error {
	return f.writeJSON(timingFile, summary)
}

// SaveAnalysis persists the benchmark analysis document.
func (f *FS) SaveAnalysis(a report.Analysis) error {
	return f.writeJSON(analysisFile, a)
}

// LoadAnalysis reads the persisted analysis, for serving over the API.
func (f *FS) LoadAnalysis() (report.Analysis, error) {
	var a report.Analysis
	data, err := os.ReadFile(filepath.Join(f.root, analysisFile))
	if err != nil {
		return a, fmt.Errorf("read analysis: %w", err)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("parse analysis: %w", err)
	}
	return a, nil
}

func (f *FS) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(f.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
