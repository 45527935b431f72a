// Package run drives the two-pass benchmark pipeline: a request pass
// that segments, extracts, and classifies gateway request logs, and a
// response pass that correlates responses back to their requests.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gatewatch/promptbench/internal/classify"
	"github.com/gatewatch/promptbench/internal/correlate"
	"github.com/gatewatch/promptbench/internal/extract"
	"github.com/gatewatch/promptbench/internal/segment"
	"github.com/gatewatch/promptbench/internal/signature"
	"github.com/gatewatch/promptbench/internal/store"
)

const (
	inputLogPrefix  = "openrouter_input.log"
	outputLogPrefix = "openrouter_output.log"
)

// Counters accumulates per-run totals for the final summary.
type Counters struct {
	RequestsParsed         int
	RequestsSkipped        int
	UnknownRequests        int
	ClassifiedByTier       map[string]int
	RequestsByType         map[string]int
	ResponsesParsed        int
	ResponsesSkipped       int
	ResponsesCorrelated    int
	UnmatchedResponses     int
	TimestampParseFailures int
}

func newCounters() Counters {
	return Counters{
		ClassifiedByTier: make(map[string]int),
		RequestsByType:   make(map[string]int),
	}
}

// Runner executes one benchmark run over a set of log directories.
type Runner struct {
	logDirs    []string
	signatures *signature.Store
	classifier *classify.Classifier
	fs         *store.FS
	db         *store.Postgres
	state      *State
	logger     *slog.Logger
}

func New(logDirs []string, sigs *signature.Store, fs *store.FS, state *State, logger *slog.Logger) *Runner {
	return &Runner{
		logDirs:    logDirs,
		signatures: sigs,
		classifier: classify.New(sigs),
		fs:         fs,
		state:      state,
		logger:     logger,
	}
}

// WithDB attaches an optional Postgres mirror.
func (r *Runner) WithDB(db *store.Postgres) *Runner {
	r.db = db
	return r
}

// Run executes the request pass then the response pass and returns the
// run counters plus the timing records produced this run. Individual
// malformed records are logged and skipped, never fatal.
func (r *Runner) Run(ctx context.Context) (Counters, []correlate.TimingRecord, error) {
	counters := newCounters()

	if err := r.fs.EnsureTypeFolders(append(r.signatures.Types(), classify.Unknown)); err != nil {
		return counters, nil, err
	}

	inputFiles, err := r.discover(inputLogPrefix)
	if err != nil {
		return counters, nil, err
	}
	outputFiles, err := r.discover(outputLogPrefix)
	if err != nil {
		return counters, nil, err
	}
	r.logger.Info("log files discovered",
		"input_files", len(inputFiles), "output_files", len(outputFiles))

	// Identifiers from earlier runs still correlate against this run's
	// responses.
	entries, err := r.fs.LoadIdentifiers()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("identifier index unreadable, starting fresh", "error", err)
		}
		entries = nil
	}

	entries, err = r.requestPass(ctx, inputFiles, entries, &counters)
	if err != nil {
		return counters, nil, err
	}
	if err := r.fs.SaveIdentifiers(entries); err != nil {
		return counters, nil, err
	}

	index := correlate.NewIndex(entries)
	timings, err := r.responsePass(ctx, outputFiles, index, &counters)
	if err != nil {
		return counters, nil, err
	}

	if err := r.state.Save(); err != nil {
		return counters, timings, fmt.Errorf("save state: %w", err)
	}
	return counters, timings, nil
}

func (r *Runner) requestPass(ctx context.Context, files []string, entries []correlate.IdentifierEntry, counters *Counters) ([]correlate.IdentifierEntry, error) {
	seg := segment.New(segment.RequestHeader)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		if r.state.IsProcessed(path) {
			r.logger.Debug("skipping processed file", "file", path)
			continue
		}
		r.logger.Info("parsing request log", "file", path)

		err := seg.ScanFile(path, func(rec segment.Record) error {
			content, err := extract.Normalize(rec.RawBody)
			if err != nil {
				counters.RequestsSkipped++
				r.logger.Warn("request payload unusable",
					"id", rec.Identifier, "file", path, "error", err)
				return nil
			}

			result := r.classifier.Classify(content)
			counters.ClassifiedByTier[result.Tier.String()]++
			counters.RequestsByType[result.Label]++
			if result.Label == classify.Unknown {
				counters.UnknownRequests++
			}

			if err := r.fs.SaveRequest(result.Label, rec.Identifier, content); err != nil {
				return err
			}
			if r.db != nil {
				if err := r.db.InsertSample(ctx, r.state.RunID, rec.Identifier, result.Label, result.Tier.String(), rec.Timestamp); err != nil {
					r.logger.Warn("db insert failed", "id", rec.Identifier, "error", err)
				}
			}

			entries = append(entries, correlate.IdentifierEntry{
				ID:         rec.Identifier,
				Timestamp:  rec.Timestamp,
				PromptType: result.Label,
			})
			counters.RequestsParsed++
			r.state.RequestsParsed++
			return nil
		})
		if err != nil {
			r.state.AddError(fmt.Sprintf("request log %s: %v", path, err))
			r.logger.Warn("request log failed", "file", path, "error", err)
			continue
		}
		r.state.MarkProcessed(path)
	}
	return entries, nil
}

func (r *Runner) responsePass(ctx context.Context, files []string, index *correlate.Index, counters *Counters) ([]correlate.TimingRecord, error) {
	seg := segment.New(segment.ResponseHeader)
	var timings []correlate.TimingRecord

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return timings, err
		}
		if r.state.IsProcessed(path) {
			r.logger.Debug("skipping processed file", "file", path)
			continue
		}
		r.logger.Info("parsing response log", "file", path)

		err := seg.ScanFile(path, func(rec segment.Record) error {
			counters.ResponsesParsed++
			r.state.ResponsesParsed++

			timing, ok := index.Correlate(rec.Identifier, rec.Timestamp)
			if !ok {
				counters.UnmatchedResponses++
				r.logger.Warn("response without matching request",
					"id", rec.Identifier, "file", path)
				return nil
			}
			counters.ResponsesCorrelated++
			if timing.ResponseTime == nil {
				counters.TimestampParseFailures++
			}

			content, err := extract.Normalize(rec.RawBody)
			if err != nil {
				// Response bodies are plain completions more often
				// than message lists; keep the raw text.
				content = strings.TrimSpace(rec.RawBody)
			}
			if content == "" {
				// Timing still counts even when the body is empty.
				counters.ResponsesSkipped++
			} else if err := r.fs.SaveResponse(timing, content); err != nil {
				return err
			}
			if r.db != nil {
				if err := r.db.InsertTiming(ctx, r.state.RunID, timing); err != nil {
					r.logger.Warn("db insert failed", "id", timing.ID, "error", err)
				}
			}

			timings = append(timings, timing)
			return nil
		})
		if err != nil {
			r.state.AddError(fmt.Sprintf("response log %s: %v", path, err))
			r.logger.Warn("response log failed", "file", path, "error", err)
			continue
		}
		r.state.MarkProcessed(path)
	}
	return timings, nil
}

// discover lists log files with the given prefix across all configured
// directories, rotated files included, in sorted order.
func (r *Runner) discover(prefix string) ([]string, error) {
	var files []string
	for _, dir := range r.logDirs {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read log dir %s: %w", dir, err)
		}
		for _, e := range dirEntries {
			if e.IsDir() {
				continue
			}
			if strings.HasPrefix(e.Name(), prefix) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
