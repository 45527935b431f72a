package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatewatch/promptbench/internal/api"
	"github.com/gatewatch/promptbench/internal/config"
	"github.com/gatewatch/promptbench/internal/notify"
	"github.com/gatewatch/promptbench/internal/report"
	"github.com/gatewatch/promptbench/internal/run"
	"github.com/gatewatch/promptbench/internal/signature"
	"github.com/gatewatch/promptbench/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if len(os.Args) > 1 && os.Args[1] == "scan-prompts" {
		if err := scanPrompts(cfg); err != nil {
			slog.Error("prompt scan failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("promptbench starting", "log_dirs", cfg.LogDirs, "output_dir", cfg.OutputDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs, err := signature.Load(cfg.PromptTypesPath, cfg.VariantsPath)
	if err != nil {
		slog.Error("failed to load prompt types", "error", err)
		os.Exit(1)
	}
	slog.Info("prompt types loaded", "types", sigs.Len())

	fs, err := store.NewFS(cfg.OutputDir)
	if err != nil {
		slog.Error("failed to prepare output dir", "error", err)
		os.Exit(1)
	}

	state, err := run.LoadState(cfg.StatePath)
	if err != nil {
		slog.Error("failed to load run state", "error", err)
		os.Exit(1)
	}

	runner := run.New(cfg.LogDirs, sigs, fs, state, slog.Default())

	// Database mirror (optional)
	var db *store.Postgres
	if cfg.DatabaseURL != "" {
		db, err = store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runner.WithDB(db)
		slog.Info("database connected")
	}

	// NATS (optional)
	var publisher *notify.Publisher
	if cfg.NatsURL != "" {
		publisher, err = notify.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// HTTP API (optional)
	var srv *api.Server
	if cfg.ServeAPI {
		srv = api.NewServer(cfg.Port, fs)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("HTTP server error", "error", err)
			}
		}()
	}

	counters, timings, err := runner.Run(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("run completed",
		"requests_parsed", counters.RequestsParsed,
		"requests_skipped", counters.RequestsSkipped,
		"unknown_requests", counters.UnknownRequests,
		"responses_parsed", counters.ResponsesParsed,
		"responses_correlated", counters.ResponsesCorrelated,
		"unmatched_responses", counters.UnmatchedResponses,
		"timestamp_parse_failures", counters.TimestampParseFailures)

	summary := report.Summarize(timings)
	if err := fs.SaveTimingData(summary); err != nil {
		slog.Error("failed to save timing data", "error", err)
		os.Exit(1)
	}

	analysis := report.Analyze(timings)
	if err := fs.SaveAnalysis(analysis); err != nil {
		slog.Error("failed to save analysis", "error", err)
		os.Exit(1)
	}
	analysis.Render(os.Stdout)

	if publisher != nil {
		err := publisher.PublishRunCompleted(notify.RunSummary{
			RunID:                  state.RunID,
			CompletedAt:            time.Now().UTC().Format(time.RFC3339),
			RequestsParsed:         counters.RequestsParsed,
			RequestsByType:         counters.RequestsByType,
			ResponsesParsed:        counters.ResponsesParsed,
			ResponsesCorrelated:    counters.ResponsesCorrelated,
			UnmatchedResponses:     counters.UnmatchedResponses,
			UnknownRequests:        counters.UnknownRequests,
			TimestampParseFailures: counters.TimestampParseFailures,
			AverageResponseTime:    summary.AverageResponseTime,
		})
		if err != nil {
			slog.Warn("failed to publish run summary", "error", err)
		}
	}

	if srv == nil {
		return
	}
	srv.SetStatus(state.RunID, "completed", counters)
	slog.Info("promptbench serving results", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	slog.Info("promptbench stopped")
}

// scanPrompts rebuilds prompt_types.json from a tree of prompt template
// files: promptbench scan-prompts <dir>
func scanPrompts(cfg config.Config) error {
	dir := "."
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	sigs, err := signature.ScanPrompts(signature.ScanConfig{PromptsDir: dir}, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("prompt files scanned", "types", len(sigs))

	if err := signature.WritePromptTypes(cfg.PromptTypesPath, sigs); err != nil {
		return err
	}
	slog.Info("prompt types written", "path", cfg.PromptTypesPath)
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
