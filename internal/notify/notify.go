// Package notify publishes run-completion events over NATS so downstream
// dashboards can pick up fresh benchmark results.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectRunCompleted is the NATS subject for finished benchmark runs.
const SubjectRunCompleted = "promptbench.run.completed"

// RunSummary is the payload published when a run finishes.
type RunSummary struct {
	RunID                  string         `json:"run_id"`
	CompletedAt            string         `json:"completed_at"`
	RequestsParsed         int            `json:"requests_parsed"`
	RequestsByType         map[string]int `json:"requests_by_type"`
	ResponsesParsed        int            `json:"responses_parsed"`
	ResponsesCorrelated    int            `json:"responses_correlated"`
	UnmatchedResponses     int            `json:"unmatched_responses"`
	UnknownRequests        int            `json:"unknown_requests"`
	TimestampParseFailures int            `json:"timestamp_parse_failures"`
	AverageResponseTime    *float64       `json:"average_response_time"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// PublishRunCompleted emits a run summary on SubjectRunCompleted.
func (p *Publisher) PublishRunCompleted(summary RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := p.conn.Publish(SubjectRunCompleted, payload); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	p.logger.Info("run summary published", "run_id", summary.RunID)
	return nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}
