package audit

import (
	"context"
	"log/slog"
)

// LogSink writes each event as a structured log line. It is the fallback
// when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "ledger event",
			"kind", e.Kind,
			"sequence", e.Sequence,
			"transaction_id", e.TransactionID,
			"employee", e.Employee,
			"status", e.Status,
			"hash", e.Hash,
			"request_id", e.RequestID,
		)
	}
	return nil
}
