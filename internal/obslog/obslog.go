// Package obslog provides a dual file/stdout structured logger and
// adapts it into the dealstate.DiagSink callback internal/engine's
// caller-supplied diagnostics expect. Core packages (deal, expr,
// dealstate, rules, waterfall, lossalloc, engine) never import this
// package directly — they accept a plain function value — so this is
// ambient scaffolding for cmd/rmbsengine and internal/api only.
package obslog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
)

// Logger wraps a structured slog.Logger.
type Logger struct {
	*slog.Logger
}

// New creates a structured logger with dual output: a daily-rotated
// JSON file under logDir plus a copy of every record on stdout.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logFile := filepath.Join(logDir, time.Now().Format("2006-01-02")+".log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	multiWriter := io.MultiWriter(file, os.Stdout)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})

	return &Logger{slog.New(handler)}, nil
}

// DiagSink adapts l into a dealstate.DiagSink: every non-fatal
// diagnostic the core emits (overdraft-within-tolerance, overpay-
// clamped, non-convergence, residual-loss-dropped) becomes one
// structured warn-level log record carrying the deal id, code and
// message.
func (l *Logger) DiagSink(dealID string) dealstate.DiagSink {
	return func(d dealstate.Diagnostic) {
		l.Warn("deal diagnostic",
			slog.String("deal_id", dealID),
			slog.String("code", d.Code),
			slog.String("message", d.Message),
		)
	}
}
