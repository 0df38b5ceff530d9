package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogNavigation records one page-load attempt
func LogNavigation(l Logger, url string, attempt int, status int64, ok bool, duration time.Duration) {
	fields := map[string]interface{}{
		"url":         url,
		"attempt":     attempt,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	if ok {
		l.DebugWithFields("Navigation succeeded", fields)
		return
	}
	l.WarnWithFields("Navigation attempt failed", fields)
}

// LogAuthTransition records a state change of the authentication state machine
func LogAuthTransition(l Logger, from, to, reason string) {
	l.InfoWithFields("Auth state changed", map[string]interface{}{
		"from":   from,
		"to":     to,
		"reason": reason,
	})
}

// LogSourceResult records the outcome of crawling one source
func LogSourceResult(l Logger, source string, extracted, saved int, err error) {
	fields := map[string]interface{}{
		"source":    source,
		"extracted": extracted,
		"saved":     saved,
	}
	if err != nil {
		fields["error"] = err.Error()
		l.ErrorWithFields("Source failed", fields)
		return
	}
	l.InfoWithFields("Source crawled", fields)
}

// LogRunSummary records the totals of a finished run
func LogRunSummary(l Logger, runID string, total, succeeded, failed, saved int, duration time.Duration) {
	l.InfoWithFields("Run finished", map[string]interface{}{
		"run_id":            runID,
		"sources_total":     total,
		"sources_succeeded": succeeded,
		"sources_failed":    failed,
		"posts_new":         saved,
		"duration":          duration.Round(time.Millisecond).String(),
	})
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
