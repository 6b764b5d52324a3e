package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a provider request outcome
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogDownload logs the outcome of a single asset download
func LogDownload(l Logger, recordingID, status string, bytes int64, err error) {
	entry := l.WithFields(map[string]interface{}{
		"recording_id": recordingID,
		"status":       status,
		"bytes":        bytes,
	})

	switch {
	case err != nil:
		entry.WithError(err).Error("Download failed")
	case status == "skipped":
		entry.Debug("Download skipped, file already present")
	default:
		entry.Info("Download completed")
	}
}

// LogCrawlProgress logs page progress for a query
func LogCrawlProgress(l Logger, query string, page, numPages, seen int) {
	percentage := 0.0
	if numPages > 0 {
		percentage = float64(page) / float64(numPages) * 100
	}

	l.WithFields(map[string]interface{}{
		"query":      query,
		"page":       page,
		"num_pages":  numPages,
		"seen":       seen,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Crawl progress")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
