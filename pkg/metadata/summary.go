package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "xcscraper/pkg/errors"
)

// Summary records the outcome of one crawl session next to its CSV
type Summary struct {
	Query      string    `json:"query"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	LastPage   int       `json:"last_page"`
	Seen       int       `json:"seen"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Bytes      int64     `json:"bytes"`
	StopReason string    `json:"stop_reason"`
	Error      string    `json:"error,omitempty"`
}

// SummaryPath is the summary file belonging to a metadata store
func SummaryPath(storePath string) string {
	return strings.TrimSuffix(storePath, filepath.Ext(storePath)) + ".summary.json"
}

// SaveSummary replaces the summary of the store's last session
func SaveSummary(storePath string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errs.IO("marshal summary", err)
	}

	path := SummaryPath(storePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.IO("create summary directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.IO("write summary", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.IO("rename summary", err)
	}
	return nil
}

// LoadSummary reads the summary saved for a store
func LoadSummary(storePath string) (*Summary, error) {
	data, err := os.ReadFile(SummaryPath(storePath))
	if err != nil {
		return nil, errs.IO("read summary", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errs.IO("decode summary", err)
	}
	return &s, nil
}
