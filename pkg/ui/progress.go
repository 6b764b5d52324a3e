package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"xcscraper/pkg/scraper"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker totals progress across every session of a run
type StatusTracker struct {
	mu         sync.Mutex
	pages      int
	seen       int
	downloaded int
	skipped    int
	failed     int
	StartTime  time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
	}
}

// AddPage folds one completed page into the totals
func (st *StatusTracker) AddPage(p scraper.PageProgress) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.pages++
	st.seen += p.Records
	st.downloaded += p.Batch.Succeeded - p.Batch.Skipped
	st.skipped += p.Batch.Skipped
	st.failed += p.Batch.Failed
}

// Totals returns pages, records seen and download counts so far
func (st *StatusTracker) Totals() (pages, seen, downloaded, skipped, failed int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pages, st.seen, st.downloaded, st.skipped, st.failed
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadRate returns downloads per minute
func (st *StatusTracker) GetDownloadRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return float64(st.downloaded) / elapsed
}

// PageBar renders page out of numPages as a fixed width bar
func PageBar(page, numPages int) string {
	const width = 20
	filled := 0
	if numPages > 0 {
		filled = page * width / numPages
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, page, numPages)
}
