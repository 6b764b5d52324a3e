package scraper

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"xcscraper/internal/downloader"
)

// StopReason says why a crawl session ended
type StopReason string

const (
	ReasonFetchError      StopReason = "fetch_error"
	ReasonNoMoreData      StopReason = "no_more_data"
	ReasonMaxPagesReached StopReason = "max_pages_reached"
	ReasonAllPagesCrawled StopReason = "all_pages_crawled"
	ReasonInterrupted     StopReason = "interrupted"
)

// Complete reports whether the query was crawled to its end
func (r StopReason) Complete() bool {
	return r == ReasonAllPagesCrawled || r == ReasonNoMoreData
}

// CrawlSession holds the live state of one query's crawl. Download counters
// are updated concurrently by dispatcher workers through Record.
type CrawlSession struct {
	ID        uuid.UUID
	Query     string
	StartedAt time.Time

	currentPage atomic.Int64
	recordsSeen atomic.Int64
	downloaded  atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
	bytes       atomic.Int64
}

// NewSession starts a session for query
func NewSession(query string) *CrawlSession {
	s := &CrawlSession{
		ID:        uuid.New(),
		Query:     query,
		StartedAt: time.Now(),
	}
	s.currentPage.Store(1)
	return s
}

// Record folds one download outcome into the counters
func (s *CrawlSession) Record(o downloader.Outcome) {
	switch o.Status {
	case downloader.StatusSuccess:
		s.downloaded.Add(1)
		s.bytes.Add(o.Bytes)
	case downloader.StatusSkipped:
		s.skipped.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *CrawlSession) CurrentPage() int { return int(s.currentPage.Load()) }
func (s *CrawlSession) RecordsSeen() int { return int(s.recordsSeen.Load()) }
func (s *CrawlSession) Downloaded() int  { return int(s.downloaded.Load()) }
func (s *CrawlSession) Skipped() int     { return int(s.skipped.Load()) }
func (s *CrawlSession) Failed() int      { return int(s.failed.Load()) }

// Bytes is the total size of the files downloaded in this session
func (s *CrawlSession) Bytes() int64 { return s.bytes.Load() }

func (s *CrawlSession) setPage(page int)  { s.currentPage.Store(int64(page)) }
func (s *CrawlSession) addSeen(n int) int { return int(s.recordsSeen.Add(int64(n))) }

// Report is the final summary of a session
type Report struct {
	Query      string
	SessionID  uuid.UUID
	Pages      int
	LastPage   int
	Seen       int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	Reason     StopReason
	Err        error
	Duration   time.Duration
}

// report snapshots the session into a Report
func (s *CrawlSession) report(pages int, reason StopReason, err error) Report {
	return Report{
		Query:      s.Query,
		SessionID:  s.ID,
		Pages:      pages,
		LastPage:   s.CurrentPage(),
		Seen:       s.RecordsSeen(),
		Downloaded: s.Downloaded(),
		Skipped:    s.Skipped(),
		Failed:     s.Failed(),
		Bytes:      s.Bytes(),
		Reason:     reason,
		Err:        err,
		Duration:   time.Since(s.StartedAt),
	}
}

// Fields renders the report for structured logging
func (r Report) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"query":      r.Query,
		"session_id": r.SessionID.String(),
		"pages":      r.Pages,
		"last_page":  r.LastPage,
		"seen":       r.Seen,
		"downloaded": r.Downloaded,
		"skipped":    r.Skipped,
		"failed":     r.Failed,
		"bytes":      r.Bytes,
		"reason":     string(r.Reason),
		"duration":   r.Duration,
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}
	return fields
}
