package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"xcscraper/pkg/scraper"
)

var _ scraper.Observer = (*ProgressDisplay)(nil)

// ProgressDisplay renders crawl progress on the terminal
type ProgressDisplay struct {
	mu       sync.Mutex
	tracker  *StatusTracker
	notifier *Notifier
	isDebug  bool
	reports  []scraper.Report
}

// NewProgressDisplay creates a display. notifier may be nil.
func NewProgressDisplay(notifier *Notifier, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		tracker:  NewStatusTracker(),
		notifier: notifier,
		isDebug:  debug,
	}
}

// Tracker exposes the run totals
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

func (p *ProgressDisplay) PageStarted(query string, page int) {
	if p.isDebug {
		printf("\n%s Fetching page %d of %s...\n", Magenta("→"), page, Cyan(query))
	}
}

func (p *ProgressDisplay) PageCompleted(progress scraper.PageProgress) {
	p.tracker.AddPage(progress)
	_, _, downloaded, skipped, failed := p.tracker.Totals()

	line := fmt.Sprintf("%s %s • %d seen • %d downloaded • %d cached",
		Cyan(progress.Query),
		PageBar(progress.Page, progress.NumPages),
		progress.Seen,
		downloaded,
		skipped,
	)
	if failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", failed))
	}

	if p.isDebug {
		printf("%s\n", line)
		return
	}
	printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) SessionFinished(r scraper.Report) {
	p.mu.Lock()
	p.reports = append(p.reports, r)
	p.mu.Unlock()

	printf("\n")
	switch {
	case r.Reason == scraper.ReasonFetchError:
		msg := fmt.Sprintf("%s stopped after %d pages: %v", r.Query, r.Pages, r.Err)
		if p.notifier != nil {
			p.notifier.SendError("Crawl failed", msg)
		} else {
			PrintError("Crawl failed", msg)
		}
	case r.Reason == scraper.ReasonInterrupted:
		PrintWarning(fmt.Sprintf("%s interrupted at page %d", r.Query, r.LastPage))
	default:
		msg := fmt.Sprintf("%s: %d recordings, %d downloaded, %d cached",
			r.Query, r.Seen, r.Downloaded, r.Skipped)
		if p.notifier != nil {
			p.notifier.SendSuccess("Crawl complete", msg)
		} else {
			PrintSuccess("✓ " + msg)
		}
	}

	printf("  %s %d pages in %s (%s)\n", Dim("•"), r.Pages, formatDuration(r.Duration), string(r.Reason))
	if r.Failed > 0 {
		printf("  %s %d downloads failed\n", Dim("•"), r.Failed)
	}
}

// Reports returns the reports of all finished sessions
func (p *ProgressDisplay) Reports() []scraper.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]scraper.Report, len(p.reports))
	copy(out, p.reports)
	return out
}

// PrintSummary prints totals over every finished session
func (p *ProgressDisplay) PrintSummary() {
	pages, seen, downloaded, skipped, failed := p.tracker.Totals()
	elapsed := p.tracker.GetElapsedTime()

	printf("\n%s %d queries • %d pages • %d recordings\n", Green("✓"), len(p.Reports()), pages, seen)
	printf("  %s %d downloaded, %d cached in %s (%.1f/min)\n",
		Dim("•"), downloaded, skipped, formatDuration(elapsed), p.tracker.GetDownloadRate())
	if failed > 0 {
		printf("  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d downloads failed", failed)))
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
