package scraper

import (
	"context"

	"xcscraper/internal/downloader"
	"xcscraper/pkg/xenocanto"
)

// PageFetcher retrieves one page of search results
type PageFetcher interface {
	FetchPage(ctx context.Context, req xenocanto.QueryRequest) (*xenocanto.RecordingPage, error)
}

// BatchDispatcher downloads a page's recordings and blocks until done
type BatchDispatcher interface {
	Dispatch(ctx context.Context, records []xenocanto.Recording, targetDir string, recorder downloader.Recorder) downloader.DispatchResult
}

// MetadataSink persists a page's recordings
type MetadataSink interface {
	Append(records []xenocanto.Recording, storePath string) error
}

// Pacer pauses between steps of a crawl
type Pacer interface {
	Pause(ctx context.Context) error
}

// Observer is notified as a crawl progresses. Calls come from the crawling
// goroutine, one session at a time.
type Observer interface {
	PageStarted(query string, page int)
	PageCompleted(progress PageProgress)
	SessionFinished(report Report)
}

// PageProgress describes a page that has been persisted and downloaded
type PageProgress struct {
	Query    string
	Page     int
	NumPages int
	Records  int
	Seen     int
	Batch    downloader.DispatchResult
}
