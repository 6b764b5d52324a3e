package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"xcscraper/internal/downloader"
	"xcscraper/pkg/checkpoint"
	"xcscraper/pkg/config"
	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/metadata"
	"xcscraper/pkg/ratelimit"
	"xcscraper/pkg/xenocanto"
)

// Options control a single crawl
type Options struct {
	// MaxPages bounds the pages crawled in this run. Zero means no bound.
	MaxPages int
	// DownloadAudio enables asset downloads for each page
	DownloadAudio bool
	// Resume continues from the query's checkpoint when one exists
	Resume bool
}

// Settings hold the file system layout and pacing of a Controller
type Settings struct {
	OutputDir          string
	AudioDir           string
	CheckpointDir      string
	DisableCheckpoints bool
	PagePacer          Pacer
	QueryPacer         Pacer
}

// Controller drives the page-by-page crawl of one or more queries
type Controller struct {
	fetcher    PageFetcher
	dispatcher BatchDispatcher
	sink       MetadataSink
	settings   Settings
	observer   Observer
	logger     logger.Logger
}

// NewController assembles a Controller from its collaborators
func NewController(fetcher PageFetcher, dispatcher BatchDispatcher, sink MetadataSink, settings Settings, log logger.Logger) *Controller {
	if log == nil {
		log = logger.GetLogger()
	}
	if settings.PagePacer == nil {
		settings.PagePacer = ratelimit.NewPacer(0, 0)
	}
	if settings.QueryPacer == nil {
		settings.QueryPacer = ratelimit.NewPacer(0, 0)
	}
	if settings.AudioDir == "" {
		settings.AudioDir = filepath.Join(settings.OutputDir, "audio")
	}
	return &Controller{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		sink:       sink,
		settings:   settings,
		logger:     log,
	}
}

// New wires a Controller against the configured provider
func New(cfg *config.Config, apiKey string, log logger.Logger) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	client := xenocanto.NewClient(cfg, log)
	if apiKey != "" {
		client.SetAPIKey(apiKey)
	}

	assets := downloader.NewAssetDownloader(client, cfg.Download.MaxFileSize, log)
	dispatcher := downloader.NewDispatcher(assets, cfg.Download.ConcurrentDownloads, log)

	settings := Settings{
		OutputDir:     cfg.Output.BaseDirectory,
		AudioDir:      cfg.AudioDir(),
		CheckpointDir: cfg.Output.CheckpointDir,
		PagePacer:     ratelimit.NewPacer(cfg.Pacing.PageMin, cfg.Pacing.PageMax),
		QueryPacer:    ratelimit.NewPacer(cfg.Pacing.QueryMin, cfg.Pacing.QueryMax),
	}
	return NewController(client, dispatcher, metadata.NewWriter(log), settings, log), nil
}

// SetObserver registers an observer for progress events
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

// CrawlQueries crawls each query in turn, pausing between them. It returns
// early only when ctx is cancelled.
func (c *Controller) CrawlQueries(ctx context.Context, queries []string, opts Options) []Report {
	reports := make([]Report, 0, len(queries))
	for i, query := range queries {
		if i > 0 {
			if err := c.settings.QueryPacer.Pause(ctx); err != nil {
				c.logger.WarnWithFields("Stopping before next query", map[string]interface{}{
					"next_query": query,
					"remaining":  len(queries) - i,
				})
				break
			}
		}

		reports = append(reports, c.Crawl(ctx, query, opts))
		if ctx.Err() != nil {
			break
		}
	}
	return reports
}

// Crawl runs one session for query and returns its report
func (c *Controller) Crawl(ctx context.Context, query string, opts Options) Report {
	session := NewSession(query)
	log := c.logger.WithFields(map[string]interface{}{
		"query":      query,
		"session_id": session.ID.String(),
	})

	checkpoints, cp := c.openCheckpoint(query, opts.Resume, log)
	page := cp.NextPage()
	if page > 1 {
		log.InfoWithFields("Resuming crawl", map[string]interface{}{"start_page": page})
	}

	storePath := metadata.StorePath(c.settings.OutputDir, query)
	pages := 0
	var (
		reason StopReason
		runErr error
	)

	for {
		session.setPage(page)
		if err := ctx.Err(); err != nil {
			reason, runErr = ReasonInterrupted, err
			break
		}

		c.notifyPageStarted(query, page)
		result, err := c.fetcher.FetchPage(ctx, xenocanto.QueryRequest{Query: query, Page: page})
		if err != nil {
			if ctx.Err() != nil {
				reason, runErr = ReasonInterrupted, ctx.Err()
			} else {
				reason, runErr = ReasonFetchError, err
			}
			break
		}
		if len(result.Recordings) == 0 {
			reason = ReasonNoMoreData
			break
		}

		pages++
		seen := session.addSeen(len(result.Recordings))

		if err := c.sink.Append(result.Recordings, storePath); err != nil {
			log.WithError(err).WarnWithFields("Failed to write metadata", map[string]interface{}{
				"page": page,
				"path": storePath,
			})
		}

		var batch downloader.DispatchResult
		if opts.DownloadAudio {
			// Started downloads finish even if the crawl is interrupted
			batch = c.dispatcher.Dispatch(context.WithoutCancel(ctx), result.Recordings, c.settings.AudioDir, session)
		}

		numPages := int(result.NumPages)
		if checkpoints != nil {
			if err := checkpoints.UpdateProgress(cp, page, numPages, seen); err != nil {
				log.WithError(err).Warn("Failed to save checkpoint")
			}
		}

		c.notifyPageCompleted(PageProgress{
			Query:    query,
			Page:     page,
			NumPages: numPages,
			Records:  len(result.Recordings),
			Seen:     seen,
			Batch:    batch,
		})
		logger.LogCrawlProgress(log, query, page, numPages, seen)

		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			reason = ReasonMaxPagesReached
			break
		}
		if page >= numPages {
			reason = ReasonAllPagesCrawled
			break
		}

		page++
		if err := c.settings.PagePacer.Pause(ctx); err != nil {
			reason, runErr = ReasonInterrupted, err
			break
		}
	}

	if checkpoints != nil && reason.Complete() {
		if err := checkpoints.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	report := session.report(pages, reason, runErr)
	c.logReport(log, report)
	if err := metadata.SaveSummary(storePath, summaryOf(session, report)); err != nil {
		log.WithError(err).Warn("Failed to save crawl summary")
	}
	if c.observer != nil {
		c.observer.SessionFinished(report)
	}
	return report
}

// openCheckpoint returns the query's checkpoint manager and the checkpoint to
// start from. A nil manager disables checkpointing for the session.
func (c *Controller) openCheckpoint(query string, resume bool, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint) {
	if c.settings.DisableCheckpoints {
		return nil, nil
	}

	mgr, err := checkpoint.NewManager(c.settings.CheckpointDir, query, log)
	if err != nil {
		log.WithError(err).Warn("Checkpointing disabled")
		return nil, nil
	}

	if resume {
		cp, err := mgr.Load()
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil {
			return mgr, cp
		}
	} else if mgr.Exists() {
		log.Debug("Discarding previous checkpoint")
	}

	cp, err := mgr.Create(query)
	if err != nil {
		log.WithError(err).Warn("Checkpointing disabled")
		return nil, nil
	}
	return mgr, cp
}

func (c *Controller) logReport(log logger.Logger, r Report) {
	fields := r.Fields()
	switch {
	case r.Reason == ReasonFetchError:
		log.ErrorWithFields("Crawl stopped on fetch error", fields)
	case r.Reason == ReasonInterrupted:
		log.WarnWithFields("Crawl interrupted", fields)
	case r.Failed > 0:
		log.WarnWithFields("Crawl finished with failed downloads", fields)
	default:
		log.InfoWithFields("Crawl finished", fields)
	}
}

func summaryOf(s *CrawlSession, r Report) *metadata.Summary {
	sum := &metadata.Summary{
		Query:      r.Query,
		SessionID:  r.SessionID.String(),
		StartedAt:  s.StartedAt,
		FinishedAt: s.StartedAt.Add(r.Duration),
		Pages:      r.Pages,
		LastPage:   r.LastPage,
		Seen:       r.Seen,
		Downloaded: r.Downloaded,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Bytes:      r.Bytes,
		StopReason: string(r.Reason),
	}
	if r.Err != nil {
		sum.Error = r.Err.Error()
	}
	return sum
}

func (c *Controller) notifyPageStarted(query string, page int) {
	if c.observer != nil {
		c.observer.PageStarted(query, page)
	}
}

func (c *Controller) notifyPageCompleted(p PageProgress) {
	if c.observer != nil {
		c.observer.PageCompleted(p)
	}
}

// IsFetchFailure reports whether a report ended on a failed page fetch
func IsFetchFailure(r Report) bool {
	return r.Reason == ReasonFetchError && errors.Is(r.Err, errs.ErrFetchFailed)
}
