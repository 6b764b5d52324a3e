// Package scraper drives the crawl of xeno-canto search queries.
//
// A Controller walks a query's result pages one at a time. For each page it
// appends the recordings to the query's metadata CSV, hands them to the
// download dispatcher when audio is enabled, and saves a checkpoint. It stops
// when a fetch fails, a page comes back empty, the page bound is reached, the
// last page has been crawled, or the context is cancelled.
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	c, err := scraper.New(cfg, apiKey, logger.GetLogger())
//	if err != nil {
//	    return err
//	}
//	report := c.Crawl(ctx, "Turdus merula", scraper.Options{DownloadAudio: true})
//
// Every session ends in a Report carrying its StopReason and counters.
// CrawlQueries runs several independent sessions with a longer pause between
// queries.
package scraper
