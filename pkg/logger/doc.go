// Package logger provides structured logging for the crawler.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
//
//	cfg := &config.LoggingConfig{Level: "info", File: "xeno_canto_data/scraper.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("query", "Turdus merula")
//	log.InfoWithFields("Page fetched", map[string]interface{}{
//	    "page":    1,
//	    "records": 500,
//	})
//
// Console output is colored text unless Format is "json". When File is set,
// every entry is also appended to that file as a JSON line.
package logger
