// Package checkpoint saves how far each query's crawl has progressed so an
// interrupted run can continue with --resume.
//
// One JSON file is kept per query. It is rewritten atomically after every
// completed page and removed once the query has been crawled to the end.
// Without an explicit directory the files go to the platform data directory:
//   - Linux: $XDG_DATA_HOME/xcscraper/checkpoints or ~/.local/share/xcscraper/checkpoints
//   - macOS: ~/Library/Application Support/xcscraper/checkpoints
//   - Windows: %APPDATA%/xcscraper/checkpoints
package checkpoint
