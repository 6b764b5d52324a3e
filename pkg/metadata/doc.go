// Package metadata persists recording metadata as CSV, one file per query.
//
// Files are append-only. The header is written once, taken from the keys of
// the first recording ever stored, and read back from disk when a later run
// appends to the same file.
//
// Each crawl also leaves a JSON Summary beside the CSV describing how its
// last session ended.
package metadata
