package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/storage"
	"xcscraper/pkg/xenocanto"
)

// StorePath returns the CSV file for a query inside outputDir
func StorePath(outputDir, query string) string {
	base := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	safe := storage.Sanitize(base)
	if safe != base || safe == "" {
		safe = safe + "-" + storage.ShortHash(query)
	}
	return filepath.Join(outputDir, fmt.Sprintf("metadata_%s.csv", safe))
}

// Writer appends recordings to per-query CSV files. The first record written
// to a store fixes its columns for good: later records fill missing columns
// with empty strings and lose fields the header does not name.
type Writer struct {
	logger logger.Logger

	mu      sync.Mutex
	headers map[string][]string
}

// NewWriter creates a metadata writer
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		logger:  log,
		headers: make(map[string][]string),
	}
}

// Append writes records to storePath, creating the file and its header on
// first use. It never truncates an existing file.
func (w *Writer) Append(records []xenocanto.Recording, storePath string) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return errs.IO("create metadata directory", err)
	}

	header, fresh, err := w.headerFor(storePath, records[0])
	if err != nil {
		return err
	}

	f, err := os.OpenFile(storePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.IO("open metadata file", err)
	}

	cw := csv.NewWriter(f)
	if fresh {
		if err := cw.Write(header); err != nil {
			f.Close()
			return errs.IO("write metadata header", err)
		}
	}

	known := make(map[string]bool, len(header))
	for _, col := range header {
		known[col] = true
	}

	dropped := make(map[string]bool)
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = rec.Get(col)
		}
		if err := cw.Write(row); err != nil {
			f.Close()
			return errs.IO("write metadata row", err)
		}
		for _, k := range rec.Keys() {
			if !known[k] {
				dropped[k] = true
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return errs.IO("flush metadata", err)
	}
	if err := f.Close(); err != nil {
		return errs.IO("close metadata file", err)
	}

	if len(dropped) > 0 {
		fields := make([]string, 0, len(dropped))
		for k := range dropped {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		w.logger.DebugWithFields("fields not in metadata header were dropped", map[string]interface{}{
			"path":   storePath,
			"fields": fields,
		})
	}

	w.logger.DebugWithFields("metadata appended", map[string]interface{}{
		"path":    storePath,
		"records": len(records),
		"header":  fresh,
	})
	return nil
}

// headerFor returns the column order for storePath and whether the header
// still has to be written. Existing files keep the header on their first line.
func (w *Writer) headerFor(storePath string, first xenocanto.Recording) ([]string, bool, error) {
	info, err := os.Stat(storePath)
	switch {
	case os.IsNotExist(err) || (err == nil && info.Size() == 0):
		header := first.Keys()
		w.headers[storePath] = header
		return header, true, nil
	case err != nil:
		return nil, false, errs.IO("stat metadata file", err)
	}

	if header, ok := w.headers[storePath]; ok {
		return header, false, nil
	}

	header, err := ReadHeader(storePath)
	if err != nil {
		return nil, false, err
	}
	w.headers[storePath] = header
	return header, false, nil
}

// ReadHeader returns the first CSV line of path
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IO("open metadata file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, errs.IO("read metadata header", fmt.Errorf("%s is empty", path))
	}
	if err != nil {
		return nil, errs.IO("read metadata header", err)
	}
	return header, nil
}
