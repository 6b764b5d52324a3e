package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/storage"
	"xcscraper/pkg/xenocanto"
)

// Status is the result class of a single download
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome describes what happened to one recording
type Outcome struct {
	RecordingID string
	Status      Status
	Err         error
	Path        string
	Bytes       int64
	Duration    time.Duration
}

// AssetSource opens the body of a remote audio file
type AssetSource interface {
	OpenAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error)
}

// Downloader fetches one recording's audio into a directory
type Downloader interface {
	Download(ctx context.Context, rec xenocanto.Recording, targetDir string) Outcome
}

// AssetDownloader stores audio files through a storage.Manager per target directory
type AssetDownloader struct {
	source      AssetSource
	maxFileSize int64
	logger      logger.Logger

	mu       sync.Mutex
	managers map[string]*storage.Manager
}

// NewAssetDownloader creates a downloader. maxFileSize of zero means unlimited.
func NewAssetDownloader(source AssetSource, maxFileSize int64, log logger.Logger) *AssetDownloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &AssetDownloader{
		source:      source,
		maxFileSize: maxFileSize,
		logger:      log,
		managers:    make(map[string]*storage.Manager),
	}
}

// AssetName returns the cache file name for a recording. Recordings without
// an id are keyed by a hash of their file URL instead.
func AssetName(rec xenocanto.Recording) string {
	id := rec.ID()
	if id == "" {
		id = "noid-" + storage.ShortHash(rec.FileURL())
	}
	ext := storage.AssetExtension(rec.FileName(), rec.FileURL())
	return storage.AssetFileName(id, rec.Genus(), rec.Species(), ext)
}

func (d *AssetDownloader) manager(dir string) (*storage.Manager, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.managers[dir]; ok {
		return m, nil
	}
	m, err := storage.NewManager(dir, d.maxFileSize)
	if err != nil {
		return nil, err
	}
	if n, err := m.CleanPartials(); err != nil {
		d.logger.WithError(err).Warn("Failed to clean partial downloads")
	} else if n > 0 {
		d.logger.InfoWithFields("Removed partial downloads", map[string]interface{}{"dir": dir, "count": n})
	}
	d.managers[dir] = m
	return m, nil
}

// Download fetches rec's audio into targetDir. An existing file is a skip and
// makes no network call; a record without a file URL fails without one.
func (d *AssetDownloader) Download(ctx context.Context, rec xenocanto.Recording, targetDir string) Outcome {
	start := time.Now()
	out := Outcome{RecordingID: rec.ID()}
	finish := func(status Status, err error) Outcome {
		out.Status = status
		out.Err = err
		out.Duration = time.Since(start)
		logger.LogDownload(d.logger, out.RecordingID, status.String(), out.Bytes, err)
		return out
	}

	m, err := d.manager(targetDir)
	if err != nil {
		return finish(StatusFailed, err)
	}

	name := AssetName(rec)
	out.Path = m.Path(name)

	if m.IsDownloaded(name) {
		return finish(StatusSkipped, nil)
	}

	assetURL := rec.FileURL()
	if assetURL == "" {
		return finish(StatusFailed, errs.NoAssetURL(rec.ID()))
	}

	body, _, err := d.source.OpenAsset(ctx, assetURL)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("download failed: %w", err))
	}
	defer body.Close()

	n, err := m.Save(body, name)
	out.Bytes = n
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("save failed: %w", err))
	}
	return finish(StatusSuccess, nil)
}
