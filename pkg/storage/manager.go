package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "xcscraper/pkg/errors"
)

// chunkSize is the copy buffer used when streaming an asset to disk
const chunkSize = 32 << 10

// ErrFileTooLarge is returned when a body exceeds the configured size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Manager owns one asset cache directory. Existence of the final file name
// is the only dedup signal; writes go through a temporary file and a rename
// so a failed transfer never leaves a file under that name.
type Manager struct {
	outputDir   string
	maxFileSize int64

	mu    sync.RWMutex
	saved map[string]bool
}

// NewManager creates a storage manager, creating outputDir if needed. A
// maxFileSize of zero means unlimited.
func NewManager(outputDir string, maxFileSize int64) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.IO("create output directory", err)
	}

	return &Manager{
		outputDir:   outputDir,
		maxFileSize: maxFileSize,
		saved:       make(map[string]bool),
	}, nil
}

// Path returns the absolute location of name inside the cache
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// IsDownloaded checks whether a regular file called name is already present
func (m *Manager) IsDownloaded(name string) bool {
	m.mu.RLock()
	cached := m.saved[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	info, err := os.Stat(m.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Save streams r into the cache under name and returns the bytes written
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	if name == "" || name != filepath.Base(name) {
		return 0, errs.IO("save asset", fmt.Errorf("invalid file name %q", name))
	}
	final := m.Path(name)

	tmp, err := os.CreateTemp(m.outputDir, "."+name+".*.part")
	if err != nil {
		return 0, errs.IO("create temporary file", err)
	}
	tmpName := tmp.Name()

	written, err := m.copyLimited(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		if errors.Is(err, ErrFileTooLarge) {
			return written, errs.IO("save asset", err)
		}
		return written, errs.IO("write asset", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return written, errs.IO("rename temporary file", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()

	return written, nil
}

func (m *Manager) copyLimited(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	if m.maxFileSize <= 0 {
		return io.CopyBuffer(dst, src, buf)
	}

	n, err := io.CopyBuffer(dst, io.LimitReader(src, m.maxFileSize+1), buf)
	if err != nil {
		return n, err
	}
	if n > m.maxFileSize {
		return n, fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, m.maxFileSize)
	}
	return n, nil
}

// CleanPartials removes temporary files left behind by interrupted transfers
// and returns how many were deleted.
func (m *Manager) CleanPartials() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, errs.IO("list output directory", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".part") {
			continue
		}
		if err := os.Remove(filepath.Join(m.outputDir, name)); err != nil && !os.IsNotExist(err) {
			return removed, errs.IO("remove partial file", err)
		}
		removed++
	}
	return removed, nil
}
