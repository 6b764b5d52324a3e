package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"xcscraper/pkg/logger"
	"xcscraper/pkg/storage"
)

// currentVersion is bumped when the file layout changes
const currentVersion = 1

// Checkpoint records how far a query's crawl got
type Checkpoint struct {
	Query             string    `json:"query"`
	LastCompletedPage int       `json:"last_completed_page"`
	NumPages          int       `json:"num_pages"`
	RecordsSeen       int       `json:"records_seen"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Version           int       `json:"version"`
}

// NextPage is the page a resumed crawl should start from
func (c *Checkpoint) NextPage() int {
	if c == nil || c.LastCompletedPage < 1 {
		return 1
	}
	return c.LastCompletedPage + 1
}

// Manager handles checkpoint operations for one query
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for query. Files live in dir, or in
// the platform data directory when dir is empty.
func NewManager(dir, query string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fileName(query)),
		logger:         log,
	}, nil
}

func fileName(query string) string {
	base := storage.Sanitize(strings.ReplaceAll(strings.TrimSpace(query), " ", "_"))
	if len(base) > 64 {
		base = base[:64]
	}
	return fmt.Sprintf("%s-%s.checkpoint.json", base, storage.ShortHash(query))
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for query and saves it
func (m *Manager) Create(query string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Query:     query,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"query": query,
		"path":  m.checkpointPath,
	})
	return cp, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"query":               cp.Query,
		"last_completed_page": cp.LastCompletedPage,
		"num_pages":           cp.NumPages,
		"updated_at":          cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	if cp.Version == 0 {
		cp.Version = currentVersion
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"query":               cp.Query,
		"last_completed_page": cp.LastCompletedPage,
	})
	return nil
}

// UpdateProgress marks page as completed and saves
func (m *Manager) UpdateProgress(cp *Checkpoint, page, numPages, recordsSeen int) error {
	cp.LastCompletedPage = page
	cp.NumPages = numPages
	cp.RecordsSeen = recordsSeen
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "xcscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "xcscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "xcscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "xcscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
