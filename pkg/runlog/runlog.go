package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
)

// DefaultMaxEntries bounds the history kept on disk
const DefaultMaxEntries = 200

const fileVersion = 1

// History is the on-disk document
type History struct {
	Version   int                 `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`
	Runs      []models.RunSummary `json:"runs"`
}

// FileLog appends run summaries to a JSON file
type FileLog struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	logger     logger.Logger
}

// New creates a file log at path; an empty path selects the platform data directory
func New(path string, log logger.Logger) (*FileLog, error) {
	if path == "" {
		dataDir, err := DataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dataDir, "runs.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &FileLog{
		path:       path,
		maxEntries: DefaultMaxEntries,
		logger:     log,
	}, nil
}

// SetMaxEntries changes how many runs are retained
func (f *FileLog) SetMaxEntries(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.maxEntries = n
	}
}

// Path returns the file location
func (f *FileLog) Path() string {
	return f.path
}

// AppendRun adds a summary to the front of the history
func (f *FileLog) AppendRun(ctx context.Context, run *models.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := f.load()
	if err != nil {
		return err
	}

	h.Runs = append([]models.RunSummary{*run}, h.Runs...)
	if len(h.Runs) > f.maxEntries {
		h.Runs = h.Runs[:f.maxEntries]
	}

	if err := f.save(h); err != nil {
		return err
	}

	f.logger.DebugWithFields("Run recorded", map[string]interface{}{
		"run_id": run.RunID,
		"path":   f.path,
	})
	return nil
}

// RecentRuns returns up to limit summaries, newest first
func (f *FileLog) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := f.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(h.Runs) > limit {
		return h.Runs[:limit], nil
	}
	return h.Runs, nil
}

// Clear removes the history file
func (f *FileLog) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run log: %w", err)
	}
	return nil
}

// load reads the history. An unreadable file is moved aside and an empty history returned.
func (f *FileLog) load() (*History, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{Version: fileVersion}, nil
		}
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	var h History
	if err := json.NewDecoder(file).Decode(&h); err != nil {
		corrupt := f.path + ".corrupt"
		if renameErr := os.Rename(f.path, corrupt); renameErr != nil {
			return nil, fmt.Errorf("failed to decode run log: %w", err)
		}
		f.logger.WithError(err).WarnWithFields("Run log unreadable, starting fresh", map[string]interface{}{
			"moved_to": corrupt,
		})
		return &History{Version: fileVersion}, nil
	}
	return &h, nil
}

// save writes the history atomically
func (f *FileLog) save(h *History) error {
	h.Version = fileVersion
	h.UpdatedAt = time.Now()

	tempPath := f.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary run log: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run log: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync run log: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close run log: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace run log: %w", err)
	}
	return nil
}

// DataDirectory returns the platform data directory for postcrawler, creating it
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "postcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "postcrawler")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "postcrawler")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "postcrawler")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
