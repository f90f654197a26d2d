package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const runIDLayout = "20060102-150405"

var runIDPattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{8}$`)

// LocalStorage lays out per-run directories under one output root and maps
// them to URLs under the static file route.
type LocalStorage struct {
	outputDir string
	urlPath   string
	baseURL   string
	now       func() time.Time
}

func NewLocalStorage(outputDir, urlPath, baseURL string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		urlPath:   "/" + strings.Trim(urlPath, "/"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}
}

func (s *LocalStorage) OutputDir() string { return s.outputDir }

func (s *LocalStorage) EnsureDirectories() error {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// NewRun allocates a fresh run id and creates its directory.
func (s *LocalStorage) NewRun() (*Run, error) {
	id := s.now().UTC().Format(runIDLayout) + "-" + uuid.NewString()[:8]
	dir := filepath.Join(s.outputDir, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Run{ID: id, Dir: dir}, nil
}

func (s *LocalStorage) RemoveRun(run *Run) error {
	if run == nil || !IsRunID(run.ID) {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.outputDir, run.ID)); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// URL returns the link under which a file of the run is served.
func (s *LocalStorage) URL(runID, fileName string) string {
	return s.baseURL + s.urlPath + "/" + url.PathEscape(runID) + "/" + url.PathEscape(fileName)
}

// Clean deletes run directories whose modification time is older than the
// cutoff. Entries that do not look like run ids are left alone.
func (s *LocalStorage) Clean(_ context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !IsRunID(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("Failed to stat run directory", "run", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.outputDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		slog.Debug("Removed run directory", "run", entry.Name())
		removed++
	}

	return removed, nil
}

func IsRunID(name string) bool {
	return runIDPattern.MatchString(name)
}
