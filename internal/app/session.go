package app

import (
	"log/slog"
	"os"
	"path/filepath"

	"deckcast/internal/storage"
)

const previewFileName = "outline.html"

// session tracks the artifacts of one run and removes them when the run
// fails before a deck exists.
type session struct {
	run     *storage.Run
	storage *storage.LocalStorage
	keep    bool
}

func newSession(store *storage.LocalStorage) (*session, error) {
	run, err := store.NewRun()
	if err != nil {
		return nil, err
	}
	return &session{run: run, storage: store}, nil
}

func (s *session) id() string  { return s.run.ID }
func (s *session) dir() string { return s.run.Dir }

func (s *session) previewPath() string { return filepath.Join(s.run.Dir, previewFileName) }

func (s *session) url(path string) string {
	return s.storage.URL(s.run.ID, filepath.Base(path))
}

func (s *session) writePreview(data []byte) error {
	return os.WriteFile(s.previewPath(), data, 0644)
}

// close discards the run directory unless the run was marked kept.
func (s *session) close() {
	if s.keep {
		return
	}
	if err := s.storage.RemoveRun(s.run); err != nil {
		slog.Warn("Failed to remove run directory", "run", s.run.ID, "error", err)
	}
}
