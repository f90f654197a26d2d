package narration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"deckcast/internal/speech"
)

const defaultTimeout = 30 * time.Second

// Artifact is a narration audio file written for one slide.
type Artifact struct {
	Index    int
	Path     string
	MIMEType string
}

type Config struct {
	Language string
	Timeout  time.Duration
}

// Synthesizer narrates slides with a speech provider. A failed narration is
// logged and reported as a nil artifact; it never fails the run.
type Synthesizer struct {
	provider speech.Provider
	pool     *ants.Pool
	lang     string
	timeout  time.Duration
}

// NewSynthesizer returns a Synthesizer that fans out over pool. A nil pool
// narrates slides one after another.
func NewSynthesizer(provider speech.Provider, pool *ants.Pool, cfg Config) *Synthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{
		provider: provider,
		pool:     pool,
		lang:     cfg.Language,
		timeout:  timeout,
	}
}

// FileName is the artifact name for the zero-based slide index.
func (s *Synthesizer) FileName(index int) string {
	return fmt.Sprintf("slide_%d.%s", index+1, s.provider.Format().Ext)
}

// Synthesize narrates text into dir and returns nil when synthesis fails.
func (s *Synthesizer) Synthesize(ctx context.Context, dir string, index int, text string) *Artifact {
	if strings.TrimSpace(text) == "" {
		slog.Warn("Skipping narration for empty text", "slide", index)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	audio, err := s.provider.Speak(ctx, text, s.lang)
	if err != nil {
		slog.Warn("Narration failed", "slide", index, "error", err)
		return nil
	}
	if len(audio) == 0 {
		slog.Warn("Narration returned no audio", "slide", index)
		return nil
	}

	path := filepath.Join(dir, s.FileName(index))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		slog.Warn("Failed to write narration", "slide", index, "path", path, "error", err)
		_ = os.Remove(path)
		return nil
	}

	slog.Debug("Narration ready", "slide", index, "bytes", len(audio), "elapsed", time.Since(start))

	return &Artifact{
		Index:    index,
		Path:     path,
		MIMEType: s.provider.Format().MIMEType,
	}
}

// SynthesizeAll narrates every text and returns artifacts aligned with texts.
// Entries are nil where narration failed.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, dir string, texts []string) []*Artifact {
	artifacts := make([]*Artifact, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			artifacts[i] = s.Synthesize(ctx, dir, i, text)
		}

		if s.pool == nil {
			task()
			continue
		}
		if err := s.pool.Submit(task); err != nil {
			slog.Debug("Worker pool rejected narration, running inline", "slide", i, "error", err)
			task()
		}
	}
	wg.Wait()

	return artifacts
}

// NewPool creates the worker pool used for narration fan-out. Panics in a
// worker are logged instead of crashing the process.
func NewPool(size int) (*ants.Pool, error) {
	if size <= 0 {
		size = 1
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		slog.Error("Panic in narration worker", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}
