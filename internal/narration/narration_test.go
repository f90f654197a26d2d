package narration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"deckcast/internal/speech"
)

type fakeProvider struct {
	failOn  map[string]bool
	block   bool
	calls   atomic.Int32
	panicOn string
}

func (f *fakeProvider) Speak(ctx context.Context, text, lang string) ([]byte, error) {
	f.calls.Add(1)
	if text == f.panicOn {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.failOn[text] {
		return nil, errors.New("tts unavailable")
	}
	return []byte("audio:" + lang + ":" + text), nil
}

func (f *fakeProvider) Format() speech.Format { return speech.FormatMP3 }

func TestSynthesize(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(&fakeProvider{}, nil, Config{Language: "en"})

	artifact := s.Synthesize(context.Background(), dir, 2, "Chlorophyll captures light.")
	if artifact == nil {
		t.Fatal("Synthesize() = nil, want artifact")
	}

	wantPath := filepath.Join(dir, "slide_3.mp3")
	if artifact.Path != wantPath || artifact.Index != 2 || artifact.MIMEType != "audio/mpeg" {
		t.Errorf("artifact = %+v, want path %s", artifact, wantPath)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "audio:en:Chlorophyll captures light." {
		t.Errorf("audio = %q", data)
	}
}

func TestSynthesizeFailureReturnsNil(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		text     string
	}{
		{name: "providerError", provider: &fakeProvider{failOn: map[string]bool{"bad": true}}, text: "bad"},
		{name: "emptyText", provider: &fakeProvider{}, text: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewSynthesizer(tt.provider, nil, Config{})
			if got := s.Synthesize(context.Background(), dir, 0, tt.text); got != nil {
				t.Errorf("Synthesize() = %+v, want nil", got)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("dir has %d files, want none", len(entries))
			}
		})
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	s := NewSynthesizer(&fakeProvider{block: true}, nil, Config{Timeout: 20 * time.Millisecond})

	done := make(chan *Artifact, 1)
	go func() { done <- s.Synthesize(context.Background(), t.TempDir(), 0, "hello") }()

	select {
	case got := <-done:
		if got != nil {
			t.Errorf("Synthesize() = %+v, want nil on timeout", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Synthesize() did not honor its timeout")
	}
}

func TestSynthesizeAllIsolatesFailures(t *testing.T) {
	texts := []string{"one", "two", "three", "four", "five"}

	for _, pooled := range []bool{false, true} {
		name := "sequential"
		if pooled {
			name = "pooled"
		}
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{failOn: map[string]bool{"three": true}}

			var s *Synthesizer
			if pooled {
				pool, err := NewPool(2)
				if err != nil {
					t.Fatalf("NewPool() error = %v", err)
				}
				defer pool.Release()
				s = NewSynthesizer(provider, pool, Config{})
			} else {
				s = NewSynthesizer(provider, nil, Config{})
			}

			artifacts := s.SynthesizeAll(context.Background(), t.TempDir(), texts)
			if len(artifacts) != len(texts) {
				t.Fatalf("got %d artifacts, want %d", len(artifacts), len(texts))
			}
			for i, a := range artifacts {
				if i == 2 {
					if a != nil {
						t.Errorf("artifact %d = %+v, want nil", i, a)
					}
					continue
				}
				if a == nil || a.Index != i {
					t.Errorf("artifact %d = %+v, want index %d", i, a, i)
				}
			}
			if got := provider.calls.Load(); got != int32(len(texts)) {
				t.Errorf("provider called %d times, want %d", got, len(texts))
			}
		})
	}
}

func TestSynthesizeAllRecoversWorkerPanic(t *testing.T) {
	pool, err := NewPool(2)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Release()

	s := NewSynthesizer(&fakeProvider{panicOn: "two"}, pool, Config{})
	artifacts := s.SynthesizeAll(context.Background(), t.TempDir(), []string{"one", "two", "three"})

	if artifacts[0] == nil || artifacts[2] == nil {
		t.Errorf("artifacts = %v, want slides 0 and 2 narrated", artifacts)
	}
	if artifacts[1] != nil {
		t.Errorf("artifact 1 = %+v, want nil after panic", artifacts[1])
	}
}

func TestFileName(t *testing.T) {
	wav := NewSynthesizer(speech.NewStubProvider(0), nil, Config{})
	if got := wav.FileName(0); got != "slide_1.wav" {
		t.Errorf("FileName(0) = %q, want slide_1.wav", got)
	}
}
