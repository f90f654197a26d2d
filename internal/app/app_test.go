package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deckcast/internal/deck"
	"deckcast/internal/deck/pptx"
	"deckcast/internal/llm"
	"deckcast/internal/narration"
	"deckcast/internal/scrape"
	"deckcast/internal/speech"
	"deckcast/internal/storage"
	"deckcast/pkg/config"
	"deckcast/pkg/prompts"
)

const photosynthesisReply = "Here you go:\n```json\n" + `{"slides":[
  {"title":"What is Photosynthesis","content":"Plants turn light into chemical energy."},
  {"title":"Chlorophyll","content":"A green pigment captures sunlight."},
  {"title":"Light Reactions","content":"Water is split and oxygen is released."},
  {"title":"Calvin Cycle","content":"Carbon dioxide is fixed into sugar."},
  {"title":"Why It Matters","content":"It feeds nearly every food chain."}
]}` + "\n```"

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	before  func()
	prompts []llm.Prompt
}

func (f *fakeLLM) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.before != nil {
		f.before()
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeScraper struct {
	text string
	err  error
	urls []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fakePublisher struct {
	url string
	err error
}

func (f *fakePublisher) Publish(_ context.Context, runID, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + runID + "/" + filepath.Base(localPath), nil
}

type fixture struct {
	pipeline  *Pipeline
	llm       *fakeLLM
	scraper   *fakeScraper
	outputDir string
}

func newFixture(t *testing.T, client *fakeLLM, mutate func(*config.Config, *ServiceOptions)) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LLM.Timeout = time.Second
	cfg.Deck.SlideCount = 5
	cfg.Deck.Subtitle = "AI-Generated Presentation"
	cfg.Speech.Language = "en"

	p, err := prompts.Default()
	require.NoError(t, err)

	outputDir := t.TempDir()
	synth := narration.NewSynthesizer(speech.NewStubProvider(6000), nil, narration.Config{Language: "en"})
	scraper := &fakeScraper{}

	opts := ServiceOptions{
		Config:    cfg,
		LLM:       client,
		Prompts:   p,
		Scraper:   scraper,
		Assembler: deck.NewAssembler(synth, deck.Config{Subtitle: cfg.Deck.Subtitle}),
		Storage:   storage.NewLocalStorage(outputDir, "/outputs", ""),
	}
	if mutate != nil {
		mutate(cfg, &opts)
	}

	return &fixture{
		pipeline:  NewPipeline(NewService(opts)),
		llm:       client,
		scraper:   scraper,
		outputDir: outputDir,
	}
}

func (f *fixture) runDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.outputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFromTopicPhotosynthesis(t *testing.T) {
	f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)

	result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
	require.NoError(t, err)

	require.Equal(t, []string{result.RunID}, f.runDirs(t))
	require.Equal(t, "/outputs/"+result.RunID+"/presentation.pptx", result.DownloadURL)
	require.Equal(t, "/outputs/"+result.RunID+"/outline.html", result.PreviewURL)
	require.Equal(t, "What is Photosynthesis", result.Title)
	require.Equal(t, 6, result.SlideCount)
	require.Equal(t, 5, result.NarratedSlides)
	require.Len(t, result.AudioPaths, 5)
	require.Equal(t, "slide_1.wav", filepath.Base(result.AudioPaths[0]))

	slides, err := pptx.Inspect(result.DeckPath)
	require.NoError(t, err)
	require.Len(t, slides, 6)
	require.Equal(t, "What is Photosynthesis", slides[0].Title)
	require.Equal(t, "AI-Generated Presentation", slides[0].Body)
	require.Equal(t, "What is Photosynthesis", slides[1].Title)
	require.Equal(t, "Calvin Cycle", slides[4].Title)
	for _, s := range slides[1:] {
		require.Len(t, s.Media, 1)
	}

	preview, err := os.ReadFile(result.PreviewPath)
	require.NoError(t, err)
	require.Contains(t, string(preview), "Light Reactions")

	require.Equal(t, 1, f.llm.calls())
	prompt := f.llm.prompts[0]
	require.Contains(t, prompt.User, `5-slide presentation about "Photosynthesis"`)
	require.NotEmpty(t, prompt.System)
}

func TestFromTextUsesSummarizePrompt(t *testing.T) {
	f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)

	_, err := f.pipeline.FromText(context.Background(), "  Leaves capture light and make sugar.  ")
	require.NoError(t, err)
	require.Contains(t, f.llm.prompts[0].User, "TEXT:")
	require.Contains(t, f.llm.prompts[0].User, "Leaves capture light and make sugar.")
}

func TestFromURL(t *testing.T) {
	t.Run("scrapedTextReachesPrompt", func(t *testing.T) {
		f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)
		f.scraper.text = "Scraped article about chloroplasts."

		_, err := f.pipeline.FromURL(context.Background(), "https://example.com/leaves")
		require.NoError(t, err)
		require.Equal(t, []string{"https://example.com/leaves"}, f.scraper.urls)
		require.Contains(t, f.llm.prompts[0].User, "Scraped article about chloroplasts.")
	})

	t.Run("scrapeFailure", func(t *testing.T) {
		f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)
		f.scraper.err = errors.New("failed to fetch URL (status 404)")

		_, err := f.pipeline.FromURL(context.Background(), "https://example.com/missing")
		kind, ok := KindOf(err)
		require.True(t, ok)
		require.Equal(t, KindScrape, kind)
		require.Zero(t, f.llm.calls())
		require.Empty(t, f.runDirs(t))
	})

	t.Run("invalidURLIsInputError", func(t *testing.T) {
		f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)
		f.scraper.err = fmt.Errorf("%w: %q", scrape.ErrInvalidURL, "ftp://x")

		_, err := f.pipeline.FromURL(context.Background(), "ftp://x")
		kind, _ := KindOf(err)
		require.Equal(t, KindInvalidInput, kind)
	})
}

func TestRunFailuresLeaveNoDeck(t *testing.T) {
	tests := []struct {
		name      string
		client    *fakeLLM
		input     string
		wantKind  Kind
		wantStage Stage
	}{
		{
			name:      "refusal",
			client:    &fakeLLM{reply: "Sorry, I can't help with that."},
			input:     "Photosynthesis",
			wantKind:  KindNormalization,
			wantStage: StageNormalizing,
		},
		{
			name:      "missingContent",
			client:    &fakeLLM{reply: `{"slides":[{"title":"a","content":"b"},{"title":"c"}]}`},
			input:     "Photosynthesis",
			wantKind:  KindValidation,
			wantStage: StageValidating,
		},
		{
			name:      "rejected",
			client:    &fakeLLM{err: errors.New("401 unauthorized")},
			input:     "Photosynthesis",
			wantKind:  KindUpstreamRejected,
			wantStage: StageAwaitingModelReply,
		},
		{
			name:      "emptyInput",
			client:    &fakeLLM{reply: photosynthesisReply},
			input:     "   ",
			wantKind:  KindInvalidInput,
			wantStage: StageInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.client, nil)

			result, err := f.pipeline.FromTopic(context.Background(), tt.input)
			require.Nil(t, result)

			var appErr *Error
			require.True(t, errors.As(err, &appErr), "err = %v", err)
			require.Equal(t, tt.wantKind, appErr.Kind)
			require.Equal(t, tt.wantStage, appErr.Stage)
			require.False(t, appErr.Kind.Retryable())
			require.Empty(t, f.runDirs(t))
		})
	}
}

func TestPreparationFailuresAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T) func(*config.Config, *ServiceOptions)
	}{
		{
			name: "brokenPromptTemplate",
			mutate: func(t *testing.T) func(*config.Config, *ServiceOptions) {
				return func(_ *config.Config, opts *ServiceOptions) {
					opts.Prompts = &prompts.Prompts{Outline: prompts.OutlinePrompts{
						Topic:    "Write about {{.Topic",
						Template: "{{.Instruction}}",
					}}
				}
			},
		},
		{
			name: "unwritableOutputDir",
			mutate: func(t *testing.T) func(*config.Config, *ServiceOptions) {
				blocker := filepath.Join(t.TempDir(), "not-a-dir")
				require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
				return func(_ *config.Config, opts *ServiceOptions) {
					opts.Storage = storage.NewLocalStorage(filepath.Join(blocker, "outputs"), "/outputs", "")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, tt.mutate(t))

			result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
			require.Nil(t, result)

			var appErr *Error
			require.True(t, errors.As(err, &appErr), "err = %v", err)
			require.Equal(t, KindInternal, appErr.Kind)
			require.Equal(t, StagePreparing, appErr.Stage)
			require.Zero(t, f.llm.calls())
		})
	}
}

func TestPreviewWriteFailureClearsPreview(t *testing.T) {
	var f *fixture
	client := &fakeLLM{reply: photosynthesisReply}
	client.before = func() {
		// Occupy the preview file name with a directory so writing it fails.
		entries, err := os.ReadDir(f.outputDir)
		if err != nil {
			return
		}
		for _, e := range entries {
			_ = os.Mkdir(filepath.Join(f.outputDir, e.Name(), previewFileName), 0755)
		}
	}
	f = newFixture(t, client, nil)

	result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
	require.NoError(t, err)
	require.Empty(t, result.PreviewPath)
	require.Empty(t, result.PreviewURL)
	require.Equal(t, "/outputs/"+result.RunID+"/presentation.pptx", result.DownloadURL)
}

func TestValidationFailureLogsRawReply(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer slog.SetDefault(prev)

	reply := `{"slides":[{"title":"Lonely title without narration"}]}`
	f := newFixture(t, &fakeLLM{reply: reply}, nil)

	_, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
	kind, ok := KindOf(err)
	require.True(t, ok, "err = %v", err)
	require.Equal(t, KindValidation, kind)
	require.NotContains(t, err.Error(), "Lonely title")
	require.Contains(t, logs.String(), "level=WARN")
	require.Contains(t, logs.String(), "Lonely title without narration")
}

func TestRefusalKeepsRawReplyOutOfMessage(t *testing.T) {
	f := newFixture(t, &fakeLLM{reply: "Sorry, I can't help with that."}, nil)

	_, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "Sorry")
}

func TestUpstreamTimeout(t *testing.T) {
	t.Run("noRetryByDefault", func(t *testing.T) {
		client := &fakeLLM{block: true}
		f := newFixture(t, client, func(cfg *config.Config, _ *ServiceOptions) {
			cfg.LLM.Timeout = 20 * time.Millisecond
		})

		_, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
		kind, ok := KindOf(err)
		require.True(t, ok)
		require.Equal(t, KindUpstreamTimeout, kind)
		require.True(t, kind.Retryable())
		require.Equal(t, 1, client.calls())
		require.Empty(t, f.runDirs(t))
	})

	t.Run("retriesWhenConfigured", func(t *testing.T) {
		client := &fakeLLM{block: true}
		f := newFixture(t, client, func(cfg *config.Config, _ *ServiceOptions) {
			cfg.LLM.Timeout = 10 * time.Millisecond
			cfg.Retry.MaxRetries = 2
			cfg.Retry.InitialDelay = time.Millisecond
			cfg.Retry.MaxDelay = time.Millisecond
		})

		_, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
		kind, _ := KindOf(err)
		require.Equal(t, KindUpstreamTimeout, kind)
		require.Equal(t, 3, client.calls())
	})

	t.Run("rejectionIsNotRetried", func(t *testing.T) {
		client := &fakeLLM{err: errors.New("400 bad request")}
		f := newFixture(t, client, func(cfg *config.Config, _ *ServiceOptions) {
			cfg.Retry.MaxRetries = 3
			cfg.Retry.InitialDelay = time.Millisecond
		})

		_, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
		kind, _ := KindOf(err)
		require.Equal(t, KindUpstreamRejected, kind)
		require.Equal(t, 1, client.calls())
	})
}

func TestPublisher(t *testing.T) {
	t.Run("publishedURLReplacesLocalLink", func(t *testing.T) {
		f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, func(_ *config.Config, opts *ServiceOptions) {
			opts.Publisher = &fakePublisher{url: "https://storage.googleapis.com/bucket/decks"}
		})

		result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
		require.NoError(t, err)
		require.Equal(t, "https://storage.googleapis.com/bucket/decks/"+result.RunID+"/presentation.pptx", result.DownloadURL)
	})

	t.Run("publishFailureFallsBackToLocal", func(t *testing.T) {
		f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, func(_ *config.Config, opts *ServiceOptions) {
			opts.Publisher = &fakePublisher{err: errors.New("bucket gone")}
		})

		result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(result.DownloadURL, "/outputs/"))
	})
}

func TestConcurrentRunsUseSeparateDirectories(t *testing.T) {
	f := newFixture(t, &fakeLLM{reply: photosynthesisReply}, nil)

	const runs = 4
	paths := make([]string, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.pipeline.FromTopic(context.Background(), "Photosynthesis")
			if err == nil {
				paths[i] = result.DeckPath
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		require.NotEmpty(t, p)
		require.False(t, seen[p], "duplicate deck path %s", p)
		seen[p] = true
	}
	require.Len(t, f.runDirs(t), runs)
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind      Kind
		name      string
		retryable bool
	}{
		{KindInvalidInput, "invalid input", false},
		{KindScrape, "scrape", false},
		{KindUpstreamTimeout, "upstream timeout", true},
		{KindUpstreamRejected, "upstream rejected", false},
		{KindNormalization, "normalization", false},
		{KindValidation, "validation", false},
		{KindAssembly, "assembly", false},
		{KindInternal, "internal", false},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.kind.Retryable(); got != tt.retryable {
			t.Errorf("%s Retryable() = %v, want %v", tt.name, got, tt.retryable)
		}
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf() classified a plain error")
	}
}

func TestSplitKeys(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitKeys(" a, ,b "))
	require.Nil(t, splitKeys(""))
}
