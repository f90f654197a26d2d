package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/panjf2000/ants/v2"

	"deckcast/internal/deck"
	"deckcast/internal/llm"
	"deckcast/internal/llm/gemini"
	"deckcast/internal/llm/groq"
	"deckcast/internal/llm/openai"
	"deckcast/internal/narration"
	"deckcast/internal/scrape"
	"deckcast/internal/speech"
	"deckcast/internal/speech/elevenlabs"
	"deckcast/internal/speech/gtts"
	"deckcast/internal/storage"
	"deckcast/pkg/config"
	"deckcast/pkg/httputil"
	"deckcast/pkg/prompts"
)

// BuildService wires the configured providers into a Service. The caller
// owns the result and must Close it.
func BuildService(ctx context.Context, cfg *config.Config) (*Service, error) {
	p, err := prompts.Load()
	if err != nil {
		return nil, err
	}

	llmClient, err := newLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	localStorage := storage.NewLocalStorage(cfg.Output.Dir, cfg.Output.URLPath, cfg.Server.BaseURL)
	if err := localStorage.EnsureDirectories(); err != nil {
		return nil, err
	}

	retry := retryConfig(cfg)

	var (
		narrator deck.Narrator
		pool     *ants.Pool
	)
	if !cfg.Narration.Disabled {
		provider, err := newSpeechProvider(cfg, retry)
		if err != nil {
			return nil, err
		}
		pool, err = narration.NewPool(cfg.Narration.Parallelism)
		if err != nil {
			return nil, err
		}
		narrator = narration.NewSynthesizer(provider, pool, narration.Config{
			Language: cfg.Speech.Language,
			Timeout:  cfg.Speech.Timeout,
		})
	}

	assembler := deck.NewAssembler(narrator, deck.Config{
		Subtitle:     cfg.Deck.Subtitle,
		DisableMedia: cfg.Deck.DisableMedia,
	})

	scraper := scrape.New(scrape.Config{
		Timeout:   cfg.Scrape.Timeout,
		UserAgent: cfg.Scrape.UserAgent,
		MaxBytes:  cfg.Scrape.MaxBytes,
		Retry:     retry,
	})

	var closers []io.Closer
	if c, ok := llmClient.(io.Closer); ok {
		closers = append(closers, c)
	}

	var publisher storage.Publisher
	if cfg.GCS.Enabled {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			if pool != nil {
				pool.Release()
			}
			return nil, err
		}
		publisher = gcs
		closers = append(closers, gcs)
	}

	opts := ServiceOptions{
		Config:    cfg,
		LLM:       llmClient,
		Prompts:   p,
		Scraper:   scraper,
		Assembler: assembler,
		Storage:   localStorage,
		Publisher: publisher,
		Pool:      pool,
		Closers:   closers,
	}
	return NewService(opts), nil
}

func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GCPProject,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			JSONMode: true,
		})
	case "groq":
		opts := []groq.Option{groq.WithJSONMode()}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(cfg.LLM.BaseURL))
		}
		return groq.NewClient(cfg.GroqAPIKey, cfg.LLM.Model, opts...)
	case "openai":
		opts := []openai.Option{openai.WithJSONMode()}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLM.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func newSpeechProvider(cfg *config.Config, retry httputil.RetryConfig) (speech.Provider, error) {
	switch cfg.Speech.Provider {
	case "gtts":
		return gtts.NewClient(gtts.Config{Retry: retry}), nil
	case "elevenlabs":
		keys := splitKeys(cfg.ElevenLabsAPIKey)
		if len(keys) == 0 {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		return elevenlabs.NewClient(elevenlabs.Config{
			APIKeys: keys,
			VoiceID: cfg.Speech.VoiceID,
			Model:   cfg.Speech.Model,
			Retry:   retry,
		}), nil
	case "stub":
		return speech.NewStubProvider(speech.DefaultWordsPerMinute), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

func retryConfig(cfg *config.Config) httputil.RetryConfig {
	return httputil.RetryConfig{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}
}

// splitKeys accepts a comma separated list so several ElevenLabs keys can
// share the quota.
func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
