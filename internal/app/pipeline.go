package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"deckcast/internal/llm"
	"deckcast/internal/outline"
	"deckcast/internal/scrape"
	"deckcast/pkg/httputil"
	"deckcast/pkg/prompts"
)

const defaultLLMTimeout = 60 * time.Second

type SourceKind int

const (
	SourceTopic SourceKind = iota + 1
	SourceText
	SourceURL
)

func (k SourceKind) String() string {
	switch k {
	case SourceTopic:
		return "topic"
	case SourceText:
		return "text"
	case SourceURL:
		return "url"
	default:
		return "unknown"
	}
}

// Source is the raw user input of one run.
type Source struct {
	Kind  SourceKind
	Value string
}

// Result locates the artifacts of a finished run.
type Result struct {
	RunID          string
	Title          string
	DeckPath       string
	DownloadURL    string
	PreviewPath    string
	PreviewURL     string
	AudioPaths     []string
	SlideCount     int
	NarratedSlides int
}

type Pipeline struct {
	service *Service
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service}
}

func (p *Pipeline) FromTopic(ctx context.Context, topic string) (*Result, error) {
	return p.Run(ctx, Source{Kind: SourceTopic, Value: topic})
}

func (p *Pipeline) FromText(ctx context.Context, text string) (*Result, error) {
	return p.Run(ctx, Source{Kind: SourceText, Value: text})
}

func (p *Pipeline) FromURL(ctx context.Context, url string) (*Result, error) {
	return p.Run(ctx, Source{Kind: SourceURL, Value: url})
}

// Run turns one source into a narrated deck. Failures come back as *Error;
// when a run fails its directory is removed so no partial deck is left.
// PreviewPath and PreviewURL stay empty when the preview could not be written.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	value := strings.TrimSpace(src.Value)
	if value == "" {
		return nil, &Error{Kind: KindInvalidInput, Stage: StageInput, Err: ErrEmptyInput}
	}

	params, err := p.promptParams(ctx, src.Kind, value)
	if err != nil {
		return nil, err
	}

	system := p.service.Prompts().System.Outline
	user, err := p.service.Prompts().RenderOutline(params)
	if err != nil {
		return nil, p.fail(slog.Default(), KindInternal, StagePreparing, fmt.Errorf("render prompt: %w", err))
	}

	sess, err := newSession(p.service.Storage())
	if err != nil {
		return nil, p.fail(slog.Default(), KindInternal, StagePreparing, fmt.Errorf("create run: %w", err))
	}
	defer sess.close()

	log := slog.With("run", sess.id(), "source", src.Kind.String())

	log.Info("Generating outline...", "stage", StageAwaitingModelReply)
	reply, err := p.generate(ctx, llm.Prompt{System: system, User: user})
	if err != nil {
		return nil, p.fail(log, classifyUpstream(err), StageAwaitingModelReply, err)
	}

	log.Debug("Normalizing reply...", "stage", StageNormalizing, "length", len(reply))
	parsed, err := outline.Normalize(reply)
	if err != nil {
		return nil, p.fail(log, KindNormalization, StageNormalizing, err)
	}

	log.Debug("Validating outline...", "stage", StageValidating)
	o, err := outline.Validate(parsed)
	if err != nil {
		log.Warn("Model reply failed validation", "error", err, "raw", reply)
		return nil, p.fail(log, KindValidation, StageValidating, err)
	}

	var previewPath, previewURL string
	subtitle := p.service.Config().Deck.Subtitle
	if page, err := o.PreviewHTML(subtitle); err != nil {
		log.Warn("Failed to render outline preview", "error", err)
	} else if err := sess.writePreview(page); err != nil {
		log.Warn("Failed to write outline preview", "error", err)
	} else {
		previewPath = sess.previewPath()
		previewURL = sess.url(previewPath)
	}

	log.Info("Assembling deck...", "stage", StageSynthesizing, "slides", o.Len())
	built, err := p.service.Assembler().Assemble(ctx, o, sess.dir())
	if err != nil {
		return nil, p.fail(log, KindAssembly, StageAssembling, err)
	}
	sess.keep = true

	result := &Result{
		RunID:       sess.id(),
		Title:       o.Title(),
		DeckPath:    built.Path,
		DownloadURL: sess.url(built.Path),
		PreviewPath: previewPath,
		PreviewURL:  previewURL,
		SlideCount:  built.SlideCount,
	}
	for i, narrated := range built.Narrated {
		if narrated {
			result.NarratedSlides++
			result.AudioPaths = append(result.AudioPaths, built.AudioPaths[i])
		}
	}

	if publisher := p.service.Publisher(); publisher != nil {
		if url, err := publisher.Publish(ctx, sess.id(), built.Path); err != nil {
			log.Warn("Failed to publish deck, serving local copy", "error", err)
		} else {
			result.DownloadURL = url
		}
	}

	log.Info("Deck ready", "stage", StageDone, "path", result.DeckPath,
		"slides", result.SlideCount, "narrated", result.NarratedSlides)
	return result, nil
}

func (p *Pipeline) promptParams(ctx context.Context, kind SourceKind, value string) (prompts.OutlineParams, error) {
	params := prompts.OutlineParams{SlideCount: p.service.Config().Deck.SlideCount}

	switch kind {
	case SourceTopic:
		params.Variant = prompts.VariantTopic
		params.Topic = value
	case SourceText:
		params.Variant = prompts.VariantSummarize
		params.Text = value
	case SourceURL:
		slog.Info("Scraping URL...", "url", value, "stage", StageScraping)
		text, err := p.service.Scraper().Scrape(ctx, value)
		if err != nil {
			slog.Warn("Scrape failed", "url", value, "error", err)
			if errors.Is(err, scrape.ErrInvalidURL) {
				return params, &Error{Kind: KindInvalidInput, Stage: StageInput, Err: err}
			}
			return params, &Error{Kind: KindScrape, Stage: StageScraping, Err: err}
		}
		params.Variant = prompts.VariantSummarize
		params.Text = text
	default:
		return params, &Error{Kind: KindInvalidInput, Stage: StageInput, Err: fmt.Errorf("unknown source kind %d", kind)}
	}

	return params, nil
}

// generate calls the model under the configured timeout. With retries
// enabled only timeouts are attempted again.
func (p *Pipeline) generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	cfg := p.service.Config()
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	var reply string
	attempt := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, err := p.service.LLM().Generate(callCtx, prompt)
		if err != nil {
			return err
		}
		reply = out
		return nil
	}

	var err error
	if cfg.Retry.MaxRetries <= 0 {
		err = attempt(ctx)
	} else {
		err = httputil.Retry(ctx, httputil.RetryConfig{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		}, llm.IsTimeout, attempt)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (p *Pipeline) fail(log *slog.Logger, kind Kind, stage Stage, err error) error {
	log.Error("Run failed", "kind", kind.String(), "stage", stage, "error", err)
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func classifyUpstream(err error) Kind {
	if llm.IsTimeout(err) {
		return KindUpstreamTimeout
	}
	return KindUpstreamRejected
}
