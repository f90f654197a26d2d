package deck

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"deckcast/internal/deck/pptx"
	"deckcast/internal/narration"
	"deckcast/internal/outline"
)

const (
	DefaultFileName = "presentation.pptx"
	DefaultSubtitle = "AI-Generated Presentation"
)

// audioBox is where the narration icon sits on content slides.
var audioBox = pptx.Box{X: pptx.Inches(8.5), Y: pptx.Inches(0.5), W: pptx.Inches(1), H: pptx.Inches(1)}

// AssemblyError reports a deck that could not be serialized.
type AssemblyError struct {
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble deck %s: %v", e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Writer is the slide-deck backend the assembler drives.
type Writer interface {
	SupportsMediaEmbedding() bool
	AddSlide(layout pptx.Layout, title, body string) (Slide, error)
	Save(path string) error
}

type Slide interface {
	EmbedMedia(path string, box pptx.Box) error
}

// Narrator produces one audio artifact per text, nil where narration failed.
type Narrator interface {
	SynthesizeAll(ctx context.Context, dir string, texts []string) []*narration.Artifact
}

type Result struct {
	Path       string
	SlideCount int
	// Narrated, Embedded and AudioPaths are indexed by outline slide.
	Narrated   []bool
	Embedded   []bool
	AudioPaths []string
}

type Config struct {
	Subtitle     string
	FileName     string
	DisableMedia bool
}

type Assembler struct {
	narrator  Narrator
	newWriter func(title string, media bool) Writer
	subtitle  string
	fileName  string
	media     bool
}

type Option func(*Assembler)

func WithWriterFactory(f func(title string, media bool) Writer) Option {
	return func(a *Assembler) { a.newWriter = f }
}

// NewAssembler builds decks with narrator; a nil narrator yields silent decks.
func NewAssembler(narrator Narrator, cfg Config, opts ...Option) *Assembler {
	a := &Assembler{
		narrator:  narrator,
		newWriter: NewPPTXWriter,
		subtitle:  cfg.Subtitle,
		fileName:  cfg.FileName,
		media:     !cfg.DisableMedia,
	}
	if a.subtitle == "" {
		a.subtitle = DefaultSubtitle
	}
	if a.fileName == "" {
		a.fileName = DefaultFileName
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble writes a title slide followed by one content slide per outline
// slide into runDir. Narration and embedding failures only drop the audio of
// the affected slide.
func (a *Assembler) Assemble(ctx context.Context, o *outline.Outline, runDir string) (*Result, error) {
	path := filepath.Join(runDir, a.fileName)
	w := a.newWriter(o.Title(), a.media)

	if _, err := w.AddSlide(pptx.LayoutTitle, o.Title(), a.subtitle); err != nil {
		return nil, &AssemblyError{Path: path, Err: err}
	}

	artifacts := make([]*narration.Artifact, o.Len())
	if a.narrator != nil {
		slog.Info("Narrating slides...", "count", o.Len())
		artifacts = a.narrator.SynthesizeAll(ctx, runDir, o.Narrations())
	}

	embed := w.SupportsMediaEmbedding()
	if !embed {
		slog.Info("Deck writer cannot embed media, audio stays alongside the deck")
	}

	result := &Result{
		Path:       path,
		SlideCount: o.Len() + 1,
		Narrated:   make([]bool, o.Len()),
		Embedded:   make([]bool, o.Len()),
		AudioPaths: make([]string, o.Len()),
	}

	for i, s := range o.Slides {
		slide, err := w.AddSlide(pptx.LayoutTitleAndContent, s.Title, s.Content)
		if err != nil {
			return nil, &AssemblyError{Path: path, Err: err}
		}

		artifact := artifacts[i]
		if artifact == nil {
			continue
		}
		result.Narrated[i] = true
		result.AudioPaths[i] = artifact.Path

		if !embed {
			continue
		}
		if err := slide.EmbedMedia(artifact.Path, audioBox); err != nil {
			slog.Warn("Failed to embed narration", "slide", i, "error", err)
			continue
		}
		result.Embedded[i] = true
	}

	if err := w.Save(path); err != nil {
		return nil, &AssemblyError{Path: path, Err: err}
	}

	slog.Info("Deck saved", "path", path, "slides", result.SlideCount)
	return result, nil
}

type pptxWriter struct {
	pres *pptx.Presentation
}

// NewPPTXWriter is the default Writer, backed by the pptx package.
func NewPPTXWriter(title string, media bool) Writer {
	opts := []pptx.Option{pptx.WithTitle(title)}
	if !media {
		opts = append(opts, pptx.WithoutMedia())
	}
	return &pptxWriter{pres: pptx.New(opts...)}
}

func (w *pptxWriter) SupportsMediaEmbedding() bool { return w.pres.SupportsMediaEmbedding() }

func (w *pptxWriter) AddSlide(layout pptx.Layout, title, body string) (Slide, error) {
	s, err := w.pres.AddSlide(layout)
	if err != nil {
		return nil, err
	}
	s.SetTitle(title)
	s.SetBody(body)
	return s, nil
}

func (w *pptxWriter) Save(path string) error { return w.pres.Save(path) }
