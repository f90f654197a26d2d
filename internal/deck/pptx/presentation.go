// Package pptx writes PowerPoint (OOXML) presentations with title and
// title-and-content slides and optional embedded audio.
package pptx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EMUPerInch is the number of English Metric Units in one inch.
const EMUPerInch = 914400

// 4:3 slide, 10in x 7.5in.
const (
	slideWidth  = 9144000
	slideHeight = 6858000
)

var ErrMediaUnsupported = errors.New("media embedding not supported")

type EMU int64

func Inches(in float64) EMU {
	return EMU(in * EMUPerInch)
}

// Box is a position and size on the slide.
type Box struct {
	X, Y, W, H EMU
}

type Layout int

const (
	LayoutTitle Layout = iota
	LayoutTitleAndContent
)

func (l Layout) String() string {
	switch l {
	case LayoutTitle:
		return "title"
	case LayoutTitleAndContent:
		return "title and content"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

var mediaTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

type media struct {
	ext  string
	data []byte
	box  Box
	name string
}

type Slide struct {
	layout Layout
	title  string
	body   string
	media  []media
	pres   *Presentation
}

type Presentation struct {
	slides     []*Slide
	embedMedia bool
	title      string
	created    time.Time
}

type Option func(*Presentation)

// WithoutMedia builds a writer that reports no media support, for targets
// that cannot play embedded audio.
func WithoutMedia() Option {
	return func(p *Presentation) { p.embedMedia = false }
}

// WithTitle sets the document title stored in the package properties.
func WithTitle(title string) Option {
	return func(p *Presentation) { p.title = title }
}

func New(opts ...Option) *Presentation {
	p := &Presentation{
		embedMedia: true,
		created:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Presentation) SupportsMediaEmbedding() bool { return p.embedMedia }

func (p *Presentation) SlideCount() int { return len(p.slides) }

func (p *Presentation) AddSlide(layout Layout) (*Slide, error) {
	if layout != LayoutTitle && layout != LayoutTitleAndContent {
		return nil, fmt.Errorf("unknown slide layout %v", layout)
	}
	s := &Slide{layout: layout, pres: p}
	p.slides = append(p.slides, s)
	return s, nil
}

func (s *Slide) SetTitle(text string) { s.title = text }

// SetBody sets the subtitle of a title slide or the body of a content slide.
// Each line becomes a paragraph.
func (s *Slide) SetBody(text string) { s.body = text }

// EmbedMedia attaches the audio file at path to the slide as a clickable icon
// placed at box.
func (s *Slide) EmbedMedia(path string, box Box) error {
	if !s.pres.embedMedia {
		return ErrMediaUnsupported
	}

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := mediaTypes[ext]; !ok {
		return fmt.Errorf("embed media: unsupported file type %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("embed media: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("embed media: %s is empty", path)
	}

	s.media = append(s.media, media{ext: ext, data: data, box: box, name: filepath.Base(path)})
	return nil
}

// Write serializes the presentation as a .pptx package.
func (p *Presentation) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	if err := newPackage(p).write(zw); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize package: %w", err)
	}
	return nil
}

// Save writes the presentation to path. The file appears atomically: it is
// written next to path and renamed into place.
func (p *Presentation) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".deck-*.pptx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := p.Write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename presentation: %w", err)
	}
	return nil
}
