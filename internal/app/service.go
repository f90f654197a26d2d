package app

import (
	"context"
	"errors"
	"io"

	"github.com/panjf2000/ants/v2"

	"deckcast/internal/deck"
	"deckcast/internal/llm"
	"deckcast/internal/storage"
	"deckcast/pkg/config"
	"deckcast/pkg/prompts"
)

// Scraper turns a URL into plain text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

type Service struct {
	cfg       *config.Config
	llm       llm.Client
	prompts   *prompts.Prompts
	scraper   Scraper
	assembler *deck.Assembler
	storage   *storage.LocalStorage
	publisher storage.Publisher
	pool      *ants.Pool
	closers   []io.Closer
}

type ServiceOptions struct {
	Config    *config.Config
	LLM       llm.Client
	Prompts   *prompts.Prompts
	Scraper   Scraper
	Assembler *deck.Assembler
	Storage   *storage.LocalStorage
	Publisher storage.Publisher
	Pool      *ants.Pool
	Closers   []io.Closer
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		cfg:       opts.Config,
		llm:       opts.LLM,
		prompts:   opts.Prompts,
		scraper:   opts.Scraper,
		assembler: opts.Assembler,
		storage:   opts.Storage,
		publisher: opts.Publisher,
		pool:      opts.Pool,
		closers:   opts.Closers,
	}
}

func (s *Service) Config() *config.Config { return s.cfg }
func (s *Service) LLM() llm.Client { return s.llm }
func (s *Service) Prompts() *prompts.Prompts { return s.prompts }
func (s *Service) Scraper() Scraper { return s.scraper }
func (s *Service) Assembler() *deck.Assembler { return s.assembler }
func (s *Service) Storage() *storage.LocalStorage { return s.storage }
func (s *Service) Publisher() storage.Publisher { return s.publisher }

// Close releases the narration pool and any upstream clients.
func (s *Service) Close() error {
	if s.pool != nil {
		s.pool.Release()
	}
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
