package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"deckcast/pkg/httputil"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "Mozilla/5.0"
	defaultMaxBytes  = 5 << 20
)

var (
	ErrNoContent  = errors.New("no content found")
	ErrInvalidURL = errors.New("invalid URL")
)

// StatusError reports a page that answered with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch URL (status %d)", e.StatusCode)
}

type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Retry     httputil.RetryConfig
}

// Scraper fetches a page and extracts its readable text.
type Scraper struct {
	httpClient *httputil.RetryClient
	userAgent  string
	maxBytes   int64
}

func New(cfg Config) *Scraper {
	return newScraper(cfg, &http.Client{})
}

func newScraper(cfg Config, client *http.Client) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	client.Timeout = cfg.Timeout

	return &Scraper{
		httpClient: httputil.NewRetryClient(client, cfg.Retry),
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBytes,
	}
}

// Scrape returns the visible text of the page at rawURL with script and
// style content removed and whitespace collapsed.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	text, err := ExtractText(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// ExtractText returns the text nodes of an HTML document joined by single
// spaces, skipping script and style elements.
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		words []string
		skip  int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse html: %w", err)
			}
			return strings.Join(words, " "), nil
		case html.StartTagToken:
			if isSkipped(z) {
				skip++
			}
		case html.EndTagToken:
			if isSkipped(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				words = append(words, strings.Fields(string(z.Text()))...)
			}
		}
	}
}

func isSkipped(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style:
		return true
	}
	return false
}
