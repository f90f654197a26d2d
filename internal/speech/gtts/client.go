package gtts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"deckcast/internal/speech"
	"deckcast/pkg/httputil"
)

const (
	baseURL = "https://translate.google.com"
	timeout = 30 * time.Second

	// MaxChunkLen is the longest text the translate endpoint accepts per
	// request, in characters.
	MaxChunkLen = 100

	defaultUserAgent = "Mozilla/5.0"
)

var _ speech.Provider = (*Client)(nil)

// Client synthesizes speech through the Google Translate TTS endpoint. Long
// text is split into chunks and the MP3 frames are concatenated.
type Client struct {
	httpClient *httputil.RetryClient
	baseURL    string
	userAgent  string
}

type Config struct {
	UserAgent string
	Retry     httputil.RetryConfig
}

type option func(*Client)

func withBaseURL(url string) option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func withHTTPClient(client *http.Client, retry httputil.RetryConfig) option {
	return func(c *Client) {
		c.httpClient = httputil.NewRetryClient(client, retry)
	}
}

func NewClient(cfg Config) *Client {
	return newClient(cfg)
}

func newClient(cfg Config, opts ...option) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		httpClient: httputil.NewRetryClient(&http.Client{Timeout: timeout}, cfg.Retry),
		baseURL:    baseURL,
		userAgent:  userAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Format() speech.Format { return speech.FormatMP3 }

func (c *Client) Speak(ctx context.Context, text, lang string) ([]byte, error) {
	chunks := SplitText(text, MaxChunkLen)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to speak")
	}
	if lang == "" {
		lang = "en"
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := c.fetchChunk(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}

	return audio.Bytes(), nil
}

func (c *Client) fetchChunk(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("q", text)
	query.Set("tl", lang)
	query.Set("client", "tw-ob")
	query.Set("idx", strconv.Itoa(idx))
	query.Set("total", strconv.Itoa(total))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/translate_tts?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", baseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtts: %s", resp.Status)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("gtts: empty audio")
	}

	return body, nil
}

// SplitText breaks text into chunks of at most maxLen characters, preferring
// sentence ends, then word boundaries. Words longer than maxLen are cut.
func SplitText(text string, maxLen int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var chunks []string
	for _, sentence := range splitSentences(text) {
		chunks = appendWords(chunks, sentence, maxLen)
	}
	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '。', '！', '？':
		return true
	}
	return false
}

func appendWords(chunks []string, sentence string, maxLen int) []string {
	var current []rune
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}

	for _, word := range strings.Fields(sentence) {
		w := []rune(word)
		for len(w) > maxLen {
			flush()
			chunks = append(chunks, string(w[:maxLen]))
			w = w[maxLen:]
		}
		if len(w) == 0 {
			continue
		}

		needed := len(w)
		if len(current) > 0 {
			needed++
		}
		if len(current)+needed > maxLen {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	flush()

	return chunks
}
