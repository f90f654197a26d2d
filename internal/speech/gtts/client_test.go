package gtts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"deckcast/pkg/httputil"
)

func TestSplitText(t *testing.T) {
	long := strings.Repeat("a", 250)

	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{name: "empty", text: "   ", maxLen: 100, want: nil},
		{name: "short", text: "Plants make sugar.", maxLen: 100, want: []string{"Plants make sugar."}},
		{
			name:   "sentences",
			text:   "First one. Second one! Third?",
			maxLen: 100,
			want:   []string{"First one.", "Second one!", "Third?"},
		},
		{
			name:   "wordBoundary",
			text:   "alpha beta gamma delta",
			maxLen: 11,
			want:   []string{"alpha beta", "gamma delta"},
		},
		{
			name:   "decimalKeptTogether",
			text:   "Pi is 3.14 roughly",
			maxLen: 100,
			want:   []string{"Pi is 3.14 roughly"},
		},
		{
			name:   "overlongWord",
			text:   long,
			maxLen: 100,
			want:   []string{long[:100], long[100:200], long[200:]},
		},
		{
			name:   "collapsesWhitespace",
			text:   "one\n\n two\tthree",
			maxLen: 100,
			want:   []string{"one two three"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitText() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	text := strings.Repeat("Photosynthesis converts light energy into chemical energy stored in glucose molecules. ", 6)
	for _, chunk := range SplitText(text, MaxChunkLen) {
		if n := utf8.RuneCountInString(chunk); n > MaxChunkLen {
			t.Errorf("chunk has %d chars, want <= %d: %q", n, MaxChunkLen, chunk)
		}
	}
}

func TestSpeak(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate_tts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("tl") != "fr" {
			t.Errorf("tl = %q, want fr", r.URL.Query().Get("tl"))
		}
		if r.Header.Get("User-Agent") != "deckcast-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		idx := r.URL.Query().Get("idx")
		mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-" + idx + ";"))
	}))
	defer server.Close()

	client := newClient(Config{UserAgent: "deckcast-test"}, withBaseURL(server.URL))

	audio, err := client.Speak(context.Background(), "Bonjour. "+strings.Repeat("mot ", 30), "fr")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if len(queries) != 3 {
		t.Fatalf("got %d requests, want 3: %q", len(queries), queries)
	}
	if queries[0] != "Bonjour." {
		t.Errorf("first chunk = %q, want Bonjour.", queries[0])
	}
	if string(audio) != "mp3-0;mp3-1;mp3-2;" {
		t.Errorf("audio = %q, want chunks concatenated in order", audio)
	}
	if client.Format().Ext != "mp3" {
		t.Errorf("Format().Ext = %q, want mp3", client.Format().Ext)
	}
}

func TestSpeakErrors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		statusCode int
		body       string
		wantErr    string
	}{
		{name: "emptyText", text: "  ", statusCode: http.StatusOK, body: "x", wantErr: "no text"},
		{name: "forbidden", text: "hello", statusCode: http.StatusForbidden, body: "no", wantErr: "403"},
		{name: "emptyAudio", text: "hello", statusCode: http.StatusOK, body: "", wantErr: "empty audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newClient(Config{}, withBaseURL(server.URL))
			_, err := client.Speak(context.Background(), tt.text, "en")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Speak() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSpeakRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("mp3"))
	}))
	defer server.Close()

	retry := httputil.RetryConfig{MaxRetries: 2, InitialDelay: 1, MaxDelay: 1}
	client := newClient(Config{}, withBaseURL(server.URL), withHTTPClient(server.Client(), retry))

	audio, err := client.Speak(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if string(audio) != "mp3" || calls != 2 {
		t.Errorf("audio = %q after %d calls, want mp3 after 2", audio, calls)
	}
}
