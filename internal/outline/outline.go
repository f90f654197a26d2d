package outline

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	jsonFence = "```json"
	fence     = "```"
)

type Slide struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Outline is an ordered, validated list of slides. Values returned by
// Validate and Parse always hold at least one slide.
type Outline struct {
	Slides []Slide `json:"slides"`
}

func (o *Outline) Len() int { return len(o.Slides) }

// Title is the deck title, taken from the first slide.
func (o *Outline) Title() string {
	if len(o.Slides) == 0 {
		return ""
	}
	return o.Slides[0].Title
}

func (o *Outline) Narrations() []string {
	texts := make([]string, len(o.Slides))
	for i, s := range o.Slides {
		texts[i] = s.Content
	}
	return texts
}

// Parse normalizes a raw model reply and validates the result.
func Parse(raw string) (*Outline, error) {
	parsed, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return Validate(parsed)
}

// Normalize extracts the JSON object embedded in a model reply. A reply that
// is already a complete JSON object is decoded as is. Otherwise a fenced block
// is preferred when both an opening and a closing fence are present, and the
// whole trimmed reply is decoded as a last resort. Fences only open at the
// start of a line.
func Normalize(raw string) (map[string]any, error) {
	candidate := extractCandidate(raw)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		slog.Warn("Failed to decode model reply", "error", err, "raw", raw)
		return nil, &NormalizationError{Reason: "reply is not a JSON object", Raw: raw, Err: err}
	}
	if parsed == nil {
		slog.Warn("Model reply decoded to null", "raw", raw)
		return nil, &NormalizationError{Reason: "reply is not a JSON object", Raw: raw}
	}

	slides, ok := parsed["slides"]
	if !ok {
		slog.Warn("Model reply has no slides field", "raw", raw)
		return nil, &NormalizationError{Reason: `missing "slides" field`, Raw: raw}
	}
	if _, ok := slides.([]any); !ok {
		slog.Warn("Model reply slides field is not a list", "raw", raw)
		return nil, &NormalizationError{Reason: `"slides" is not a list`, Raw: raw}
	}

	return parsed, nil
}

func extractCandidate(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
		return text
	}

	start, bodyStart := openingFence(text)
	end := strings.LastIndex(text, fence)
	if start == -1 || end == -1 || end < bodyStart {
		return text
	}

	return strings.TrimSpace(text[bodyStart:end])
}

// openingFence returns the index of the opening fence and the index where the
// payload after its language tag begins.
func openingFence(text string) (int, int) {
	if i := indexAtLineStart(text, jsonFence); i != -1 {
		return i, i + len(jsonFence)
	}

	i := indexAtLineStart(text, fence)
	if i == -1 {
		return -1, -1
	}

	bodyStart := i + len(fence)
	rest := text[bodyStart:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 && isLanguageTag(rest[:nl]) {
		bodyStart += nl
	}
	return i, bodyStart
}

func indexAtLineStart(text, marker string) int {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], marker)
		if i == -1 {
			return -1
		}
		i += offset
		if i == 0 || text[i-1] == '\n' {
			return i
		}
		offset = i + len(marker)
	}
	return -1
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Validate checks the slide contract on a normalized payload and returns
// trimmed copies of the slides.
func Validate(parsed map[string]any) (*Outline, error) {
	items, ok := parsed["slides"].([]any)
	if !ok {
		return nil, &ValidationError{Index: -1, Field: "slides", Reason: "must be a list"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Index: -1, Field: "slides", Reason: "must not be empty"}
	}

	slides := make([]Slide, 0, len(items))
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Index: i, Field: "slide", Reason: "must be an object"}
		}

		title, err := requireText(record, i, "title")
		if err != nil {
			return nil, err
		}
		content, err := requireText(record, i, "content")
		if err != nil {
			return nil, err
		}

		slides = append(slides, Slide{Title: title, Content: content})
	}

	return &Outline{Slides: slides}, nil
}

func requireText(record map[string]any, index int, field string) (string, error) {
	value, ok := record[field]
	if !ok {
		return "", &ValidationError{Index: index, Field: field, Reason: "is missing"}
	}
	text, ok := value.(string)
	if !ok {
		return "", &ValidationError{Index: index, Field: field, Reason: "must be a string"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Index: index, Field: field, Reason: "must not be empty"}
	}
	return text, nil
}
