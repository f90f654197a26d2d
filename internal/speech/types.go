package speech

import (
	"context"
	"strings"
)

const DefaultWordsPerMinute = 150.0

// Format describes the audio container a provider emits.
type Format struct {
	Ext      string
	MIMEType string
}

var (
	FormatMP3 = Format{Ext: "mp3", MIMEType: "audio/mpeg"}
	FormatWAV = Format{Ext: "wav", MIMEType: "audio/wav"}
)

// Provider turns narration text into audio in a fixed format.
type Provider interface {
	Speak(ctx context.Context, text, lang string) ([]byte, error)
	Format() Format
}

// EstimateDuration returns the spoken length of text in seconds at the given
// pace.
func EstimateDuration(text string, wordsPerMinute float64) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return float64(len(strings.Fields(text))) / wordsPerMinute * 60.0
}

// EstimateAudioDuration approximates the length of a 128 kbps MP3 stream.
func EstimateAudioDuration(audio []byte) float64 {
	bitrate := 128000.0
	return float64(len(audio)*8) / bitrate
}
