package speech

import (
	"context"
	"encoding/binary"
	"testing"
)

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		name string
		text string
		wpm  float64
		want float64
	}{
		{name: "empty", text: "", wpm: 150, want: 0},
		{name: "oneMinute", text: repeatWords(150), wpm: 150, want: 60},
		{name: "defaultPace", text: repeatWords(75), wpm: 0, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateDuration(tt.text, tt.wpm); got != tt.want {
				t.Errorf("EstimateDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateAudioDuration(t *testing.T) {
	tests := []struct {
		name       string
		audioBytes int
		wantMin    float64
		wantMax    float64
	}{
		{name: "empty", audioBytes: 0, wantMin: 0, wantMax: 0},
		{name: "smallAudio", audioBytes: 16000, wantMin: 0.5, wantMax: 2.0},
		{name: "mediumAudio", audioBytes: 160000, wantMin: 5.0, wantMax: 20.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration := EstimateAudioDuration(make([]byte, tt.audioBytes))
			if duration < tt.wantMin || duration > tt.wantMax {
				t.Errorf("duration = %v, want between %v and %v", duration, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestStubProviderSpeak(t *testing.T) {
	p := NewStubProvider(60)
	audio, err := p.Speak(context.Background(), "one two three", "en")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		t.Fatalf("missing WAV header: %q", audio[:12])
	}

	dataSize := binary.LittleEndian.Uint32(audio[40:44])
	wantSize := uint32(3 * wavSampleRate * wavBitsPerSample / 8)
	if dataSize != wantSize {
		t.Errorf("data size = %d, want %d", dataSize, wantSize)
	}
	if len(audio) != wavHeaderSize+int(dataSize) {
		t.Errorf("len(audio) = %d, want %d", len(audio), wavHeaderSize+int(dataSize))
	}
	if p.Format() != FormatWAV {
		t.Errorf("Format() = %v, want %v", p.Format(), FormatWAV)
	}
}

func TestStubProviderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStubProvider(0).Speak(ctx, "hello", "en"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func repeatWords(n int) string {
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		b = append(b, "w "...)
	}
	return string(b)
}
