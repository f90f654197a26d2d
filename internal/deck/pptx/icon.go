package pptx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 96

var (
	iconOnce sync.Once
	iconPNG  []byte
)

// audioIcon returns a PNG speaker glyph used as the poster image of embedded
// audio.
func audioIcon() []byte {
	iconOnce.Do(func() {
		iconPNG = renderSpeakerIcon()
	})
	return iconPNG
}

func renderSpeakerIcon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	fg := color.NRGBA{R: 0x2E, G: 0x6B, B: 0xE6, A: 0xFF}

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if inSpeaker(x, y) || inWave(x, y, 16) || inWave(x, y, 28) {
				img.SetNRGBA(x, y, fg)
			}
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory NRGBA image cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// inSpeaker covers the box and cone of the speaker on the left half.
func inSpeaker(x, y int) bool {
	const mid = iconSize / 2
	if x >= 14 && x < 30 && y >= mid-10 && y < mid+10 {
		return true
	}
	if x >= 30 && x < 50 {
		half := 10 + (x-30)*18/20
		return y >= mid-half && y < mid+half
	}
	return false
}

// inWave covers a 4px arc of radius r to the right of the cone.
func inWave(x, y, r int) bool {
	const cx, cy = 50, iconSize / 2
	dx, dy := x-cx, y-cy
	if dx <= 0 || dx*2 < abs(dy) {
		return false
	}
	d := dx*dx + dy*dy
	return d >= r*r && d < (r+4)*(r+4)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
