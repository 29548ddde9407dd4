package raster

import "image"

// Pixel values in a binarized buffer.
const (
	// Foreground marks pixels the tracer follows.
	Foreground uint8 = 0x00
	// Background marks pixels the tracer ignores.
	Background uint8 = 0xFF
)

// Buffer is a decoded, binarized single-channel bitmap ready for tracing.
// Every pixel is either Foreground or Background. A Buffer is created by
// the normalizer or the text rasterizer, consumed by one trace call, and
// discarded.
type Buffer struct {
	Pix    []uint8
	Width  int
	Height int
}

// New allocates a buffer of the given dimensions filled with Background.
func New(width, height int) Buffer {
	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = Background
	}
	return Buffer{Pix: pix, Width: width, Height: height}
}

// At returns the pixel at (x, y).
func (b Buffer) At(x, y int) uint8 { return b.Pix[y*b.Width+x] }

// Set writes the pixel at (x, y).
func (b Buffer) Set(x, y int, v uint8) { b.Pix[y*b.Width+x] = v }

// ForegroundCount returns the number of foreground pixels.
func (b Buffer) ForegroundCount() int {
	n := 0
	for _, p := range b.Pix {
		if p == Foreground {
			n++
		}
	}
	return n
}

// TrimBox describes the subject auto-crop applied before normalization.
// It is reported to the caller for display and has no effect on tracing.
type TrimBox struct {
	OriginalWidth  int
	OriginalHeight int
	TrimmedWidth   int
	TrimmedHeight  int
	OffsetX        int
	OffsetY        int
}

// Glyph is one rendered, tightly cropped character bitmap. A character
// that failed to render carries its error in Err and a nil Image; one
// bad character never voids the other glyphs of the same string.
type Glyph struct {
	Char  rune
	Image image.Image
	Err   error
}
