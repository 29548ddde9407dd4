package textraster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/raster"
)

// MaxTextLen caps the rendered string length; longer input is truncated
// before rendering.
const MaxTextLen = 50

// cropTolerance keeps anti-aliased glyph edges when tight-cropping.
const cropTolerance = 8

// Service renders text strings into bitmaps with the same output
// contract as an uploaded image: the result flows into the raster
// normalizer unchanged.
type Service struct {
	fonts *Registry
}

// New creates a text rasterizer over the given font registry.
func New(fonts *Registry) *Service { return &Service{fonts: fonts} }

// RasterizeText renders the whole string centered on an oversized canvas
// and tight-crops the result to the glyph ink.
func (s *Service) RasterizeText(text string, fontSize float64, fontKey string) (image.Image, error) {
	text, err := s.prepare(text, fontSize)
	if err != nil {
		return nil, err
	}
	face, err := s.newFace(fontKey, fontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	return render(face, text)
}

// RasterizeGlyphs renders one bitmap per non-whitespace character,
// preserving input order. Input and font problems fail the whole call;
// a single character's render failure is recorded on that glyph's Err
// so the caller can keep its result slot.
func (s *Service) RasterizeGlyphs(text string, fontSize float64, fontKey string) ([]raster.Glyph, error) {
	text, err := s.prepare(text, fontSize)
	if err != nil {
		return nil, err
	}
	face, err := s.newFace(fontKey, fontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	var glyphs []raster.Glyph
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		img, err := render(face, string(r))
		if err != nil {
			glyphs = append(glyphs, raster.Glyph{Char: r, Err: err})
			continue
		}
		glyphs = append(glyphs, raster.Glyph{Char: r, Image: img})
	}
	return glyphs, nil
}

// Truncate enforces the text length cap.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) > MaxTextLen {
		return string(runes[:MaxTextLen])
	}
	return text
}

func (s *Service) prepare(text string, fontSize float64) (string, error) {
	text = Truncate(text)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	if fontSize <= 0 {
		return "", fmt.Errorf("font size %g: %w", fontSize, domain.ErrInvalidInput)
	}
	return text, nil
}

func (s *Service) newFace(key string, size float64) (font.Face, error) {
	f, ok := s.fonts.Font(key)
	if !ok {
		return nil, fmt.Errorf("font key %q: %w", key, domain.ErrFontNotFound)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face %q: %w", key, err)
	}
	return face, nil
}

// render draws black text on a white canvas generous enough that no font
// size can clip it (one line height of margin on each side), then crops
// to the ink.
func render(face font.Face, text string) (image.Image, error) {
	d := &font.Drawer{Src: image.Black, Face: face}
	adv := d.MeasureString(text)
	m := face.Metrics()
	em := m.Height.Ceil()
	if em < 1 {
		em = 1
	}

	w := adv.Ceil() + 2*em
	h := 3 * em
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d.Dst = dst
	d.Dot = fixed.P(em, (h+m.Ascent.Ceil()-m.Descent.Ceil())/2)
	d.DrawString(text)

	cropped, ok := tightCrop(dst, cropTolerance)
	if !ok {
		return nil, fmt.Errorf("text rendered no visible glyphs: %w", domain.ErrInvalidInput)
	}
	return cropped, nil
}

// tightCrop trims the white margin around the ink. Pixels within tol of
// pure white count as margin.
func tightCrop(g *image.Gray, tol uint8) (*image.Gray, bool) {
	b := g.Bounds()
	cut := uint8(255 - int(tol))
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for x, v := range row {
			if v >= cut {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return nil, false
	}

	r := image.Rect(minX, minY, maxX+1, maxY+1)
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), g, r.Min, draw.Src)
	return dst, true
}
