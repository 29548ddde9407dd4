package textraster

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/framery/outliner/internal/domain"
)

func testService(t *testing.T) *Service {
	t.Helper()
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(reg)
}

func TestRegistryBuiltinKeys(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, key := range []string{KeySans, KeySansBold, KeySansItalic, KeyMono} {
		if _, ok := reg.Font(key); !ok {
			t.Errorf("built-in font %q missing", key)
		}
	}
	if got := len(reg.Keys()); got != 4 {
		t.Errorf("Keys() has %d entries, want 4", got)
	}
}

func TestRegistryRejectsBadFontData(t *testing.T) {
	_, err := NewRegistry(map[string][]byte{"broken": []byte("not a font")})
	if err == nil {
		t.Fatal("expected error for unparsable font data")
	}
}

func TestRasterizeText(t *testing.T) {
	svc := testService(t)
	img, err := svc.RasterizeText("Hello", 48, KeySans)
	if err != nil {
		t.Fatalf("RasterizeText: %v", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		t.Fatalf("empty render bounds %v", b)
	}
	// Tight crop: the ink box of 48px text is far smaller than the
	// oversized canvas (advance + two line heights).
	if b.Dy() >= 3*48 {
		t.Errorf("height %d not cropped", b.Dy())
	}
	if hasInk, _ := inkBounds(img); !hasInk {
		t.Error("render carries no ink")
	}
}

func TestRasterizeTextEmpty(t *testing.T) {
	svc := testService(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := svc.RasterizeText(text, 48, KeySans); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("RasterizeText(%q) err = %v, want ErrInvalidInput", text, err)
		}
	}
}

func TestRasterizeTextBadFontSize(t *testing.T) {
	svc := testService(t)
	if _, err := svc.RasterizeText("x", 0, KeySans); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRasterizeTextUnknownFont(t *testing.T) {
	svc := testService(t)
	if _, err := svc.RasterizeText("x", 48, "comic-sans"); !errors.Is(err, domain.ErrFontNotFound) {
		t.Errorf("err = %v, want ErrFontNotFound", err)
	}
}

func TestRasterizeGlyphs(t *testing.T) {
	svc := testService(t)
	glyphs, err := svc.RasterizeGlyphs("AB", 48, KeySans)
	if err != nil {
		t.Fatalf("RasterizeGlyphs: %v", err)
	}
	if len(glyphs) != 2 {
		t.Fatalf("got %d glyphs, want 2", len(glyphs))
	}
	if glyphs[0].Char != 'A' || glyphs[1].Char != 'B' {
		t.Errorf("chars = %q %q, want A B", glyphs[0].Char, glyphs[1].Char)
	}
	for _, g := range glyphs {
		if g.Err != nil {
			t.Fatalf("glyph %q err = %v", g.Char, g.Err)
		}
		if hasInk, _ := inkBounds(g.Image); !hasInk {
			t.Errorf("glyph %q carries no ink", g.Char)
		}
	}
}

func TestRasterizeGlyphsSkipsWhitespace(t *testing.T) {
	svc := testService(t)
	glyphs, err := svc.RasterizeGlyphs("A B\tC", 48, KeySans)
	if err != nil {
		t.Fatalf("RasterizeGlyphs: %v", err)
	}
	want := []rune{'A', 'B', 'C'}
	if len(glyphs) != len(want) {
		t.Fatalf("got %d glyphs, want %d", len(glyphs), len(want))
	}
	for i, g := range glyphs {
		if g.Char != want[i] {
			t.Errorf("glyph[%d] = %q, want %q", i, g.Char, want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("ab", MaxTextLen)
	got := Truncate(long)
	if len([]rune(got)) != MaxTextLen {
		t.Errorf("len = %d, want %d", len([]rune(got)), MaxTextLen)
	}
	if short := Truncate("abc"); short != "abc" {
		t.Errorf("short input changed: %q", short)
	}
}

// inkBounds reports whether the image has any non-white pixel.
func inkBounds(img image.Image) (bool, image.Rectangle) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < 0xF000 || g < 0xF000 || bl < 0xF000 {
				return true, b
			}
		}
	}
	return false, b
}
