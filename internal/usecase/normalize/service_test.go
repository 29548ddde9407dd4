package normalize

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
)

func testProfile(t *testing.T, kind jobkind.Kind) profile.Profile {
	t.Helper()
	p, ok := profile.NewRegistry(nil).For(kind)
	if !ok {
		t.Fatalf("no profile for %q", kind)
	}
	return p
}

// encodePNG renders an image to PNG bytes the way an upload would arrive.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// squareOnWhite draws a black rectangle on an opaque white canvas.
func squareOnWhite(w, h int, rect image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if image.Pt(x, y).In(rect) {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestNormalizeSolidShape(t *testing.T) {
	svc := New()
	rect := image.Rect(10, 10, 40, 40)
	data := encodePNG(t, squareOnWhite(64, 64, rect))

	buf, trim, err := svc.Normalize(data, testProfile(t, jobkind.Vectorize), jobkind.Vectorize)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if trim != nil {
		t.Errorf("vectorize must not report a trim box")
	}
	if buf.Width != 64 || buf.Height != 64 {
		t.Errorf("dims = %dx%d, want 64x64 (no resize within the max square)", buf.Width, buf.Height)
	}
	want := rect.Dx() * rect.Dy()
	if got := buf.ForegroundCount(); got != want {
		t.Errorf("foreground pixels = %d, want %d", got, want)
	}
	if buf.At(0, 0) != raster.Background {
		t.Errorf("corner should be background")
	}
	if buf.At(20, 20) != raster.Foreground {
		t.Errorf("shape interior should be foreground")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	svc := New()
	data := encodePNG(t, squareOnWhite(50, 30, image.Rect(5, 5, 25, 25)))
	p := testProfile(t, jobkind.Vectorize)

	a, _, err := svc.Normalize(data, p, jobkind.Vectorize)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, _, err := svc.Normalize(data, p, jobkind.Vectorize)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("identical input produced different buffers")
	}
}

func TestNormalizeCorruptInput(t *testing.T) {
	svc := New()
	_, _, err := svc.Normalize([]byte("not an image"), testProfile(t, jobkind.Vectorize), jobkind.Vectorize)
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestNormalizeTransparentBecomesBackground(t *testing.T) {
	svc := New()
	// Fully transparent canvas with one opaque black square: after
	// flattening on white, only the square is foreground.
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 8; y < 16; y++ {
		for x := 8; x < 16; x++ {
			img.Set(x, y, color.NRGBA{A: 0xFF})
		}
	}
	buf, _, err := svc.Normalize(encodePNG(t, img), testProfile(t, jobkind.Vectorize), jobkind.Vectorize)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := buf.ForegroundCount(); got != 64 {
		t.Errorf("foreground pixels = %d, want 64", got)
	}
	if buf.At(0, 0) != raster.Background {
		t.Error("transparent region must flatten to background")
	}
}

func TestNormalizeSmartCropReportsTrimBox(t *testing.T) {
	svc := New()
	rect := image.Rect(10, 20, 30, 50)
	data := encodePNG(t, squareOnWhite(100, 100, rect))

	buf, trim, err := svc.Normalize(data, testProfile(t, jobkind.SmartCrop), jobkind.SmartCrop)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if trim == nil {
		t.Fatal("smart crop must report a trim box")
	}
	want := raster.TrimBox{
		OriginalWidth: 100, OriginalHeight: 100,
		TrimmedWidth: 20, TrimmedHeight: 30,
		OffsetX: 10, OffsetY: 20,
	}
	if *trim != want {
		t.Errorf("trim box = %+v, want %+v", *trim, want)
	}
	if buf.Width != 20 || buf.Height != 30 {
		t.Errorf("dims = %dx%d, want 20x30", buf.Width, buf.Height)
	}
}

func TestNormalizeSmartCropBlankImage(t *testing.T) {
	svc := New()
	data := encodePNG(t, squareOnWhite(40, 40, image.Rectangle{}))

	buf, trim, err := svc.Normalize(data, testProfile(t, jobkind.SmartCrop), jobkind.SmartCrop)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if trim == nil || trim.TrimmedWidth != 40 || trim.TrimmedHeight != 40 {
		t.Errorf("blank image should keep full bounds, got %+v", trim)
	}
	if buf.ForegroundCount() != 0 {
		t.Errorf("blank image produced %d foreground pixels", buf.ForegroundCount())
	}
}

func TestNormalizeBackgroundRemovalAlpha(t *testing.T) {
	svc := New()
	// Opaque red blob on transparency: the alpha channel decides, color
	// does not.
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.NRGBA{R: 0xFF, A: 0xFF})
		}
	}
	buf, _, err := svc.Normalize(encodePNG(t, img), testProfile(t, jobkind.BackgroundRemoval), jobkind.BackgroundRemoval)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := buf.ForegroundCount(); got != 100 {
		t.Errorf("foreground pixels = %d, want 100 (opaque region)", got)
	}
}

func TestNormalizeBackgroundRemovalOpaqueFallback(t *testing.T) {
	svc := New()
	// No alpha anywhere: fall back to the silhouette heuristic where
	// dark regions become foreground.
	rect := image.Rect(4, 4, 12, 12)
	buf, _, err := svc.Normalize(encodePNG(t, squareOnWhite(16, 16, rect)), testProfile(t, jobkind.BackgroundRemoval), jobkind.BackgroundRemoval)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if buf.At(8, 8) != raster.Foreground {
		t.Error("dark region should be foreground in the fallback")
	}
	if buf.At(0, 0) != raster.Background {
		t.Error("light region should be background in the fallback")
	}
}

func TestFitWithinDownscalesOnly(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	if got := fitWithin(src, 100); got != src {
		t.Error("fitting within the max dimension must be the identity")
	}
	down := fitWithin(src, 50)
	if down.Bounds().Dx() != 50 || down.Bounds().Dy() != 25 {
		t.Errorf("downscale = %v, want 50x25", down.Bounds())
	}
}

func TestStretchContrast(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	copy(g.Pix, []uint8{100, 150, 200})
	stretchContrast(g)
	if g.Pix[0] != 0 || g.Pix[2] != 255 {
		t.Errorf("stretched = %v, want full range", g.Pix)
	}

	flat := image.NewGray(image.Rect(0, 0, 2, 1))
	copy(flat.Pix, []uint8{80, 80})
	stretchContrast(flat)
	if flat.Pix[0] != 80 {
		t.Errorf("flat histogram must be untouched, got %v", flat.Pix)
	}
}
