package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
)

// alphaThreshold is the fixed alpha cut for the foreground-isolation
// variant: pixels at least this opaque count as subject.
const alphaThreshold = 128

// Service turns arbitrary input bitmaps into binarized rasters suitable
// for tracing. It is stateless and safe for concurrent use.
type Service struct{}

// New creates a normalizer.
func New() *Service { return &Service{} }

// Normalize decodes the input and prepares it for tracing according to
// the job kind. The trim box is non-nil only for kinds that crop to the
// subject first (smart-crop and shape uploads).
func (s *Service) Normalize(data []byte, p profile.Profile, kind jobkind.Kind) (raster.Buffer, *raster.TrimBox, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return raster.Buffer{}, nil, fmt.Errorf("decode: %v: %w", err, domain.ErrDecode)
	}
	return s.NormalizeImage(img, p, kind)
}

// NormalizeImage is Normalize for an already-decoded image. The text
// pipeline uses it to feed rendered glyph bitmaps through the same steps
// an uploaded image goes through.
func (s *Service) NormalizeImage(img image.Image, p profile.Profile, kind jobkind.Kind) (raster.Buffer, *raster.TrimBox, error) {
	switch kind {
	case jobkind.BackgroundRemoval:
		return s.isolateForeground(img, p), nil, nil
	case jobkind.SmartCrop, jobkind.Shape:
		cropped, box := trimToContent(img, trimTolerance)
		return s.binarize(cropped, p), &box, nil
	default:
		return s.binarize(img, p), nil, nil
	}
}

// binarize runs the default preparation chain: flatten transparency onto
// white, fit within the max-dimension square without upscaling, convert
// to grayscale, stretch contrast, threshold.
func (s *Service) binarize(img image.Image, p profile.Profile) raster.Buffer {
	flat := flattenOnWhite(img)
	side := flat.Bounds().Dx()
	if h := flat.Bounds().Dy(); h > side {
		side = h
	}
	fitted := fitWithin(flat, side)
	gray := toGray(fitted)
	stretchContrast(gray)
	return threshold(gray, p.Threshold)
}

// isolateForeground extracts the subject for background removal. Sources
// with usable transparency are binarized directly on the alpha channel;
// anything fully opaque falls back to a best-effort silhouette where dark
// regions become foreground (the profile threshold, 200 by default, is a
// tunable heuristic, not an invariant).
func (s *Service) isolateForeground(img image.Image, p profile.Profile) raster.Buffer {
	if hasTransparency(img) {
		return alphaBinarize(img, alphaThreshold)
	}
	gray := toGray(flattenOnWhite(img))
	stretchContrast(gray)
	return threshold(gray, p.Threshold)
}

// flattenOnWhite composites the image over an opaque white background, so
// transparent regions become background, never foreground.
func flattenOnWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// fitWithin scales the image to fit inside a side*side square, preserving
// aspect ratio and never enlarging. With side equal to the larger source
// dimension this is the identity, which is the documented default.
func fitWithin(img *image.NRGBA, side int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if side <= 0 || (w <= side && h <= side) {
		return img
	}
	scale := float64(side) / float64(w)
	if s := float64(side) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// stretchContrast remaps the luminance histogram to the full 0..255 range
// in place. Flat images are left untouched.
func stretchContrast(g *image.Gray) {
	lo, hi := uint8(0xFF), uint8(0x00)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return
	}
	span := int(hi) - int(lo)
	for i, v := range g.Pix {
		g.Pix[i] = uint8((int(v) - int(lo)) * 255 / span)
	}
}

// threshold binarizes: luminance below the cut is foreground, at or above
// it is background.
func threshold(g *image.Gray, cut uint8) raster.Buffer {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	buf := raster.New(w, h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			if v < cut {
				buf.Set(x, y, raster.Foreground)
			}
		}
	}
	return buf
}

// alphaBinarize binarizes directly on the alpha channel: opaque pixels
// are foreground.
func alphaBinarize(img image.Image, cut uint8) raster.Buffer {
	b := img.Bounds()
	buf := raster.New(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if uint8(a>>8) >= cut {
				buf.Set(x-b.Min.X, y-b.Min.Y, raster.Foreground)
			}
		}
	}
	return buf
}

// hasTransparency reports whether the image carries usable alpha. A fully
// opaque image gains nothing from alpha masking even if its format has an
// alpha channel.
func hasTransparency(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
