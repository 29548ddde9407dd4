package convert

import (
	"context"
	"image"

	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/outline"
	"github.com/framery/outliner/internal/domain/profile"
	"github.com/framery/outliner/internal/domain/raster"
)

// Normalizer prepares input bitmaps for tracing.
type Normalizer interface {
	Normalize(data []byte, p profile.Profile, kind jobkind.Kind) (raster.Buffer, *raster.TrimBox, error)
	NormalizeImage(img image.Image, p profile.Profile, kind jobkind.Kind) (raster.Buffer, *raster.TrimBox, error)
}

// TextRasterizer renders text strings into bitmaps. RasterizeGlyphs
// reports a single character's render failure on that glyph's Err
// instead of failing the call; only input and font problems are
// call-level errors.
type TextRasterizer interface {
	RasterizeText(text string, fontSize float64, fontKey string) (image.Image, error)
	RasterizeGlyphs(text string, fontSize float64, fontKey string) ([]raster.Glyph, error)
}

// Tracer is the external contour-tracing engine: binarized raster in,
// vector document out. A single blocking call; no concurrency guarantees
// are assumed beyond non-overlapping buffers.
type Tracer interface {
	Trace(ctx context.Context, buf raster.Buffer, p profile.Profile) ([]byte, error)
}

// Decomposer canonicalizes a traced document into bounded path records.
type Decomposer interface {
	Decompose(doc []byte, mode outline.Mode, recordCap int) ([]outline.PathRecord, outline.ViewBox, error)
}
