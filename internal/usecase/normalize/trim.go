package normalize

import (
	"image"
	"image/draw"

	"github.com/framery/outliner/internal/domain/raster"
)

// trimTolerance is the per-channel slack when deciding whether a pixel is
// background, so anti-aliased edges are not mis-cropped.
const trimTolerance = 8

// trimToContent crops the image to the tight bounding box of
// non-background content. Background is white or transparent within the
// tolerance. A blank image is returned unchanged with a full-size box.
func trimToContent(img image.Image, tol uint8) (image.Image, raster.TrimBox) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isContent(img, x, y, tol) {
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

	box := raster.TrimBox{
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
	}
	if maxX < minX {
		box.TrimmedWidth = b.Dx()
		box.TrimmedHeight = b.Dy()
		return img, box
	}

	r := image.Rect(minX, minY, maxX+1, maxY+1)
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)

	box.TrimmedWidth = r.Dx()
	box.TrimmedHeight = r.Dy()
	box.OffsetX = r.Min.X - b.Min.X
	box.OffsetY = r.Min.Y - b.Min.Y
	return dst, box
}

func isContent(img image.Image, x, y int, tol uint8) bool {
	r, g, b, a := img.At(x, y).RGBA()
	if a <= uint32(tol)*257 {
		return false
	}
	lim := uint32(255-tol) * 257
	return r < lim || g < lim || b < lim
}
