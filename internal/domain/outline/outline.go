package outline

import (
	"fmt"

	"github.com/framery/outliner/internal/domain/raster"
)

// PathRecord is one canonical, emittable path-data string. Depending on
// the decomposition mode it is either a single closed subpath or a
// compound path holding several subpaths (to represent holes).
type PathRecord string

// Mode selects how a traced document is decomposed into path records.
type Mode string

// Decomposition modes.
const (
	// Flatten splits every path-data string into one record per subpath.
	// This destroys the nested-subpath relationship that represents a
	// hole: an "O" becomes two disjoint filled shapes instead of a ring.
	// Kept for the legacy frame presets that expect it.
	Flatten Mode = "flatten"
	// Compound keeps each path-data string as one record verbatim,
	// preserving multi-subpath fill-rule semantics (holes).
	Compound Mode = "compound"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool { return m == Flatten || m == Compound }

// ViewBox is the coordinate frame the path data is expressed in.
type ViewBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// DefaultViewBox is the canonical frame substituted when a traced
// document carries no parsable bounding-box declaration.
func DefaultViewBox() ViewBox {
	return ViewBox{Left: 0, Top: 0, Width: 1000, Height: 1000}
}

// String renders the four-number form used in vector documents.
func (v ViewBox) String() string {
	return fmt.Sprintf("%g %g %g %g", v.Left, v.Top, v.Width, v.Height)
}

// Outline is the result of one conversion: bounded path records plus the
// frame they live in. Immutable once produced.
type Outline struct {
	Paths   []PathRecord
	ViewBox ViewBox
	// Trim is set only for subject auto-crop conversions.
	Trim *raster.TrimBox
}
