package jobkind

// Kind is the conversion job kind. It selects the trace profile, the
// normalization variant, and the decomposition mode for a job.
type Kind string

// Job kind constants.
const (
	// Vectorize is the plain image-to-outline conversion.
	Vectorize Kind = "vectorize"
	// SmartCrop trims to the subject bounding box before tracing and
	// reports the crop geometry alongside the outline.
	SmartCrop Kind = "smart_crop"
	// BackgroundRemoval isolates the foreground (alpha channel when
	// present, silhouette heuristic otherwise) before tracing.
	BackgroundRemoval Kind = "background_removal"
	// Text converts rendered text glyphs.
	Text Kind = "text"
	// Shape converts an uploaded shape sketch: trim, then trace with a
	// small speckle threshold.
	Shape Kind = "shape"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Vectorize || k == SmartCrop || k == BackgroundRemoval || k == Text || k == Shape
}

// PreservesHoles reports whether outlines for this kind must keep
// multi-subpath fill-rule semantics. Glyphs and shape uploads need holes
// (the counter of an "O"); the legacy frame presets split subpaths apart
// and carry the documented hole-loss behavior.
func (k Kind) PreservesHoles() bool {
	return k == Text || k == Shape
}
