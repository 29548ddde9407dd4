package profile

import (
	"sort"

	"github.com/framery/outliner/internal/domain/jobkind"
)

// Profile is a named bundle of tracing and binarization parameters.
// Profiles are immutable; the well-known ones differ only in
// MinContourArea and Threshold.
type Profile struct {
	// Name is the job kind the profile serves.
	Name jobkind.Kind
	// MinContourArea suppresses speckle contours below this pixel area.
	MinContourArea int
	// OptimizeCurves requests smoother curve fitting from the tracer.
	OptimizeCurves bool
	// Threshold is the binarization cut in 0..255. It is handed to the
	// tracer unchanged so the engine's own threshold matches the raster's.
	Threshold uint8
	// FillTag and BackgroundTag only affect presentational metadata in the
	// traced document, never geometry.
	FillTag       string
	BackgroundTag string
}

// Override adjusts a built-in profile's tunable values from config.
type Override struct {
	MinContourArea *int
	Threshold      *int
}

// Registry is the immutable job-kind to profile table, built once at
// process start and never mutated afterwards.
type Registry struct {
	profiles map[jobkind.Kind]Profile
}

// builtins returns the well-known profile table.
func builtins() map[jobkind.Kind]Profile {
	base := Profile{
		OptimizeCurves: true,
		FillTag:        "black",
		BackgroundTag:  "white",
	}
	mk := func(kind jobkind.Kind, minArea int, threshold uint8) Profile {
		p := base
		p.Name = kind
		p.MinContourArea = minArea
		p.Threshold = threshold
		return p
	}
	return map[jobkind.Kind]Profile{
		jobkind.Vectorize:         mk(jobkind.Vectorize, 64, 128),
		jobkind.SmartCrop:         mk(jobkind.SmartCrop, 32, 128),
		jobkind.BackgroundRemoval: mk(jobkind.BackgroundRemoval, 48, 200),
		// Text and shape need fine detail, so the speckle cut is small.
		jobkind.Text:  mk(jobkind.Text, 8, 128),
		jobkind.Shape: mk(jobkind.Shape, 16, 128),
	}
}

// NewRegistry builds the registry from the built-in table plus optional
// per-kind overrides. Overrides for unknown kinds are ignored.
func NewRegistry(overrides map[jobkind.Kind]Override) *Registry {
	profiles := builtins()
	for kind, o := range overrides {
		p, ok := profiles[kind]
		if !ok {
			continue
		}
		if o.MinContourArea != nil && *o.MinContourArea >= 0 {
			p.MinContourArea = *o.MinContourArea
		}
		if o.Threshold != nil && *o.Threshold >= 0 && *o.Threshold <= 255 {
			p.Threshold = uint8(*o.Threshold)
		}
		profiles[kind] = p
	}
	return &Registry{profiles: profiles}
}

// For returns the profile for the given job kind.
func (r *Registry) For(kind jobkind.Kind) (Profile, bool) {
	p, ok := r.profiles[kind]
	return p, ok
}

// Kinds returns the registered job kinds in stable order.
func (r *Registry) Kinds() []jobkind.Kind {
	kinds := make([]jobkind.Kind, 0, len(r.profiles))
	for k := range r.profiles {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
