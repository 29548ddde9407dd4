package textraster

import (
	"fmt"
	"sort"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Built-in font keys.
const (
	KeySans       = "sans"
	KeySansBold   = "sans-bold"
	KeySansItalic = "sans-italic"
	KeyMono       = "mono"
)

// Registry is the immutable font-key table, built once at process start
// and read-only afterwards.
type Registry struct {
	fonts map[string]*opentype.Font
}

// NewRegistry parses the built-in Go fonts plus any extra font files
// (TTF/OTF bytes keyed by font key). An extra entry may shadow a
// built-in key.
func NewRegistry(extra map[string][]byte) (*Registry, error) {
	builtin := map[string][]byte{
		KeySans:       goregular.TTF,
		KeySansBold:   gobold.TTF,
		KeySansItalic: goitalic.TTF,
		KeyMono:       gomono.TTF,
	}

	fonts := make(map[string]*opentype.Font, len(builtin)+len(extra))
	for key, data := range builtin {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse built-in font %q: %w", key, err)
		}
		fonts[key] = f
	}
	for key, data := range extra {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %q: %w", key, err)
		}
		fonts[key] = f
	}
	return &Registry{fonts: fonts}, nil
}

// Font looks up a parsed font by key.
func (r *Registry) Font(key string) (*opentype.Font, bool) {
	f, ok := r.fonts[key]
	return f, ok
}

// Keys returns the registered font keys in stable order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.fonts))
	for k := range r.fonts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
