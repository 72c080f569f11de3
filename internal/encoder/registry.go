package encoder

import (
	"fmt"
	"strings"
)

// priority is the order formats are reported in.
var priority = []string{"avif", "webp", "jpeg", "png"}

// Registry holds the available encoders keyed by format.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry probes the given encoders and keeps the available ones.
// With no arguments it probes every built-in encoder.
func NewRegistry(all ...Encoder) *Registry {
	if len(all) == 0 {
		all = []Encoder{
			&AVIFEncoder{},
			&WebPEncoder{},
			&JPEGEncoder{},
			&PNGEncoder{},
		}
	}

	r := &Registry{encoders: make(map[string]Encoder)}
	for _, enc := range all {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	return r
}

// Get returns an encoder for the given format, or nil if unavailable.
// "jpg" is accepted as an alias of "jpeg".
func (r *Registry) Get(format string) Encoder {
	return r.encoders[Normalize(format)]
}

// Available returns all available format names in priority order.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range priority {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}

// Normalize lower-cases a format name and folds aliases.
func Normalize(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

// Known reports whether format is one of the output formats the pipeline
// accepts, regardless of whether it is available here.
func Known(format string) bool {
	switch Normalize(format) {
	case "webp", "jpeg", "png", "avif":
		return true
	}
	return false
}

// Extension returns the file extension for a format name.
func Extension(format string) string {
	if f := Normalize(format); f != "jpeg" {
		return f
	}
	return "jpg"
}
