package pipeline

import (
	"image"

	"github.com/AnyUserName/platepix/internal/dimension"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/AnyUserName/platepix/internal/variant"
)

// UnknownSize marks an original whose encoded size is not known, as for a
// caller-supplied pixel buffer.
const UnknownSize int64 = -1

// Original describes the input of an optimization.
type Original struct {
	Kind     string `json:"kind"`
	Location string `json:"location,omitempty"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int64  `json:"size"`
	HasAlpha bool   `json:"has_alpha"`
}

// Metadata describes the optimized output.
type Metadata struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	SizeBytes   int64   `json:"size_bytes"`
	AspectRatio float64 `json:"aspect_ratio"`
}

func newMetadata(e *raster.Encoded) Metadata {
	return Metadata{
		Width:       e.Width,
		Height:      e.Height,
		Format:      e.Format,
		SizeBytes:   e.Size(),
		AspectRatio: dimension.AspectRatio(e.Width, e.Height),
	}
}

// Result is the outcome of one Optimize call.
type Result struct {
	Original         Original        `json:"original"`
	Optimized        *raster.Encoded `json:"optimized"`
	Metadata         Metadata        `json:"metadata"`
	CompressionRatio float64         `json:"compression_ratio"`
	Variants         *variant.Set    `json:"variants,omitempty"`

	BlurHash    string          `json:"blurhash"`
	AvgColor    [3]uint8        `json:"avg_color"`
	Placeholder *raster.Encoded `json:"placeholder,omitempty"`
	Preview     *raster.Encoded `json:"preview,omitempty"`

	// VariantErr holds the joined failures when variants ran best-effort.
	VariantErr error `json:"-"`

	decoded *image.NRGBA
}

// Decoded returns the full-resolution source buffer the result was built from.
func (r *Result) Decoded() *image.NRGBA { return r.decoded }

// compressionRatio is original/optimized, or 1 when either side is unknown.
func compressionRatio(original, optimized int64) float64 {
	if original < 0 || optimized <= 0 {
		return 1
	}
	return float64(original) / float64(optimized)
}

func newOriginal(src source.Source, format string, img *image.NRGBA, size int64) Original {
	b := img.Bounds()
	return Original{
		Kind:     src.Kind.String(),
		Location: src.Location,
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Size:     size,
		HasAlpha: !img.Opaque(),
	}
}
