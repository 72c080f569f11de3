package pipeline

import (
	"fmt"
	"time"

	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/AnyUserName/platepix/internal/raster"
)

// Defaults applied by DefaultOptions.
const (
	DefaultQuality   = 85
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1920
	DefaultFormat    = "webp"
)

// Options controls one optimization. It is a value: setters return
// modified copies and Optimize never changes the caller's Options.
type Options struct {
	Quality     int           `json:"quality"`
	MaxWidth    int           `json:"max_width"`
	MaxHeight   int           `json:"max_height"`
	Format      string        `json:"format"`
	Progressive bool          `json:"progressive"`
	Variants    bool          `json:"variants"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// DefaultOptions returns quality 85, a 1920×1920 box, webp and progressive
// assets on. Variants are opt-in.
func DefaultOptions() Options {
	return Options{
		Quality:     DefaultQuality,
		MaxWidth:    DefaultMaxWidth,
		MaxHeight:   DefaultMaxHeight,
		Format:      DefaultFormat,
		Progressive: true,
	}
}

// Option modifies Options.
type Option func(*Options)

func WithQuality(q int) Option { return func(o *Options) { o.Quality = q } }

// WithMaxSize sets the bounding box. Non-positive sides fall back to the
// defaults on Normalize.
func WithMaxSize(w, h int) Option {
	return func(o *Options) { o.MaxWidth, o.MaxHeight = w, h }
}

func WithFormat(format string) Option { return func(o *Options) { o.Format = format } }

func WithProgressive(on bool) Option { return func(o *Options) { o.Progressive = on } }

func WithVariants(on bool) Option { return func(o *Options) { o.Variants = on } }

// WithTimeout bounds a whole Optimize call; 0 means no deadline beyond ctx.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// NewOptions applies opts to DefaultOptions and normalizes the result.
func NewOptions(opts ...Option) (Options, error) {
	return DefaultOptions().With(opts...)
}

// With returns a normalized copy of o with opts applied.
func (o Options) With(opts ...Option) (Options, error) {
	for _, fn := range opts {
		fn(&o)
	}
	return o.Normalize()
}

// Normalize clamps quality to [0,100], restores default box sides and
// folds format aliases. An unknown format is an UnsupportedFormatError.
func (o Options) Normalize() (Options, error) {
	o.Quality = encoder.ClampQuality(o.Quality)
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxHeight
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	o.Format = encoder.Normalize(o.Format)
	if !encoder.Known(o.Format) {
		return o, &raster.UnsupportedFormatError{Format: o.Format}
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	return o, nil
}

func (o Options) String() string {
	return fmt.Sprintf("%s q%d max %dx%d", o.Format, o.Quality, o.MaxWidth, o.MaxHeight)
}
