package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/chai2010/webp"
	"github.com/disintegration/imageorient"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Resampling filters accepted by NewImaging.
const (
	FilterLanczos        = "lanczos"
	FilterCatmullRom     = "catmullrom"
	FilterBilinear       = "bilinear"
	FilterApproxBilinear = "approx-bilinear"
)

// Imaging is the production Backend: registered Go decoders with EXIF
// orientation, imaging/x-image resampling and the encoder registry.
type Imaging struct {
	registry *encoder.Registry
	filter   string
	log      zerolog.Logger
}

// ImagingOption configures an Imaging backend.
type ImagingOption func(*Imaging)

// WithFilter selects the resampling filter. Unknown names keep the default.
func WithFilter(name string) ImagingOption {
	return func(b *Imaging) {
		if ValidFilter(name) {
			b.filter = strings.ToLower(name)
		}
	}
}

// WithRegistry replaces the encoder registry.
func WithRegistry(r *encoder.Registry) ImagingOption {
	return func(b *Imaging) { b.registry = r }
}

// WithLogger attaches a logger for per-step debug output.
func WithLogger(l zerolog.Logger) ImagingOption {
	return func(b *Imaging) { b.log = l }
}

// NewImaging returns a backend using Lanczos resampling and every available encoder.
func NewImaging(opts ...ImagingOption) *Imaging {
	b := &Imaging{filter: FilterLanczos, log: zerolog.Nop()}
	for _, o := range opts {
		o(b)
	}
	if b.registry == nil {
		b.registry = encoder.NewRegistry()
	}
	return b
}

// ValidFilter reports whether name is a known resampling filter.
func ValidFilter(name string) bool {
	switch strings.ToLower(name) {
	case FilterLanczos, FilterCatmullRom, FilterBilinear, FilterApproxBilinear:
		return true
	}
	return false
}

// Formats lists the encode formats the registry can produce.
func (b *Imaging) Formats() []string { return b.registry.Available() }

// Filter returns the configured resampling filter name.
func (b *Imaging) Filter() string { return b.filter }

func (b *Imaging) Decode(ctx context.Context, data []byte) (*image.NRGBA, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: errors.New("empty input")}
	}

	start := time.Now()
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, "", &DecodeError{Err: fmt.Errorf("not an image (detected %s)", mime.String())}
	}

	img, format, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		// The x/image webp decoder only handles a subset of lossless/alpha files.
		wimg, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, "", &DecodeError{Err: err}
		}
		img, format = wimg, "webp"
	}

	out := imaging.Clone(img)
	if out.Bounds().Empty() {
		return nil, "", &DecodeError{Err: errors.New("image has no pixels")}
	}

	b.log.Debug().
		Str("step", "decode").
		Str("format", format).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Dur("duration", time.Since(start)).
		Msg("decoded")
	return out, encoder.Normalize(format), nil
}

func (b *Imaging) Resize(ctx context.Context, img *image.NRGBA, w, h int) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckBuffer("resize", img); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, &InvalidBufferError{Op: "resize", Want: 1, Got: w * h}
	}

	start := time.Now()
	var out *image.NRGBA
	switch b.filter {
	case FilterCatmullRom:
		out = imaging.Resize(img, w, h, imaging.CatmullRom)
	case FilterBilinear:
		out = scaleX(xdraw.BiLinear, img, w, h)
	case FilterApproxBilinear:
		out = scaleX(xdraw.ApproxBiLinear, img, w, h)
	default:
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	b.log.Debug().
		Str("step", "resize").
		Str("filter", b.filter).
		Int("from_w", img.Bounds().Dx()).
		Int("from_h", img.Bounds().Dy()).
		Int("to_w", w).
		Int("to_h", h).
		Dur("duration", time.Since(start)).
		Msg("resized")
	return out, nil
}

func (b *Imaging) Encode(ctx context.Context, img *image.NRGBA, format string, quality int) ([]byte, error) {
	if err := CheckBuffer("encode", img); err != nil {
		return nil, err
	}
	enc := b.registry.Get(format)
	if enc == nil {
		return nil, &UnsupportedFormatError{Format: format}
	}

	start := time.Now()
	data, err := enc.Encode(ctx, img, encoder.ClampQuality(quality))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", enc.Format(), err)
	}

	b.log.Debug().
		Str("step", "encode").
		Str("format", enc.Format()).
		Int("quality", quality).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("encoded")
	return data, nil
}

func scaleX(s xdraw.Scaler, img *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	s.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
