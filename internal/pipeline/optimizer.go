// Package pipeline turns a food photo into a size-bounded, sharpened encoding
// plus metadata, and runs that over whole directories in batch mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/AnyUserName/platepix/internal/dimension"
	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/AnyUserName/platepix/internal/placeholder"
	"github.com/AnyUserName/platepix/internal/progressive"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/sharpen"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/AnyUserName/platepix/internal/variant"
	"github.com/rs/zerolog"
)

// Optimizer runs the single-image pipeline against one backend. It holds no
// per-call state and is safe for concurrent use.
type Optimizer struct {
	backend raster.Backend
	loader  source.Loader
	log     zerolog.Logger
	partial bool
	sigma   float32
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithLogger attaches a logger; stages are logged at debug level.
func WithLogger(l zerolog.Logger) OptimizerOption {
	return func(o *Optimizer) { o.log = l }
}

// WithFetcher sets the HTTP fetcher used for URL sources.
func WithFetcher(f *source.Fetcher) OptimizerOption {
	return func(o *Optimizer) { o.loader.Fetcher = f }
}

// WithPartialVariants makes variant generation best-effort.
func WithPartialVariants(on bool) OptimizerOption {
	return func(o *Optimizer) { o.partial = on }
}

// WithBlur sets the placeholder blur sigma.
func WithBlur(sigma float32) OptimizerOption {
	return func(o *Optimizer) { o.sigma = sigma }
}

// NewOptimizer returns an Optimizer drawing through backend.
func NewOptimizer(backend raster.Backend, opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		backend: backend,
		log:     zerolog.Nop(),
		sigma:   placeholder.DefaultSigma,
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Backend returns the rasterizer the optimizer draws through.
func (o *Optimizer) Backend() raster.Backend { return o.backend }

// Optimize loads src, fits it into the options' box, sharpens it when wide
// enough, encodes it and derives metadata. Variants and blur-up assets are
// attached when the options ask for them. Stages run strictly in order.
func (o *Optimizer) Optimize(ctx context.Context, src source.Source, opts Options) (*Result, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if o.backend == nil {
		return nil, &raster.DecodeError{Source: src.String(), Err: &raster.NoRenderingSurfaceError{Op: "optimize"}}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	log := o.log.With().Str("source", src.String()).Logger()
	start := time.Now()

	t := time.Now()
	data, err := o.loader.Bytes(ctx, src)
	if err != nil {
		return nil, err
	}
	stage(log, "load", t)

	t = time.Now()
	img, format, size, err := o.decode(ctx, src, data)
	if err != nil {
		return nil, err
	}
	stage(log, "decode", t)

	res := &Result{
		Original: newOriginal(src, format, img, size),
		decoded:  img,
	}

	b := img.Bounds()
	w, h := dimension.Fit(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)

	t = time.Now()
	resized, err := o.backend.Resize(ctx, img, w, h)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	stage(log, "resize", t)

	t = time.Now()
	resized, sharpened, err := sharpen.MaybeApply(resized)
	if err != nil {
		return nil, fmt.Errorf("sharpen: %w", err)
	}
	if sharpened {
		stage(log, "sharpen", t)
	}

	t = time.Now()
	out, err := o.backend.Encode(ctx, resized, opts.Format, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	stage(log, "encode", t)

	res.Optimized = &raster.Encoded{Format: opts.Format, Width: w, Height: h, Quality: opts.Quality, Data: out}
	res.Metadata = newMetadata(res.Optimized)
	res.CompressionRatio = compressionRatio(size, res.Optimized.Size())

	if opts.Variants {
		t = time.Now()
		set, err := variant.Generate(ctx, o.backend, img, opts.MaxWidth, opts.MaxHeight, variant.WithPartial(o.partial))
		if err != nil && !o.partial {
			return nil, err
		}
		res.Variants, res.VariantErr = set, err
		stage(log, "variants", t)
	}

	if opts.Progressive {
		t = time.Now()
		if res.Placeholder, err = progressive.RenderPlaceholder(ctx, o.backend, img, o.sigma); err != nil {
			return nil, fmt.Errorf("placeholder: %w", err)
		}
		if res.Preview, err = variant.Render(ctx, o.backend, img, progressive.PreviewTarget); err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
		stage(log, "progressive", t)
	}

	t = time.Now()
	if res.BlurHash, err = placeholder.Hash(img); err != nil {
		return nil, err
	}
	res.AvgColor = placeholder.AvgColor(img)
	stage(log, "blurhash", t)

	log.Debug().
		Str("step", "optimize").
		Str("output", opts.String()).
		Int("width", w).
		Int("height", h).
		Int64("size", res.Metadata.SizeBytes).
		Float64("ratio", res.CompressionRatio).
		Dur("duration", time.Since(start)).
		Msg("optimized")
	return res, nil
}

// decode rasterizes data, or validates the caller's buffer for pixel sources.
func (o *Optimizer) decode(ctx context.Context, src source.Source, data []byte) (*image.NRGBA, string, int64, error) {
	if src.Kind == source.KindPixels {
		if err := raster.CheckBuffer("decode", src.Pixels); err != nil {
			return nil, "", 0, err
		}
		return src.Pixels, "pixels", UnknownSize, nil
	}
	img, format, err := o.backend.Decode(ctx, data)
	if err != nil {
		var de *raster.DecodeError
		if errors.As(err, &de) && de.Source == "" {
			de.Source = src.String()
		}
		return nil, "", 0, err
	}
	return img, format, int64(len(data)), nil
}

// ResizeEncode draws img into a w×h buffer and encodes it. A missing backend
// or buffer is a DecodeError wrapping NoRenderingSurfaceError.
func ResizeEncode(ctx context.Context, backend raster.Backend, img *image.NRGBA, w, h int, format string, quality int) (*raster.Encoded, error) {
	if backend == nil {
		return nil, &raster.DecodeError{Err: &raster.NoRenderingSurfaceError{Op: "resize"}}
	}
	if err := raster.CheckBuffer("resize", img); err != nil {
		if errors.Is(err, raster.ErrNoRenderingSurface) {
			return nil, &raster.DecodeError{Err: err}
		}
		return nil, err
	}
	quality = encoder.ClampQuality(quality)
	resized, err := backend.Resize(ctx, img, w, h)
	if err != nil {
		return nil, err
	}
	data, err := backend.Encode(ctx, resized, format, quality)
	if err != nil {
		return nil, err
	}
	return &raster.Encoded{Format: format, Width: w, Height: h, Quality: quality, Data: data}, nil
}

func stage(log zerolog.Logger, step string, start time.Time) {
	log.Debug().Str("step", step).Dur("duration", time.Since(start)).Msg("stage done")
}
