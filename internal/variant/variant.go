// Package variant renders the thumbnail/medium/large encodings of a photo.
//
// Every variant is resized from the decoded source, never from another
// variant, so resampling artifacts do not compound.
package variant

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/AnyUserName/platepix/internal/dimension"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/sharpen"
	"golang.org/x/sync/errgroup"
)

// Name identifies a variant.
type Name string

const (
	Thumbnail Name = "thumbnail"
	Medium    Name = "medium"
	Large     Name = "large"
)

// Target is one variant's box, quality and format. A zero box means "use the
// configured max size".
type Target struct {
	Name    Name
	MaxW    int
	MaxH    int
	Quality int
	Format  string
}

// Presets are the three standard variants.
var Presets = []Target{
	{Name: Thumbnail, MaxW: 300, MaxH: 300, Quality: 80, Format: "webp"},
	{Name: Medium, MaxW: 800, MaxH: 800, Quality: 85, Format: "webp"},
	{Name: Large, Quality: 90, Format: "webp"},
}

// Set holds the rendered variants. In partial mode a failed variant is nil.
type Set struct {
	Thumbnail *raster.Encoded `json:"thumbnail,omitempty"`
	Medium    *raster.Encoded `json:"medium,omitempty"`
	Large     *raster.Encoded `json:"large,omitempty"`
}

// Get returns the variant by name.
func (s *Set) Get(n Name) *raster.Encoded {
	switch n {
	case Thumbnail:
		return s.Thumbnail
	case Medium:
		return s.Medium
	case Large:
		return s.Large
	}
	return nil
}

func (s *Set) put(n Name, e *raster.Encoded) {
	switch n {
	case Thumbnail:
		s.Thumbnail = e
	case Medium:
		s.Medium = e
	case Large:
		s.Large = e
	}
}

// Each calls fn for every present variant in preset order.
func (s *Set) Each(fn func(Name, *raster.Encoded)) {
	for _, p := range Presets {
		if e := s.Get(p.Name); e != nil {
			fn(p.Name, e)
		}
	}
}

type config struct {
	format  string
	partial bool
}

// Option configures Generate.
type Option func(*config)

// WithFormat overrides the preset format for every variant.
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithPartial switches to best-effort: failed variants are left nil and their
// errors are joined into the returned error alongside the partial Set.
func WithPartial(partial bool) Option {
	return func(c *config) { c.partial = partial }
}

// Generate renders every preset from img. By default any single failure fails
// the whole call and cancels the remaining variants.
func Generate(ctx context.Context, backend raster.Backend, img *image.NRGBA, maxW, maxH int, opts ...Option) (*Set, error) {
	if err := raster.CheckBuffer("variants", img); err != nil {
		return nil, err
	}
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	targets := make([]Target, len(Presets))
	copy(targets, Presets)
	for i := range targets {
		if targets[i].MaxW == 0 {
			targets[i].MaxW, targets[i].MaxH = maxW, maxH
		}
		if cfg.format != "" {
			targets[i].Format = cfg.format
		}
	}

	if cfg.partial {
		return generatePartial(ctx, backend, img, targets)
	}

	set := &Set{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			enc, err := Render(gctx, backend, img, target)
			if err != nil {
				return fmt.Errorf("%s variant: %w", target.Name, err)
			}
			mu.Lock()
			set.put(target.Name, enc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

func generatePartial(ctx context.Context, backend raster.Backend, img *image.NRGBA, targets []Target) (*Set, error) {
	set := &Set{}
	errs := make([]error, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			enc, err := Render(ctx, backend, img, target)
			if err != nil {
				errs[i] = fmt.Errorf("%s variant: %w", target.Name, err)
				return nil
			}
			mu.Lock()
			set.put(target.Name, enc)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return set, errors.Join(errs...)
}

// Render runs Fit, Resize, conditional sharpening and Encode for one target.
func Render(ctx context.Context, backend raster.Backend, img *image.NRGBA, target Target) (*raster.Encoded, error) {
	b := img.Bounds()
	w, h := dimension.Fit(b.Dx(), b.Dy(), target.MaxW, target.MaxH)

	resized, err := backend.Resize(ctx, img, w, h)
	if err != nil {
		return nil, err
	}
	resized, _, err = sharpen.MaybeApply(resized)
	if err != nil {
		return nil, err
	}
	data, err := backend.Encode(ctx, resized, target.Format, target.Quality)
	if err != nil {
		return nil, err
	}
	return &raster.Encoded{
		Format:  target.Format,
		Width:   w,
		Height:  h,
		Quality: target.Quality,
		Data:    data,
	}, nil
}
