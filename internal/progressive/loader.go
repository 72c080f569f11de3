// Package progressive drives blur-up loading of remote photos: a blurred
// placeholder first, then a low-quality preview, then the full image.
package progressive

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/AnyUserName/platepix/internal/dimension"
	"github.com/AnyUserName/platepix/internal/placeholder"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/variant"
	"github.com/rs/zerolog"
)

// Stage is a load state. Stages only move forward.
type Stage int

const (
	Placeholder Stage = iota
	LowQuality
	HighQuality
	Done
)

func (s Stage) String() string {
	switch s {
	case Placeholder:
		return "placeholder"
	case LowQuality:
		return "low-quality"
	case HighQuality:
		return "high-quality"
	case Done:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Frame sizes for the blur-up stages.
var (
	PlaceholderTarget = variant.Target{Name: "placeholder", MaxW: 20, MaxH: 20, Quality: 10, Format: "jpeg"}
	PreviewTarget     = variant.Target{Name: "preview", MaxW: 100, MaxH: 100, Quality: 30, Format: "jpeg"}
)

// Event is emitted on every stage change.
type Event struct {
	URL   string
	Stage Stage
	// Frame is the encoded placeholder or preview for those stages.
	Frame *raster.Encoded
	// Image is the full-resolution buffer from HighQuality on.
	Image *image.NRGBA
}

// Loaded is the outcome of a finished load.
type Loaded struct {
	URL         string
	Image       *image.NRGBA
	Format      string
	Size        int64
	Placeholder *raster.Encoded
	Preview     *raster.Encoded
	// Cached is true when the load short-circuited on the cache.
	Cached bool
}

// Fetcher returns the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Loader runs progressive loads against a shared Cache.
type Loader struct {
	backend     raster.Backend
	fetcher     Fetcher
	cache       *Cache
	log         zerolog.Logger
	sigma       float32
	concurrency int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option { return func(ld *Loader) { ld.log = l } }

// WithBlur sets the placeholder blur sigma; 0 disables the blur.
func WithBlur(sigma float32) Option { return func(ld *Loader) { ld.sigma = sigma } }

// WithConcurrency bounds Preload parallelism; <=0 means unbounded.
func WithConcurrency(n int) Option { return func(ld *Loader) { ld.concurrency = n } }

// New returns a Loader. A nil cache gets a private one.
func New(backend raster.Backend, fetcher Fetcher, cache *Cache, opts ...Option) *Loader {
	if cache == nil {
		cache = NewCache()
	}
	l := &Loader{
		backend:     backend,
		fetcher:     fetcher,
		cache:       cache,
		log:         zerolog.Nop(),
		sigma:       placeholder.DefaultSigma,
		concurrency: 4,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Cache returns the loader's cache.
func (l *Loader) Cache() *Cache { return l.cache }

// Request is one load's state machine.
type Request struct {
	loader *Loader
	url    string

	mu      sync.Mutex
	state   Stage
	emitted []Stage
}

// Start creates a request in the Placeholder state without running it.
func (l *Loader) Start(url string) *Request {
	return &Request{loader: l, url: url, state: Placeholder}
}

// Load runs a request to completion. notify may be nil.
func (l *Loader) Load(ctx context.Context, url string, notify func(Event)) (*Loaded, error) {
	return l.Start(url).Run(ctx, notify)
}

// State returns the current stage.
func (r *Request) State() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stages returns every stage emitted so far, in order.
func (r *Request) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Stage(nil), r.emitted...)
}

func (r *Request) emit(notify func(Event), ev Event) {
	r.mu.Lock()
	if ev.Stage < r.state || (len(r.emitted) > 0 && ev.Stage <= r.emitted[len(r.emitted)-1]) {
		r.mu.Unlock()
		panic(fmt.Sprintf("progressive: stage %s after %s", ev.Stage, r.state))
	}
	r.state = ev.Stage
	r.emitted = append(r.emitted, ev.Stage)
	r.mu.Unlock()

	ev.URL = r.url
	r.loader.log.Debug().Str("url", r.url).Str("stage", ev.Stage.String()).Msg("stage")
	if notify != nil {
		notify(ev)
	}
}

// Run executes the load. The cache is written only after every stage
// succeeded, so a canceled or failed load leaves no trace.
func (r *Request) Run(ctx context.Context, notify func(Event)) (*Loaded, error) {
	l := r.loader
	if hit, ok := l.cache.Get(r.url); ok {
		out := *hit
		out.Cached = true
		r.emit(notify, Event{Stage: Done, Image: out.Image})
		return &out, nil
	}

	start := time.Now()
	data, err := l.fetcher.Fetch(ctx, r.url)
	if err != nil {
		return nil, err
	}
	src, format, err := l.backend.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	ph, err := RenderPlaceholder(ctx, l.backend, src, l.sigma)
	if err != nil {
		return nil, fmt.Errorf("placeholder: %w", err)
	}
	r.emit(notify, Event{Stage: Placeholder, Frame: ph})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	preview, err := variant.Render(ctx, l.backend, src, PreviewTarget)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	r.emit(notify, Event{Stage: LowQuality, Frame: preview})

	// The preview must round-trip through the decoder before the full
	// image is shown.
	if _, _, err := l.backend.Decode(ctx, preview.Data); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.emit(notify, Event{Stage: HighQuality, Image: src})

	loaded := &Loaded{
		URL:         r.url,
		Image:       src,
		Format:      format,
		Size:        int64(len(data)),
		Placeholder: ph,
		Preview:     preview,
	}
	l.cache.Add(loaded)
	r.emit(notify, Event{Stage: Done, Image: src})

	l.log.Debug().
		Str("step", "progressive").
		Str("url", r.url).
		Dur("duration", time.Since(start)).
		Msg("loaded")
	return loaded, nil
}

// RenderPlaceholder encodes the blurred PlaceholderTarget frame of src.
func RenderPlaceholder(ctx context.Context, backend raster.Backend, src *image.NRGBA, sigma float32) (*raster.Encoded, error) {
	target := PlaceholderTarget
	b := src.Bounds()
	w, h := dimension.Fit(b.Dx(), b.Dy(), target.MaxW, target.MaxH)

	small, err := backend.Resize(ctx, src, w, h)
	if err != nil {
		return nil, err
	}
	small = placeholder.Blur(small, sigma)
	data, err := backend.Encode(ctx, small, target.Format, target.Quality)
	if err != nil {
		return nil, err
	}
	return &raster.Encoded{Format: target.Format, Width: w, Height: h, Quality: target.Quality, Data: data}, nil
}
