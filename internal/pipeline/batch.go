package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/AnyUserName/platepix/internal/dimension"
	"github.com/AnyUserName/platepix/internal/emotion"
	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/AnyUserName/platepix/internal/hasher"
	"github.com/AnyUserName/platepix/internal/manifest"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/AnyUserName/platepix/internal/variant"
	"github.com/rs/zerolog"
)

// Config holds all parameters for a batch run.
type Config struct {
	InputDir  string
	OutputDir string
	Profile   string
	Options   Options
	Workers   int
	// NoRegressSize skips variants whose encoding is not smaller than the
	// source file.
	NoRegressSize bool
	// Analyze attaches emotion scores to every asset.
	Analyze bool
}

// Pipeline optimizes every photo under a directory and writes
// content-addressed outputs plus a manifest.
type Pipeline struct {
	cfg Config
	opt *Optimizer
	log zerolog.Logger
}

// New creates a batch pipeline driving opt.
func New(cfg Config, opt *Optimizer, log zerolog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{cfg: cfg, opt: opt, log: log}
}

type assetResult struct {
	key     string
	asset   manifest.Asset
	skipped int
	err     error
}

// Run processes every image and returns the manifest. Individual failures
// are logged and counted; the run fails only when nothing succeeded.
func (p *Pipeline) Run(ctx context.Context) (*manifest.Manifest, error) {
	start := time.Now()
	opts, err := p.cfg.Options.Normalize()
	if err != nil {
		return nil, err
	}

	inputs, err := ScanImages(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	p.log.Info().Int("images", len(inputs)).Int("workers", p.cfg.Workers).Str("options", opts.String()).Msg("build started")

	results := make([]assetResult, len(inputs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, in := range inputs {
		wg.Add(1)
		go func(idx int, in Input) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = assetResult{key: in.Key, err: fmt.Errorf("%s: %w", in.Rel, ctx.Err())}
				return
			}
			defer func() { <-sem }()

			p.log.Debug().Str("key", in.Key).Msg("processing")
			results[idx] = p.process(ctx, in, opts)
		}(i, in)
	}
	wg.Wait()

	m := manifest.New(p.cfg.Profile)
	var errs []error
	for _, r := range results {
		if r.err != nil {
			p.log.Error().Err(r.err).Str("key", r.key).Msg("image failed")
			errs = append(errs, r.err)
			continue
		}
		m.Assets[r.key] = r.asset
		m.Stats.SkippedRegress += r.skipped
	}
	if len(errs) == len(inputs) {
		return nil, fmt.Errorf("all %d images failed to process: %w", len(errs), errors.Join(errs...))
	}
	if len(errs) > 0 {
		p.log.Warn().Msgf("%d of %d images had errors", len(errs), len(inputs))
	}

	name, filter := backendInfo(p.opt.Backend())
	policy := "strict"
	if p.opt.partial {
		policy = "partial"
	}
	m.BuildInfo = &manifest.BuildInfo{
		Workers:       p.cfg.Workers,
		Backend:       name,
		Filter:        filter,
		VariantPolicy: policy,
		Format:        opts.Format,
		Quality:       opts.Quality,
		MaxWidth:      opts.MaxWidth,
		MaxHeight:     opts.MaxHeight,
	}
	m.Stats.Failed = len(errs)
	m.ComputeStats()

	p.log.Info().
		Str("step", "build").
		Int("assets", m.Stats.TotalAssets).
		Int("variants", m.Stats.TotalVariants).
		Dur("duration", time.Since(start)).
		Msg("build finished")
	return m, nil
}

// process optimizes one image and writes its outputs.
func (p *Pipeline) process(ctx context.Context, in Input, opts Options) assetResult {
	r := assetResult{key: in.Key}
	fail := func(err error) assetResult {
		r.err = fmt.Errorf("%s: %w", in.Rel, err)
		return r
	}

	res, err := p.opt.Optimize(ctx, source.FromPath(in.Path), opts)
	if err != nil {
		return fail(err)
	}

	avg := res.AvgColor
	r.asset = manifest.Asset{
		Original: manifest.OriginalInfo{
			Width:    res.Original.Width,
			Height:   res.Original.Height,
			Format:   res.Original.Format,
			Size:     res.Original.Size,
			HasAlpha: res.Original.HasAlpha,
		},
		CompressionRatio: res.CompressionRatio,
		BlurHash:         res.BlurHash,
		AspectRatio:      dimension.AspectRatio(res.Original.Width, res.Original.Height),
		AvgColor:         &avg,
	}
	if res.Placeholder != nil {
		r.asset.Placeholder = res.Placeholder.DataURI()
	}
	if p.cfg.Analyze {
		scores, err := emotion.ScoreImage(res.Decoded())
		if err != nil {
			return fail(fmt.Errorf("analyze: %w", err))
		}
		r.asset.Emotion = &scores
		r.asset.Tone = scores.Tone()
	}

	if dir := path.Dir(in.Key); dir != "." {
		if err := os.MkdirAll(filepath.Join(p.cfg.OutputDir, filepath.FromSlash(dir)), 0o755); err != nil {
			return fail(err)
		}
	}

	if r.asset.Optimized, err = p.write(in.Key, "", res.Optimized); err != nil {
		return fail(err)
	}
	if res.Variants == nil {
		return r
	}

	var werr error
	res.Variants.Each(func(name variant.Name, e *raster.Encoded) {
		if werr != nil {
			return
		}
		if p.cfg.NoRegressSize && e.Size() >= in.Size {
			p.log.Debug().
				Str("key", in.Key).
				Str("variant", string(name)).
				Int64("encoded", e.Size()).
				Int64("original", in.Size).
				Msg("skip variant larger than original")
			r.skipped++
			return
		}
		out, err := p.write(in.Key, string(name), e)
		if err != nil {
			werr = err
			return
		}
		r.asset.Variants = append(r.asset.Variants, out)
	})
	if werr != nil {
		return fail(werr)
	}
	if res.VariantErr != nil {
		p.log.Warn().Err(res.VariantErr).Str("key", in.Key).Msg("some variants failed")
	}
	return r
}

// write stores e under its content-addressed name next to the asset key.
func (p *Pipeline) write(key, name string, e *raster.Encoded) (manifest.Output, error) {
	hash := hasher.ContentHash(e.Data, hasher.HashLen)
	rel := path.Join(path.Dir(key), hasher.FileName(key, e.Width, e.Height, hash, encoder.Extension(e.Format)))

	if err := os.WriteFile(filepath.Join(p.cfg.OutputDir, filepath.FromSlash(rel)), e.Data, 0o644); err != nil {
		return manifest.Output{}, fmt.Errorf("write %s: %w", rel, err)
	}
	return manifest.Output{
		Name:    name,
		Format:  e.Format,
		Width:   e.Width,
		Height:  e.Height,
		Quality: e.Quality,
		Size:    e.Size(),
		Hash:    hash,
		Path:    rel,
	}, nil
}

func backendInfo(b raster.Backend) (name, filter string) {
	if im, ok := b.(*raster.Imaging); ok {
		return "imaging", im.Filter()
	}
	return fmt.Sprintf("%T", b), ""
}
