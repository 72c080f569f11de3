// Package config loads the platepix YAML configuration.
package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/AnyUserName/platepix/internal/pipeline"
	"github.com/AnyUserName/platepix/internal/profile"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backend names.
const BackendImaging = "imaging"

// Variant policies.
const (
	PolicyStrict  = "strict"
	PolicyPartial = "partial"
)

// Config represents the application configuration
type Config struct {
	Backend            string         `yaml:"backend"`
	Filter             string         `yaml:"filter"`
	Profile            string         `yaml:"profile"`
	Workers            int            `yaml:"workers"`
	PreloadConcurrency int            `yaml:"preload_concurrency"`
	VariantPolicy      string         `yaml:"variant_policy"`
	Timeout            time.Duration  `yaml:"timeout"`
	HTTP               HTTPConfig     `yaml:"http"`
	Defaults           DefaultsConfig `yaml:"defaults"`
}

// HTTPConfig tunes the fetcher used for URL sources.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultsConfig overrides the selected profile. Unset fields keep the
// profile's value.
type DefaultsConfig struct {
	Quality     *int   `yaml:"quality"`
	MaxWidth    int    `yaml:"max_width"`
	MaxHeight   int    `yaml:"max_height"`
	Format      string `yaml:"format"`
	Progressive *bool  `yaml:"progressive"`
	Variants    *bool  `yaml:"variants"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend:            BackendImaging,
		Filter:             raster.FilterLanczos,
		Profile:            "default",
		PreloadConcurrency: 4,
		VariantPolicy:      PolicyStrict,
		HTTP: HTTPConfig{
			Timeout:   source.DefaultTimeout,
			MaxBytes:  source.DefaultMaxBytes,
			UserAgent: source.DefaultUserAgent,
		},
	}
}

// Load reads and parses the configuration file over Default. An empty path
// returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Backend != BackendImaging {
		return fmt.Errorf("backend %q is not available (want %q)", c.Backend, BackendImaging)
	}
	if !raster.ValidFilter(c.Filter) {
		return fmt.Errorf("unknown filter %q", c.Filter)
	}
	if _, ok := profile.Lookup(c.Profile); !ok {
		return fmt.Errorf("unknown profile %q (have %v)", c.Profile, profile.Names())
	}
	if c.VariantPolicy != PolicyStrict && c.VariantPolicy != PolicyPartial {
		return fmt.Errorf("variant_policy must be %q or %q, got %q", PolicyStrict, PolicyPartial, c.VariantPolicy)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.PreloadConcurrency < 0 {
		return fmt.Errorf("preload_concurrency must be >= 0")
	}
	if c.Timeout < 0 || c.HTTP.Timeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.HTTP.MaxBytes < 0 {
		return fmt.Errorf("http.max_bytes must be >= 0")
	}
	if q := c.Defaults.Quality; q != nil && (*q < 0 || *q > 100) {
		return fmt.Errorf("defaults.quality must be within 0-100, got %d", *q)
	}
	if f := c.Defaults.Format; f != "" && !encoder.Known(f) {
		return fmt.Errorf("defaults.format: unsupported format %q", f)
	}
	return nil
}

// Options resolves the profile plus overrides into pipeline options. extra
// setters, typically from CLI flags, are applied last.
func (c *Config) Options(extra ...pipeline.Option) (pipeline.Options, error) {
	opts := profile.Get(c.Profile).Options()
	d := c.Defaults
	if d.Quality != nil {
		opts = append(opts, pipeline.WithQuality(*d.Quality))
	}
	if d.MaxWidth > 0 || d.MaxHeight > 0 {
		p := profile.Get(c.Profile)
		w, h := p.MaxWidth, p.MaxHeight
		if d.MaxWidth > 0 {
			w = d.MaxWidth
		}
		if d.MaxHeight > 0 {
			h = d.MaxHeight
		}
		opts = append(opts, pipeline.WithMaxSize(w, h))
	}
	if d.Format != "" {
		opts = append(opts, pipeline.WithFormat(d.Format))
	}
	if d.Progressive != nil {
		opts = append(opts, pipeline.WithProgressive(*d.Progressive))
	}
	if d.Variants != nil {
		opts = append(opts, pipeline.WithVariants(*d.Variants))
	}
	opts = append(opts, pipeline.WithTimeout(c.Timeout))
	return pipeline.NewOptions(append(opts, extra...)...)
}

// NewBackend resolves the configured rasterizer. It is called once at
// startup and shared by every command.
func (c *Config) NewBackend(log zerolog.Logger) (raster.Backend, error) {
	switch c.Backend {
	case BackendImaging:
		return raster.NewImaging(raster.WithFilter(c.Filter), raster.WithLogger(log)), nil
	}
	return nil, fmt.Errorf("backend %q is not available", c.Backend)
}

// Fetcher builds the HTTP fetcher for URL sources.
func (c *Config) Fetcher() *source.Fetcher {
	f := source.NewFetcher()
	if c.HTTP.Timeout > 0 {
		f.Client = &http.Client{Timeout: c.HTTP.Timeout}
	}
	if c.HTTP.MaxBytes > 0 {
		f.MaxBytes = c.HTTP.MaxBytes
	}
	if c.HTTP.UserAgent != "" {
		f.UserAgent = c.HTTP.UserAgent
	}
	return f
}

// PartialVariants reports whether variant failures are tolerated.
func (c *Config) PartialVariants() bool { return c.VariantPolicy == PolicyPartial }
