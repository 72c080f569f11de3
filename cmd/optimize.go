package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/platepix/internal/encoder"
	"github.com/AnyUserName/platepix/internal/hasher"
	"github.com/AnyUserName/platepix/internal/pipeline"
	"github.com/AnyUserName/platepix/internal/profile"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/AnyUserName/platepix/internal/variant"
	"github.com/spf13/cobra"
)

var (
	optOutDir      string
	optProfile     string
	optQuality     int
	optMaxWidth    int
	optMaxHeight   int
	optFormat      string
	optVariants    bool
	optProgressive bool
	optDataURI     bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file|url>",
	Short: "Optimize one photo and print its result as JSON",
	Long: `Loads a photo from disk or an http(s) URL, fits it into the max box,
sharpens it when the output is wider than 200px and re-encodes it.

With -o the outputs are written as <name>.<w>.<h>.<hash>.ext.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVarP(&optOutDir, "out", "o", "", "write outputs to this directory")
	f.StringVarP(&optProfile, "profile", "p", "", "option preset: "+strings.Join(profile.Names(), ", "))
	f.IntVarP(&optQuality, "quality", "q", pipeline.DefaultQuality, "quality 0-100")
	f.IntVar(&optMaxWidth, "max-width", pipeline.DefaultMaxWidth, "max output width")
	f.IntVar(&optMaxHeight, "max-height", pipeline.DefaultMaxHeight, "max output height")
	f.StringVarP(&optFormat, "format", "f", pipeline.DefaultFormat, "output format (webp, jpeg, png, avif)")
	f.BoolVar(&optVariants, "variants", false, "also render thumbnail/medium/large")
	f.BoolVar(&optProgressive, "progressive", true, "attach blur-up placeholder and preview")
	f.BoolVar(&optDataURI, "data-uri", false, "include the output as a data: URI")
	rootCmd.AddCommand(optimizeCmd)
}

type optimizeReport struct {
	*pipeline.Result
	DataURI string   `json:"data_uri,omitempty"`
	Files   []string `json:"files,omitempty"`
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if optProfile != "" {
		if _, ok := profile.Lookup(optProfile); !ok {
			return fmt.Errorf("unknown profile %q", optProfile)
		}
		cfg.Profile = optProfile
	}
	opts, err := cfg.Options(flagOptions(cmd)...)
	if err != nil {
		return err
	}

	src := source.Parse(args[0])
	opt := newOptimizer()
	res, err := opt.Optimize(cmd.Context(), src, opts)
	if err != nil {
		return err
	}
	if res.VariantErr != nil {
		logger.Warn().Err(res.VariantErr).Msg("some variants failed")
	}

	report := optimizeReport{Result: res}
	if optDataURI {
		report.DataURI = res.Optimized.DataURI()
	}
	if optOutDir != "" {
		if report.Files, err = writeResult(optOutDir, outputName(src), res); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// flagOptions turns explicitly set flags into overrides on top of the config.
func flagOptions(cmd *cobra.Command) []pipeline.Option {
	f := cmd.Flags()
	var opts []pipeline.Option
	if f.Changed("quality") {
		opts = append(opts, pipeline.WithQuality(optQuality))
	}
	if f.Changed("max-width") || f.Changed("max-height") {
		opts = append(opts, pipeline.WithMaxSize(optMaxWidth, optMaxHeight))
	}
	if f.Changed("format") {
		opts = append(opts, pipeline.WithFormat(optFormat))
	}
	if f.Changed("variants") {
		opts = append(opts, pipeline.WithVariants(optVariants))
	}
	if f.Changed("progressive") {
		opts = append(opts, pipeline.WithProgressive(optProgressive))
	}
	return opts
}

func newOptimizer() *pipeline.Optimizer {
	return pipeline.NewOptimizer(backend,
		pipeline.WithLogger(logger),
		pipeline.WithFetcher(cfg.Fetcher()),
		pipeline.WithPartialVariants(cfg.PartialVariants()),
	)
}

// outputName derives a file stem from a path or URL.
func outputName(src source.Source) string {
	loc := src.Location
	if src.Kind == source.KindURL {
		if u, err := url.Parse(loc); err == nil {
			loc = u.Path
		}
	}
	base := path.Base(filepath.ToSlash(loc))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "image"
	}
	return base
}

func writeResult(dir, name string, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var files []string
	write := func(stem string, e *raster.Encoded) error {
		if e == nil {
			return nil
		}
		hash := hasher.ContentHash(e.Data, hasher.HashLen)
		p := filepath.Join(dir, hasher.FileName(stem, e.Width, e.Height, hash, encoder.Extension(e.Format)))
		if err := os.WriteFile(p, e.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		files = append(files, p)
		return nil
	}

	if err := write(name, res.Optimized); err != nil {
		return nil, err
	}
	if err := write(name+".placeholder", res.Placeholder); err != nil {
		return nil, err
	}
	if err := write(name+".preview", res.Preview); err != nil {
		return nil, err
	}
	if res.Variants != nil {
		var werr error
		res.Variants.Each(func(n variant.Name, e *raster.Encoded) {
			if werr == nil {
				werr = write(name+"."+string(n), e)
			}
		})
		if werr != nil {
			return nil, werr
		}
	}
	return files, nil
}
