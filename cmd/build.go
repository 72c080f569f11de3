package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AnyUserName/platepix/internal/manifest"
	"github.com/AnyUserName/platepix/internal/pipeline"
	"github.com/AnyUserName/platepix/internal/profile"
	"github.com/spf13/cobra"
)

var (
	buildOutDir    string
	buildProfile   string
	buildWorkers   int
	buildQuality   int
	buildFormat    string
	buildVariants  bool
	buildNoRegress bool
	buildAnalyze   bool
)

var buildCmd = &cobra.Command{
	Use:   "build <input_dir>",
	Short: "Optimize a directory of photos and write a manifest",
	Long: `Scans input directory for images (png, jpg, jpeg, webp, gif, bmp, tiff),
optimizes each one, renders thumbnail/medium/large variants, computes
blurhash placeholders and emotion scores, and writes platepix.manifest.json.

Output filenames are content-addressed: <key>.<w>.<h>.<hash>.ext`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "./platepix_out", "output directory")
	buildCmd.Flags().StringVarP(&buildProfile, "profile", "p", "", "option preset: "+strings.Join(profile.Names(), ", "))
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "parallel workers (0 = config, then NumCPU)")
	buildCmd.Flags().IntVarP(&buildQuality, "quality", "q", 0, "quality 0-100 (overrides profile)")
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "", "output format (overrides profile)")
	buildCmd.Flags().BoolVar(&buildVariants, "variants", true, "render thumbnail/medium/large")
	buildCmd.Flags().BoolVar(&buildNoRegress, "no-regress-size", true, "skip variants larger than original file")
	buildCmd.Flags().BoolVar(&buildAnalyze, "analyze", true, "attach emotion scores")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()

	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(buildOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	if buildProfile != "" {
		if _, ok := profile.Lookup(buildProfile); !ok {
			return fmt.Errorf("unknown profile %q", buildProfile)
		}
		cfg.Profile = buildProfile
	}
	var overrides []pipeline.Option
	if cmd.Flags().Changed("quality") {
		overrides = append(overrides, pipeline.WithQuality(buildQuality))
	}
	if buildFormat != "" {
		overrides = append(overrides, pipeline.WithFormat(buildFormat))
	}
	overrides = append(overrides, pipeline.WithVariants(buildVariants))
	opts, err := cfg.Options(overrides...)
	if err != nil {
		return err
	}

	workers := buildWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}

	logger.Debug().
		Str("input", absInput).
		Str("output", absOutput).
		Str("profile", cfg.Profile).
		Str("options", opts.String()).
		Msg("build")

	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	p := pipeline.New(pipeline.Config{
		InputDir:      absInput,
		OutputDir:     absOutput,
		Profile:       cfg.Profile,
		Options:       opts,
		Workers:       workers,
		NoRegressSize: buildNoRegress,
		Analyze:       buildAnalyze,
	}, newOptimizer(), logger)

	m, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	manifestPath := filepath.Join(absOutput, manifest.FileName)
	if err := manifest.WriteJSON(m, manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	printBuildReport(m, time.Since(start))
	return nil
}

func printBuildReport(m *manifest.Manifest, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║             platepix build complete              ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	stats := m.Stats
	ratio := float64(0)
	if stats.TotalInputBytes > 0 {
		ratio = float64(stats.TotalOutputBytes) / float64(stats.TotalInputBytes) * 100
	}

	fmt.Printf("  Assets:      %d\n", stats.TotalAssets)
	fmt.Printf("  Variants:    %d\n", stats.TotalVariants)
	fmt.Printf("  Input size:  %s\n", formatBytes(stats.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(stats.TotalOutputBytes))
	fmt.Printf("  Ratio:       %.1f%% of original\n", ratio)
	if stats.SkippedRegress > 0 {
		fmt.Printf("  Skipped:     %d variants (larger than original)\n", stats.SkippedRegress)
	}
	if stats.Failed > 0 {
		fmt.Printf("  Failed:      %d images\n", stats.Failed)
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	if m.BuildInfo != nil {
		fmt.Printf("  Workers:     %d  (%s/%s, variants %s)\n",
			m.BuildInfo.Workers, m.BuildInfo.Backend, m.BuildInfo.Filter, m.BuildInfo.VariantPolicy)
	}
	fmt.Println()

	if len(m.Assets) > 0 {
		type assetSize struct {
			key        string
			inputSize  int64
			outputSize int64
			tone       string
		}
		var items []assetSize
		for key, a := range m.Assets {
			items = append(items, assetSize{key, a.Original.Size, a.Optimized.Size, a.Tone})
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].inputSize != items[j].inputSize {
				return items[i].inputSize > items[j].inputSize
			}
			return items[i].key < items[j].key
		})
		n := min(len(items), 10)
		fmt.Printf("  Top %d heaviest (original → optimized):\n", n)
		for _, it := range items[:n] {
			saved := float64(0)
			if it.inputSize > 0 {
				saved = (1 - float64(it.outputSize)/float64(it.inputSize)) * 100
			}
			fmt.Printf("    %-40s %8s → %8s  (−%.0f%%)  %s\n",
				truncKey(it.key, 40),
				formatBytes(it.inputSize),
				formatBytes(it.outputSize),
				saved,
				it.tone,
			)
		}
		fmt.Println()
	}

	fmts := detectOutputFormats(m)
	fmt.Printf("  Formats:     %s\n", strings.Join(fmts, ", "))
	fmt.Println()

	data, _ := json.Marshal(m)
	fmt.Printf("  Manifest:    %s (%s)\n", manifest.FileName, formatBytes(int64(len(data))))
	fmt.Println()
}

func detectOutputFormats(m *manifest.Manifest) []string {
	set := map[string]bool{}
	for _, a := range m.Assets {
		for _, o := range a.Outputs() {
			set[o.Format] = true
		}
	}
	var out []string
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
