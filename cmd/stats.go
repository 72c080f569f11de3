package cmd

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/platepix/internal/manifest"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a built asset directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	m, _, err := manifest.Read(args[0])
	if err != nil {
		return err
	}
	printStats(m)
	return nil
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Profile:          %s\n", m.Profile)
	if b := m.BuildInfo; b != nil {
		fmt.Printf("  Backend:          %s (%s)\n", b.Backend, b.Filter)
		fmt.Printf("  Output:           %s q%d, max %dx%d\n", b.Format, b.Quality, b.MaxWidth, b.MaxHeight)
		fmt.Printf("  Workers:          %d, variants %s\n", b.Workers, b.VariantPolicy)
	}
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total assets:     %d\n", s.TotalAssets)
	fmt.Printf("  Total variants:   %d\n", s.TotalVariants)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Printf("  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Println()

	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	variantStats := map[string]int{}
	tones := map[string]int{}
	var ratioSum float64
	for _, a := range m.Assets {
		for _, o := range a.Outputs() {
			fs := formatStats[o.Format]
			fs.count++
			fs.bytes += o.Size
			formatStats[o.Format] = fs
		}
		for _, v := range a.Variants {
			variantStats[v.Name]++
		}
		if a.Tone != "" {
			tones[a.Tone]++
		}
		ratioSum += a.CompressionRatio
	}

	fmt.Println("  Format breakdown:")
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if fs, ok := formatStats[f]; ok {
			fmt.Printf("    %-6s  %4d files  %s\n", f, fs.count, formatBytes(fs.bytes))
		}
	}
	fmt.Println()

	if len(variantStats) > 0 {
		fmt.Println("  Variant breakdown:")
		for _, n := range []string{"thumbnail", "medium", "large"} {
			if c, ok := variantStats[n]; ok {
				fmt.Printf("    %-9s  %4d files\n", n, c)
			}
		}
		fmt.Println()
	}

	if len(m.Assets) > 0 {
		fmt.Printf("  Mean compression ratio: %.2f\n", ratioSum/float64(len(m.Assets)))
	}

	if len(tones) > 0 {
		names := make([]string, 0, len(tones))
		for t := range tones {
			names = append(names, t)
		}
		sort.Strings(names)
		fmt.Println("  Tone breakdown:")
		for _, t := range names {
			fmt.Printf("    %-9s  %4d assets\n", t, tones[t])
		}
	}

	hashed := 0
	var warnings []string
	for key, a := range m.Assets {
		if a.BlurHash != "" {
			hashed++
		} else {
			warnings = append(warnings, fmt.Sprintf("asset %q missing blurhash", key))
		}
		if a.Optimized.Path == "" {
			warnings = append(warnings, fmt.Sprintf("asset %q has no optimized output", key))
		}
	}
	fmt.Printf("  BlurHash coverage: %d / %d assets\n", hashed, len(m.Assets))
	if s.Failed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d images failed during build", s.Failed))
	}
	if len(warnings) > 0 {
		sort.Strings(warnings)
		fmt.Println()
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
	}
	fmt.Println()
}
