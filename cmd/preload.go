package cmd

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/platepix/internal/progressive"
	"github.com/spf13/cobra"
)

var preloadBlur float32

var preloadCmd = &cobra.Command{
	Use:   "preload <url>...",
	Short: "Progressively load remote photos and report each stage",
	Long: `Runs the blur-up load (placeholder, low-quality, high-quality, done)
for every URL, printing stage changes, then preloads the whole list
concurrently on a shared cache. One bad URL never stops the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreload,
}

func init() {
	preloadCmd.Flags().Float32Var(&preloadBlur, "blur", 1.5, "placeholder blur sigma (0 = none)")
	rootCmd.AddCommand(preloadCmd)
}

func runPreload(cmd *cobra.Command, args []string) error {
	loader := progressive.New(backend, cfg.Fetcher(), progressive.NewCache(),
		progressive.WithLogger(logger),
		progressive.WithBlur(preloadBlur),
		progressive.WithConcurrency(cfg.PreloadConcurrency),
	)

	// The first URL is shown stage by stage; the rest go through Preload.
	first := args[0]
	_, err := loader.Load(cmd.Context(), first, func(ev progressive.Event) {
		line := fmt.Sprintf("%-13s %s", ev.Stage, ev.URL)
		if ev.Frame != nil {
			line += fmt.Sprintf("  (%dx%d %s q%d, %s)", ev.Frame.Width, ev.Frame.Height, ev.Frame.Format, ev.Frame.Quality, formatBytes(ev.Frame.Size()))
		}
		fmt.Println(line)
	})
	if err != nil {
		logger.Error().Err(err).Str("url", first).Msg("load failed")
	}

	rep := loader.Preload(cmd.Context(), args)
	fmt.Println()
	fmt.Printf("  Loaded:  %d\n", len(rep.Loaded))
	fmt.Printf("  Cached:  %d\n", len(rep.Skipped))
	fmt.Printf("  Failed:  %d\n", len(rep.Failed))
	if len(rep.Failed) > 0 {
		urls := make([]string, 0, len(rep.Failed))
		for u := range rep.Failed {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		for _, u := range urls {
			fmt.Printf("    • %s: %v\n", u, rep.Failed[u])
		}
	}
	fmt.Printf("  Cache:   %d urls\n", loader.Cache().Len())

	if len(rep.Loaded)+len(rep.Skipped) == 0 {
		return fmt.Errorf("no URL could be loaded")
	}
	return nil
}
