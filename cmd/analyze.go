package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AnyUserName/platepix/internal/emotion"
	"github.com/AnyUserName/platepix/internal/source"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>...",
	Short: "Score the emotional tone of photos",
	Long: `Prints warmth, comfort, excitement and social scores (0-10) for each
photo, plus the pixel ratios they were derived from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeReport struct {
	Source string `json:"source"`
	emotion.Analysis
	Tone  string `json:"tone,omitempty"`
	Error string `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	loader := source.Loader{Fetcher: cfg.Fetcher()}
	reports := make([]analyzeReport, 0, len(args))
	failed := 0

	for _, ref := range args {
		r := analyzeReport{Source: ref}
		a, err := analyzeOne(cmd, loader, source.Parse(ref))
		if err != nil {
			logger.Error().Err(err).Str("source", ref).Msg("analyze failed")
			r.Error = err.Error()
			failed++
		} else {
			r.Analysis = a
			r.Tone = a.Scores.Tone()
		}
		reports = append(reports, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d photos could not be analyzed", failed, len(args))
	}
	return nil
}

func analyzeOne(cmd *cobra.Command, loader source.Loader, src source.Source) (emotion.Analysis, error) {
	data, err := loader.Bytes(cmd.Context(), src)
	if err != nil {
		return emotion.Analysis{}, err
	}
	img, _, err := backend.Decode(cmd.Context(), data)
	if err != nil {
		return emotion.Analysis{}, err
	}
	return emotion.Analyze(img)
}
