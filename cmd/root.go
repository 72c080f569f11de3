package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/AnyUserName/platepix/internal/config"
	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	verbose    bool
	logJSON    bool
	configPath string

	cfg     *config.Config
	logger  zerolog.Logger
	backend raster.Backend
)

var rootCmd = &cobra.Command{
	Use:   "platepix",
	Short: "Image pipeline for food photos",
	Long: `platepix resizes, sharpens and re-encodes food photos, renders
thumbnail/medium/large variants with blur-up placeholders, drives
progressive loads of remote images and scores a photo's emotional tone.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of console text")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"platepix %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// setup loads the config, builds the logger and resolves the backend once
// for whichever command runs.
func setup(_ *cobra.Command, _ []string) error {
	logger = newLogger()

	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}
	if backend, err = cfg.NewBackend(logger); err != nil {
		return err
	}
	logger.Debug().
		Str("backend", cfg.Backend).
		Str("filter", cfg.Filter).
		Strs("formats", backend.Formats()).
		Msg("backend ready")
	return nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if logJSON {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "platepix").Logger()
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
