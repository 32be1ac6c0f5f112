package main

import (
	"github.com/spf13/cobra"

	"github.com/anime-shed/live-ocr-go/internal/config"
	"github.com/anime-shed/live-ocr-go/internal/logger"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "liveocr",
	Short: "Real-time OCR over sampled video frames with dictionary matching",
	Long: `liveocr runs a text detection and recognition pipeline over frames
sampled from a live source or dropped image files, and fuzzy-matches the
recognized lines against a reference dictionary.

At most one recognition pass runs at a time; frames arriving while the
engine is busy or still loading are dropped, never queued.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./liveocr.yaml or ~/.liveocr/liveocr.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)",
	)

	rootCmd.AddCommand(serveCmd, scanCmd, matchCmd, configCmd, versionCmd)
}

// loadConfig reads the config file and environment and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}
