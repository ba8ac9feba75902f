// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dyfetch/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagOutputDir  string
	flagNoDownload bool
	flagCover      bool
	flagImages     bool
	flagTranscribe bool
	flagJSON       bool
	flagEngine     string
	flagModel      string
	flagVADModel   string
	flagPuncModel  string
	flagDebug      bool
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

// logger is rebuilt by loadConfig once the level is known.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "dyfetch [share-url-or-text]",
	Short: "Download Douyin videos and galleries from share links",
	Long: `dyfetch resolves a Douyin share link, or a pasted share message containing one,
into watermark-free media URLs. It downloads the video, cover and gallery items
and can transcribe the audio with FunASR or an OpenAI-compatible Whisper API.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: loadConfig,
	RunE:              fetchRun,
	SilenceUsage:      true,
}

// Execute runs the root command. Ctrl-C cancels in-flight requests and
// downloads.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory to write downloads to")
	rootCmd.Flags().BoolVar(&flagNoDownload, "no-download", false, "Resolve and print only")
	rootCmd.Flags().BoolVar(&flagCover, "cover", false, "Also save the cover image")
	rootCmd.Flags().BoolVar(&flagImages, "images", false, "Save gallery stills and live photo clips")
	rootCmd.Flags().BoolVar(&flagTranscribe, "transcribe", false, "Transcribe the video audio to <id>.txt")
	rootCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Print the media descriptor as JSON")
	rootCmd.Flags().StringVar(&flagEngine, "engine", "", "Transcription engine: funasr | whisper")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "FunASR recognition model")
	rootCmd.Flags().StringVar(&flagVADModel, "vad-model", "", "FunASR voice activity model")
	rootCmd.Flags().StringVar(&flagPuncModel, "punc-model", "", "FunASR punctuation model")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration, then sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file and environment values
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagEngine != "" {
		cfg.Transcribe.Engine = flagEngine
	}
	if flagModel != "" {
		cfg.Transcribe.Model = flagModel
	}
	if flagVADModel != "" {
		cfg.Transcribe.VADModel = flagVADModel
	}
	if flagPuncModel != "" {
		cfg.Transcribe.PuncModel = flagPuncModel
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = newLogger(cfg.Debug)
	return nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
