package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaptermill/chaptermill/version"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "chaptermill",
	Short: "Plain-text manuscript to structured volume/chapter/section converter",
	Long: `Chaptermill converts plain text manuscripts into structured, multi-level
documents (volumes, chapters, sections) and renders them as ePub files.

Structure detection is rule-based: heading patterns for mixed Chinese and
English numbering conventions, table-of-contents recognition and removal,
and confidence scoring. Ambiguous cases can optionally be escalated to an
LLM assistant and reconciled with the rule verdicts.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.chaptermill/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json",
	)

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger honoring --verbose and --log-format.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
