package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaptermill/chaptermill/internal/epub"
	"github.com/chaptermill/chaptermill/internal/ingest"
	"github.com/chaptermill/chaptermill/internal/parser"
)

var (
	convertOutput string
	convertTitle  string
	convertAuthor string
)

var convertCmd = &cobra.Command{
	Use:   "convert <manuscript.txt>",
	Short: "Convert a plain text manuscript to ePub",
	Long: `Convert detects the volume/chapter/section structure of a plain text
manuscript and renders it as an ePub 3.0 file.

Examples:
  chaptermill convert novel.txt
  chaptermill convert novel.txt -o out/novel.epub --title "试剑" --author "无名氏"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		input := args[0]

		p, err := newPipeline(logger)
		if err != nil {
			return err
		}

		doc, err := ingest.ReadFile(input)
		if err != nil {
			return err
		}
		logger.Info("manuscript decoded", "encoding", doc.Encoding, "chars", len(doc.Text))

		result := p.parser.Parse(cmd.Context(), doc.Text)
		report := parser.Validate(&result, p.cfg.ToValidateOptions(), logger)

		logger.Info("structure detected",
			"language", result.Language,
			"volumes", len(result.Volumes),
			"chapters", len(result.Chapters()),
			"confidence", fmt.Sprintf("%.2f", result.OverallConfidence),
			"toc_removed", result.Diagnostics.TocRemoved,
		)
		if report.IntegrityViolation {
			logger.Warn("character count deviates beyond tolerance",
				"before", report.TotalBefore, "after", report.TotalAfter,
				"deviation", fmt.Sprintf("%.4f", report.Deviation))
		}
		if calls, in, out := p.recorder.Totals(); calls > 0 {
			logger.Info("llm usage", "calls", calls, "input_tokens", in, "output_tokens", out)
		}

		title := convertTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		}
		output := convertOutput
		if output == "" {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + ".epub"
		}

		builder := epub.FromParseResult(epub.Book{
			Title:  title,
			Author: convertAuthor,
		}, &result)
		if err := builder.Build(output); err != nil {
			return err
		}

		logger.Info("epub written", "path", output)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output path (default: input name with .epub)")
	convertCmd.Flags().StringVar(&convertTitle, "title", "", "book title (default: input file name)")
	convertCmd.Flags().StringVar(&convertAuthor, "author", "", "book author")

	rootCmd.AddCommand(convertCmd)
}
