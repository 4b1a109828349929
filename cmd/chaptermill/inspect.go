package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/ingest"
	"github.com/chaptermill/chaptermill/internal/parser"
)

// inspectSummary is the JSON shape printed by `chaptermill inspect`:
// structure and scores without the body text.
type inspectSummary struct {
	Language          book.Language         `json:"language"`
	Encoding          string                `json:"encoding"`
	OverallConfidence float64               `json:"overall_confidence"`
	Volumes           []inspectVolume       `json:"volumes"`
	Diagnostics       book.Diagnostics      `json:"diagnostics"`
	Report            book.ValidationReport `json:"report"`
}

type inspectVolume struct {
	Title    string           `json:"title,omitempty"`
	Number   string           `json:"number,omitempty"`
	Implicit bool             `json:"implicit,omitempty"`
	Chapters []inspectChapter `json:"chapters"`
}

type inspectChapter struct {
	Heading    string  `json:"heading"`
	Chars      int     `json:"chars"`
	Sections   int     `json:"sections,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <manuscript.txt>",
	Short: "Detect structure and print a JSON summary without writing an ePub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		p, err := newPipeline(logger)
		if err != nil {
			return err
		}

		doc, err := ingest.ReadFile(args[0])
		if err != nil {
			return err
		}

		result := p.parser.Parse(cmd.Context(), doc.Text)
		report := parser.Validate(&result, p.cfg.ToValidateOptions(), logger)

		summary := inspectSummary{
			Language:          result.Language,
			Encoding:          doc.Encoding,
			OverallConfidence: result.OverallConfidence,
			Diagnostics:       result.Diagnostics,
			Report:            report,
		}
		for vi := range result.Volumes {
			v := &result.Volumes[vi]
			iv := inspectVolume{
				Title:    v.Title,
				Number:   v.NumberToken,
				Implicit: v.Implicit,
			}
			for ci := range v.Chapters {
				ch := &v.Chapters[ci]
				iv.Chapters = append(iv.Chapters, inspectChapter{
					Heading:    parser.HeadingDisplay(ch, result.Language),
					Chars:      ch.CharCount(),
					Sections:   len(ch.Sections),
					Confidence: ch.Confidence,
					Source:     string(ch.Source),
				})
			}
			summary.Volumes = append(summary.Volumes, iv)
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
