package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/document"
)

func newImproveCmd(opts *rootOptions) *cobra.Command {
	var (
		lang       string
		source     string
		output     string
		promptFile string
		threshold  int
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "improve <source.json> <translation.json>",
		Short: "Shorten overlong translations of a JSON file",
		Long: `Compare each translated string with its source and ask the model for a
shorter rendering when the translation is longer than --threshold percent of
the source. Other strings are kept as they are.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang == "" {
				return fmt.Errorf("--lang is required")
			}

			_, src, err := readDocument(args[0])
			if err != nil {
				return err
			}
			_, translation, err := readDocument(args[1])
			if err != nil {
				return err
			}
			prompt, err := readPrompt(promptFile)
			if err != nil {
				return err
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if threshold <= 0 {
				threshold = cfg.Job.ImproveThreshold
			}

			svc, err := buildServices(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			orch, err := svc.orchestrator()
			if err != nil {
				return err
			}

			var emit lingoflow.EventFunc
			if !quiet {
				emit = progressPrinter(opts.stderr, lang)
			}
			res, err := orch.Improve(cmd.Context(), lingoflow.ImproveJob{
				ID:          uuid.NewString(),
				Source:      src,
				Translation: translation,
				SourceLang:  source,
				TargetLang:  lang,
				Threshold:   threshold,
				Prompt:      prompt,
			}, emit)
			if err != nil {
				return fmt.Errorf("improve failed: %w", err)
			}

			out, err := document.MarshalIndent(res.Document)
			if err != nil {
				return err
			}
			var w io.Writer = opts.stdout
			if output != "" {
				f, err := os.Create(output) // #nosec G304 - CLI tool writes user-specified files
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if _, err := fmt.Fprintf(w, "%s\n", out); err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(opts.stderr, "Improved %d of %d strings (%d kept, %d fallbacks)\n",
					res.Translated, res.TotalKeys, res.Skipped, res.Fallbacks)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Language of the translation (required)")
	cmd.Flags().StringVar(&source, "from", "en", "Source language code")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Custom prompt template ({text}, {translation}, {targetLanguage})")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Length ratio in percent above which a string is shortened (default from config)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
	return cmd
}
