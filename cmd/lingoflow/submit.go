package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/stream"
)

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		serverURL string
		lang      string
		source    string
		output    string
		sse       bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file.json>",
		Short: "Translate a JSON file on a running service",
		Long: `Post a document to /api/jobs of a lingoflow service and follow the
streamed events until the job completes. Interrupting the command cancels
the job on the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang == "" {
				return fmt.Errorf("--lang is required")
			}
			data, _, err := readDocument(args[0])
			if err != nil {
				return err
			}

			body, err := json.Marshal(map[string]any{
				"document":       json.RawMessage(data),
				"sourceLanguage": source,
				"targetLanguage": lang,
			})
			if err != nil {
				return err
			}

			format := stream.FormatNDJSON
			if sse {
				format = stream.FormatSSE
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(serverURL, "/")+"/api/jobs", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", format.ContentType())
			req.Header.Set("User-Agent", lingoflow.UserAgent())

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				var e struct {
					Error string `json:"error"`
				}
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				if json.Unmarshal(msg, &e) == nil && e.Error != "" {
					return fmt.Errorf("server rejected job (%d): %s", resp.StatusCode, e.Error)
				}
				return fmt.Errorf("server rejected job (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			}

			var progress lingoflow.EventFunc = func(lingoflow.Event) {}
			if !quiet {
				progress = progressPrinter(opts.stderr, lang)
			}

			var translated any
			err = stream.ReadEvents(resp.Body, format, func(ev lingoflow.Event) error {
				progress(ev)
				switch ev.Type {
				case lingoflow.EventComplete:
					translated = ev.Document
				case lingoflow.EventError:
					return fmt.Errorf("job failed (%s): %s", ev.Reason, ev.Message)
				case lingoflow.EventCancelled:
					return lingoflow.ErrCancelled
				}
				return nil
			})
			if err != nil {
				if errors.Is(err, stream.ErrIncompleteStream) {
					return fmt.Errorf("connection closed before the job finished")
				}
				return err
			}

			out, err := document.MarshalIndent(translated)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprintf(opts.stdout, "%s\n", out)
				return err
			}
			return os.WriteFile(output, append(out, '\n'), 0o644) // #nosec G306 - translation output is not secret
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the lingoflow service")
	cmd.Flags().StringVar(&lang, "lang", "", "Target language (required)")
	cmd.Flags().StringVar(&source, "from", "en", "Source language code")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&sse, "sse", false, "Request server-sent events instead of NDJSON")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
	return cmd
}
