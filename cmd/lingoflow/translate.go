package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/artifact"
	"github.com/ZaguanLabs/lingoflow/chunker"
	"github.com/ZaguanLabs/lingoflow/config"
	"github.com/ZaguanLabs/lingoflow/dispatch"
	"github.com/ZaguanLabs/lingoflow/document"
)

type translateOptions struct {
	targets       string
	source        string
	outDir        string
	checkpointDir string
	promptFile    string
	perMinute     int
	perDay        int
	remote        bool
	dryRun        bool
	jsonOutput    bool
	quiet         bool
}

func newTranslateCmd(opts *rootOptions) *cobra.Command {
	var t translateOptions

	cmd := &cobra.Command{
		Use:   "translate <file.json>",
		Short: "Translate a JSON file into one or more languages",
		Long: `Translate every string of a JSON file. Progress is checkpointed as
<name>-<lang>-progress.json, so an interrupted run resumes where it stopped.
Each finished language is written as <name>-<lang>-<unix-ms>.json.

With --remote and a configured worker function, each language is handed to
its own asynchronous Lambda invocation instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(splitList(t.targets)) == 0 {
				return fmt.Errorf("--to is required")
			}
			return runTranslate(cmd, opts, t, args[0])
		},
	}

	cmd.Flags().StringVar(&t.targets, "to", "", "Target languages (comma-separated, e.g. es,fr,pt_BR)")
	cmd.Flags().StringVar(&t.source, "from", "en", "Source language code")
	cmd.Flags().StringVar(&t.outDir, "out-dir", "", "Output directory (default: artifact store from config, else the input directory)")
	cmd.Flags().StringVar(&t.checkpointDir, "checkpoint-dir", "", "Checkpoint directory (default: checkpoint URL from config, else the output directory)")
	cmd.Flags().StringVar(&t.promptFile, "prompt-file", "", "Custom prompt template ({text}, {sourceLanguage}, {targetLanguage})")
	cmd.Flags().IntVar(&t.perMinute, "per-minute", 0, "Requests per minute (default from config)")
	cmd.Flags().IntVar(&t.perDay, "per-day", 0, "Requests per day (default from config)")
	cmd.Flags().BoolVar(&t.remote, "remote", false, "Dispatch each language to the configured worker function")
	cmd.Flags().BoolVar(&t.dryRun, "dry-run", false, "Show what would be translated without calling the API")
	cmd.Flags().BoolVar(&t.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&t.quiet, "quiet", false, "Suppress progress output")
	return cmd
}

func runTranslate(cmd *cobra.Command, opts *rootOptions, t translateOptions, inputPath string) error {
	ctx := cmd.Context()

	data, doc, err := readDocument(inputPath)
	if err != nil {
		return err
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if t.perMinute > 0 {
		cfg.RateLimits.PerMinute = t.perMinute
	}
	if t.perDay > 0 {
		cfg.RateLimits.PerDay = t.perDay
	}

	if t.dryRun {
		return runDryRun(opts.stdout, cfg, doc, filepath.Base(inputPath), splitList(t.targets), t.jsonOutput)
	}

	prompt, err := readPrompt(t.promptFile)
	if err != nil {
		return err
	}
	req := dispatch.Request{
		InputName:       filepath.Base(inputPath),
		Document:        json.RawMessage(data),
		SourceLanguage:  t.source,
		TargetLanguages: splitList(t.targets),
		Prompt:          prompt,
	}

	var d *dispatch.Dispatcher
	if t.remote {
		if cfg.Dispatch.WorkerFunction == "" {
			return fmt.Errorf("--remote requires a worker function (LINGOFLOW_WORKER_FUNCTION)")
		}
		d, err = dispatch.NewLambda(ctx, cfg.Dispatch.WorkerFunction, nil)
		if err != nil {
			return err
		}
	} else {
		runner, closeFn, err := newBatchRunner(cmd, opts, cfg, t, inputPath)
		if err != nil {
			return err
		}
		defer closeFn()
		d = dispatch.New(nil, "", runner)
	}

	start := time.Now()
	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		return err
	}

	if t.jsonOutput {
		enc := json.NewEncoder(opts.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		printResults(opts.stdout, resp, time.Since(start))
	}

	if resp.Failed() {
		return fmt.Errorf("translation failed for one or more languages")
	}
	return nil
}

// newBatchRunner wires the in-process runner: provider, checkpoints and
// artifact store.
func newBatchRunner(cmd *cobra.Command, opts *rootOptions, cfg *config.Config, t translateOptions, inputPath string) (*dispatch.BatchRunner, func(), error) {
	ctx := cmd.Context()

	svc, err := buildServices(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}

	outDir := t.outDir
	var artifacts artifact.Store
	switch {
	case outDir == "" && (cfg.Artifacts.URL != "" || cfg.Artifacts.Endpoint != ""):
		artifacts, err = artifact.Open(ctx, artifact.Config{
			URL:       cfg.Artifacts.URL,
			Endpoint:  cfg.Artifacts.Endpoint,
			Region:    cfg.Artifacts.Region,
			AccessKey: cfg.Artifacts.AccessKey,
			SecretKey: cfg.Artifacts.SecretKey,
			Bucket:    cfg.Artifacts.Bucket,
			UseSSL:    cfg.Artifacts.UseSSL,
		})
	default:
		if outDir == "" {
			outDir = filepath.Dir(inputPath)
		}
		artifacts, err = artifact.OpenBlobStore(ctx, outDir)
	}
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	svc.addCloser(artifacts)

	if t.checkpointDir != "" || svc.checkpoints == nil {
		dir := t.checkpointDir
		if dir == "" {
			dir = outDir
		}
		if dir == "" {
			dir = filepath.Dir(inputPath)
		}
		store, err := openDirCheckpoints(dir)
		if err != nil {
			svc.Close()
			return nil, nil, err
		}
		svc.useCheckpoints(store, cfg.Checkpoint.Interval)
	}

	orch, err := svc.orchestrator()
	if err != nil {
		svc.Close()
		return nil, nil, err
	}

	runner := &dispatch.BatchRunner{
		Orchestrator: orch,
		Artifacts:    artifacts,
		Logger:       svc.logger,
	}
	if !t.quiet {
		runner.Events = func(lang string) lingoflow.EventFunc {
			return progressPrinter(opts.stderr, lang)
		}
	}
	return runner, svc.Close, nil
}

// progressPrinter reports each event of one language on w.
func progressPrinter(w io.Writer, lang string) lingoflow.EventFunc {
	return func(ev lingoflow.Event) {
		switch ev.Type {
		case lingoflow.EventInit:
			fmt.Fprintf(w, "[%s] %d keys\n", lang, ev.TotalKeys)
		case lingoflow.EventProgress:
			fmt.Fprintf(w, "[%s] %d/%d %s\n", lang, ev.Completed, ev.Total, ev.Key)
		case lingoflow.EventComplete:
			fmt.Fprintf(w, "[%s] done\n", lang)
		case lingoflow.EventError:
			fmt.Fprintf(w, "[%s] failed: %s\n", lang, ev.Message)
		}
	}
}

func printResults(w io.Writer, resp *dispatch.Response, elapsed time.Duration) {
	fmt.Fprintf(w, "Done in %v\n", elapsed.Round(time.Millisecond))
	for _, res := range resp.Results {
		switch {
		case res.Error != "":
			fmt.Fprintf(w, "  %-8s failed: %s\n", res.Language, res.Error)
		case res.Dispatched:
			fmt.Fprintf(w, "  %-8s dispatched\n", res.Language)
		default:
			fmt.Fprintf(w, "  %-8s %s (translated %d, fallbacks %d, resumed %d)\n",
				res.Language, res.Artifact, res.Translated, res.Fallbacks, res.Resumed)
		}
	}
}

// runDryRun shows the units and the chunk plan without calling the API.
func runDryRun(w io.Writer, cfg *config.Config, doc any, inputName string, langs []string, jsonOut bool) error {
	flat := document.Flatten(doc)
	keys := flat.Keys()
	size := chunker.OptimalChunkSize(cfg.Job.ChunkSize, cfg.RateLimits.PerMinute, cfg.RateLimits.PerDay, len(keys))
	chunks := chunker.Split(keys, size)

	tokens := 0
	for _, k := range keys {
		v, _ := flat.Get(k)
		tokens += chunker.EstimateTokens(v)
	}

	if jsonOut {
		type dryRunOutput struct {
			InputFile       string     `json:"input_file"`
			TargetLanguages []string   `json:"target_languages"`
			KeyCount        int        `json:"key_count"`
			EstimatedTokens int        `json:"estimated_tokens"`
			ChunkSize       int        `json:"chunk_size"`
			Chunks          [][]string `json:"chunks"`
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dryRunOutput{
			InputFile:       inputName,
			TargetLanguages: langs,
			KeyCount:        len(keys),
			EstimatedTokens: tokens,
			ChunkSize:       size,
			Chunks:          chunks,
		})
	}

	fmt.Fprintf(w, "Dry run: %s -> %s\n", inputName, strings.Join(langs, ", "))
	fmt.Fprintf(w, "Found %d translatable strings (~%d tokens), %d requests per language\n", len(keys), tokens, len(keys))
	fmt.Fprintf(w, "Chunk size %d at %d/min, %d/day: %d chunks\n\n", size, cfg.RateLimits.PerMinute, cfg.RateLimits.PerDay, len(chunks))

	for i, chunk := range chunks {
		fmt.Fprintf(w, "Chunk %d:\n", i+1)
		for _, k := range chunk {
			v, _ := flat.Get(k)
			fmt.Fprintf(w, "  %s = %q\n", k, truncateRunes(v, 60))
		}
	}
	return nil
}

// truncateRunes shortens s to at most limit characters, ending in "..." when
// it was cut. It never splits a multi-byte character.
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
