// Command lingoflow translates JSON documents, as a resumable batch tool
// or as an HTTP service that streams progress to its clients.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = lingoflow.Version
	commit    = lingoflow.GitCommit
	buildDate = lingoflow.BuildDate
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "lingoflow",
		Short: "Rate-limited, resumable translation of JSON documents",
		Long: `lingoflow translates every string of a JSON document through a generative
language API, one unit at a time, within per-minute and per-day quotas.

Commands:
  serve       Run the HTTP service (streamed jobs, websocket, metrics)
  translate   Translate a JSON file into one or more languages
  improve     Shorten overlong translations of a JSON file
  submit      Send a JSON file to a running service and follow its progress
  cache       Export or import the translation cache
  version     Show version information

Configuration is read from --config (YAML), a .env file and LINGOFLOW_*
environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newServeCmd(opts),
		newTranslateCmd(opts),
		newImproveCmd(opts),
		newSubmitCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(opts.stdout, "%s %s\n", lingoflow.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(opts.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(opts.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
