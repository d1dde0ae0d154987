package main

import (
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/metrics"
	"github.com/ZaguanLabs/lingoflow/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Serve the translation API:

  POST /api/translate          translate one string
  POST /api/translate-article  translate an article (text or html)
  POST /api/improve            shorten one translation
  POST /api/improve-json       shorten a JSON translation, streamed
  POST /api/jobs               translate a JSON document, streamed as
                               NDJSON or server-sent events
  GET  /api/jobs/ws            the same over a websocket, with cancel
  GET  /healthz, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Port = addr
			}

			var m *metrics.Metrics
			var obs lingoflow.Observer
			if cfg.Server.Metrics {
				m = metrics.New(metrics.DefaultNamespace)
				obs = m
			}

			svc, err := buildServices(cmd.Context(), cfg, obs)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(server.Config{
				Addr:             cfg.Server.Port,
				ShutdownTimeout:  cfg.Server.ShutdownTimeout,
				AllowRequestKeys: cfg.Server.AllowRequestKeys,
				Provider:         svc.provider,
				Options:          svc.options,
				Metrics:          m,
				ImproveThreshold: cfg.Job.ImproveThreshold,
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from PORT or :8080)")
	return cmd
}
