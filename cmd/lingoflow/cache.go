package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/cache"
	"github.com/ZaguanLabs/lingoflow/config"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Export or import the translation cache",
		Long: `Move cached translations between cache backends. The cache is selected by
LINGOFLOW_CACHE_URL (or REDIS_URL).`,
	}
	cmd.AddCommand(newCacheExportCmd(opts), newCacheImportCmd(opts))
	return cmd
}

func openConfiguredCache(cmd *cobra.Command, cfg *config.Config) (cache.Enumerable, error) {
	if cfg.Cache.URL == "" {
		return nil, &lingoflow.ValidationError{Field: "cache.url", Message: "is required (set LINGOFLOW_CACHE_URL or REDIS_URL)"}
	}
	return cache.Open(cmd.Context(), cache.Config{
		URL:       cfg.Cache.URL,
		Size:      cfg.Cache.Size,
		TTL:       cfg.Cache.TTL,
		KeyPrefix: lingoflow.Name + ":",
	})
}

func closeCache(c cache.Enumerable) {
	if closer, ok := c.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func newCacheExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.json>",
		Short: "Write every cached translation to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			c, err := openConfiguredCache(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeCache(c)

			err = cache.NewExporter(c).ExportToFile(args[0], map[string]string{
				"source":  cfg.Cache.URL,
				"version": lingoflow.Version,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "Exported cache to %s\n", args[0])
			return nil
		},
	}
}

func newCacheImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load translations from an exported JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			c, err := openConfiguredCache(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeCache(c)

			res, err := cache.NewImporter(c).ImportFromFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "Imported %d entries (%d failed)\n", res.Imported, res.Failed)
			return nil
		},
	}
}
