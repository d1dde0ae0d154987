// Package artifact stores finished documents: one object per input file,
// target language and run.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaguanLabs/lingoflow/document"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("artifact not found")

// Store keeps named objects.
type Store interface {
	Put(ctx context.Context, name string, content []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns the sorted names under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Name returns "<basename>-<lang>-<unix ms>.json" for an input file.
func Name(inputPath, targetLang string, at time.Time) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s-%s-%d.json", base, targetLang, at.UnixMilli())
}

// WriteDocument stores doc as indented JSON under Name and returns the name.
func WriteDocument(ctx context.Context, store Store, inputPath, targetLang string, doc any, at time.Time) (string, error) {
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	name := Name(inputPath, targetLang, at)
	if err := store.Put(ctx, name, append(data, '\n')); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return name, nil
}

// Config selects a store. URL takes precedence over Endpoint.
type Config struct {
	// URL is a gocloud bucket URL (file://, mem://, s3://, gs://) or a
	// local directory.
	URL string

	// MinIO / S3-compatible endpoint
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Open builds the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch {
	case strings.TrimSpace(cfg.URL) != "":
		return OpenBlobStore(ctx, cfg.URL)
	case strings.TrimSpace(cfg.Endpoint) != "":
		return NewMinioStore(MinioConfig{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("artifact store requires a URL or an endpoint")
	}
}
