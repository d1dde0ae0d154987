// Package checkpoint persists the partial progress of long translation jobs
// so an interrupted job can resume without repeating billed calls.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaguanLabs/lingoflow/document"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")

	// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
	ErrCorrupt = errors.New("checkpoint is corrupt")
)

// Progress is the persisted state of one job.
type Progress struct {
	CompletedKeys      []string              `json:"completedKeys"`
	TranslatedFlatJSON *document.FlatMapping `json:"translatedFlatJson"`
	StartTime          int64                 `json:"startTime"` // Unix milliseconds
	TotalKeys          int                   `json:"totalKeys"`
}

// NewProgress returns an empty record for a job of totalKeys keys.
func NewProgress(totalKeys int, start time.Time) *Progress {
	return &Progress{
		CompletedKeys:      []string{},
		TranslatedFlatJSON: document.NewFlatMapping(),
		StartTime:          start.UnixMilli(),
		TotalKeys:          totalKeys,
	}
}

// StartedAt returns StartTime as a time.
func (p *Progress) StartedAt() time.Time {
	return time.UnixMilli(p.StartTime)
}

// Record marks key completed with its final value.
func (p *Progress) Record(key, value string) {
	if p.TranslatedFlatJSON == nil {
		p.TranslatedFlatJSON = document.NewFlatMapping()
	}
	p.CompletedKeys = append(p.CompletedKeys, key)
	p.TranslatedFlatJSON.Set(key, value)
}

// Completed returns the completed keys as a set.
func (p *Progress) Completed() map[string]bool {
	set := make(map[string]bool, len(p.CompletedKeys))
	for _, k := range p.CompletedKeys {
		set[k] = true
	}
	return set
}

// Encode serializes p as indented JSON.
func Encode(p *Progress) ([]byte, error) {
	if p.TranslatedFlatJSON == nil {
		p.TranslatedFlatJSON = document.NewFlatMapping()
	}
	if p.CompletedKeys == nil {
		p.CompletedKeys = []string{}
	}
	return json.MarshalIndent(p, "", "  ")
}

// Decode parses a checkpoint. Decode failures wrap ErrCorrupt.
func Decode(data []byte) (*Progress, error) {
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if p.TranslatedFlatJSON == nil {
		p.TranslatedFlatJSON = document.NewFlatMapping()
	}
	for _, k := range p.CompletedKeys {
		if !p.TranslatedFlatJSON.Has(k) {
			return nil, fmt.Errorf("%w: completed key %q has no translation", ErrCorrupt, k)
		}
	}
	return &p, nil
}

// Name returns the checkpoint name for an input file and target language:
// "<basename>-<lang>-progress.json".
func Name(inputPath, targetLang string) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s-%s-progress.json", base, targetLang)
}

// Store loads, saves and deletes checkpoints by name. A store is owned by
// one job at a time per name.
type Store interface {
	// Load returns ErrNoCheckpoint when name does not exist.
	Load(ctx context.Context, name string) (*Progress, error)
	Save(ctx context.Context, name string, p *Progress) error
	// Delete succeeds when name does not exist.
	Delete(ctx context.Context, name string) error
}

// noopStore never stores anything.
type noopStore struct{}

// Noop returns a store that keeps nothing.
func Noop() Store {
	return noopStore{}
}

func (noopStore) Load(context.Context, string) (*Progress, error) { return nil, ErrNoCheckpoint }
func (noopStore) Save(context.Context, string, *Progress) error   { return nil }
func (noopStore) Delete(context.Context, string) error            { return nil }
