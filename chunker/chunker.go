// Package chunker sizes the batches a long job is split into and picks
// per-call timeouts from an estimated token count.
package chunker

import "time"

// DefaultChunkSize is the default number of keys per chunk.
// Small chunks keep a job well under the per-minute quota.
const DefaultChunkSize = 5

// EstimateTokens estimates the token count for a text.
// Uses a simple heuristic: ~4 characters per token for Latin languages.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// OptimalChunkSize caps base by half the per-minute quota, a tenth of the
// per-day quota and the number of remaining keys. The result is at least 1.
func OptimalChunkSize(base, perMinute, perDay, remaining int) int {
	if base <= 0 {
		base = DefaultChunkSize
	}
	size := base
	if perMinute > 0 && perMinute/2 < size {
		size = perMinute / 2
	}
	if perDay > 0 && perDay/10 < size {
		size = perDay / 10
	}
	if remaining < size {
		size = remaining
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Split partitions keys into consecutive chunks of at most size keys.
// Order is preserved and every key appears exactly once.
func Split(keys []string, size int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// Timeouts selects a per-call deadline by text size.
type Timeouts struct {
	Short time.Duration // single short unit
	Long  time.Duration // articles and long units
	Max   time.Duration // very large texts
	// LongAfter and MaxAfter are token thresholds for Long and Max.
	LongAfter int
	MaxAfter  int
}

// DefaultTimeouts returns 10s for short units, 30s past 500 tokens and 60s
// past 4000 tokens.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Short:     10 * time.Second,
		Long:      30 * time.Second,
		Max:       60 * time.Second,
		LongAfter: 500,
		MaxAfter:  4000,
	}
}

// For returns the timeout for text.
func (t Timeouts) For(text string) time.Duration {
	tokens := EstimateTokens(text)
	switch {
	case t.MaxAfter > 0 && tokens > t.MaxAfter:
		return t.Max
	case t.LongAfter > 0 && tokens > t.LongAfter:
		return t.Long
	default:
		return t.Short
	}
}
