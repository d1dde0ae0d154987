package lingoflow_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/cache"
	"github.com/ZaguanLabs/lingoflow/chunker"
	"github.com/ZaguanLabs/lingoflow/document"
	"github.com/ZaguanLabs/lingoflow/processor"
	"github.com/ZaguanLabs/lingoflow/provider"
	"github.com/ZaguanLabs/lingoflow/stream"
)

// Benchmarks for performance validation

func BenchmarkHashText(b *testing.B) {
	text := "Hello World, this is a sample text for hashing"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lingoflow.HashText(text)
	}
}

func BenchmarkCacheKey(b *testing.B) {
	hash := "a591a6d40bf420404a011733cfb7b190d62c65bf0bcda32b57b277d9ad9f146e"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lingoflow.CacheKey(hash, "en", "es_ES")
	}
}

func BenchmarkLRUCache_Get(b *testing.B) {
	c := cache.NewLRUCache(1000, time.Hour)
	_ = c.Set("test-key", "test-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("test-key")
	}
}

func BenchmarkLRUCache_Set(b *testing.B) {
	c := cache.NewLRUCache(1000, time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set("test-key", "test-value")
	}
}

func benchDocument(n int) []byte {
	buf := []byte(`{"sections":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		s := strconv.Itoa(i)
		buf = append(buf, `{"title":"Section `+s+`","body":{"text":"Paragraph `+s+`","count":`+s+`}}`...)
	}
	return append(buf, "]}"...)
}

func BenchmarkDocument_FlattenUnflatten(b *testing.B) {
	doc, err := document.Parse(benchDocument(200))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		flat := document.Flatten(doc)
		document.Unflatten(flat, doc)
	}
}

func BenchmarkChunker_Split(b *testing.B) {
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = "key." + strconv.Itoa(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunker.Split(keys, chunker.OptimalChunkSize(0, 15, 1500, len(keys)))
	}
}

func BenchmarkHTMLProcessor_Extract_Medium(b *testing.B) {
	proc := processor.NewHTMLProcessor()
	html := `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<nav><a href="/">Home</a><a href="/about">About</a></nav>
	<main>
		<h1>Welcome to Our Site</h1>
		<p>This is a paragraph with some text.</p>
		<p>Another paragraph here.</p>
		<ul>
			<li>Item one</li>
			<li>Item two</li>
			<li>Item three</li>
		</ul>
	</main>
	<footer><p>Copyright 2024</p></footer>
</body>
</html>`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = proc.Extract(html)
	}
}

func BenchmarkDecoder_NDJSON(b *testing.B) {
	var frames []byte
	for i := 0; i < 100; i++ {
		frames = append(frames, `{"type":"progress","key":"k","translation":"v","completed":1,"total":100}`+"\n"...)
	}
	b.SetBytes(int64(len(frames)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dec := stream.NewDecoder(stream.FormatNDJSON)
		_, _ = dec.Feed(frames)
	}
}

func BenchmarkOrchestrator_Run_Cached(b *testing.B) {
	p := provider.NewMockProvider()
	orch := lingoflow.NewOrchestrator(p,
		lingoflow.WithRateLimits(fastLimits),
		lingoflow.WithCache(cache.NewLRUCache(1000, time.Hour)),
	)
	doc, err := document.Parse(benchDocument(20))
	if err != nil {
		b.Fatal(err)
	}
	job := lingoflow.Job{Document: doc, SourceLang: "en", TargetLang: "es"}

	// Prime the cache
	if _, err := orch.Run(context.Background(), job, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = orch.Run(context.Background(), job, nil)
	}
}

func BenchmarkDirection(b *testing.B) {
	langs := []string{"en_US", "es_ES", "ar_SA", "ja_JP", "he_IL"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lingoflow.Direction(langs[i%len(langs)])
	}
}

func BenchmarkLanguageName(b *testing.B) {
	langs := []string{"en_US", "es_ES", "ar_SA", "ja_JP", "zh_CN"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lingoflow.LanguageName(langs[i%len(langs)])
	}
}
