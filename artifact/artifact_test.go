package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/ZaguanLabs/lingoflow/document"
)

func TestName(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	tests := []struct {
		input string
		want  string
	}{
		{"locales/en.json", "en-es-1700000000123.json"},
		{"/tmp/homepage.strings.json", "homepage.strings-es-1700000000123.json"},
		{"article", "article-es-1700000000123.json"},
	}
	for _, tt := range tests {
		if got := Name(tt.input, "es", at); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBlobStore_WriteDocument(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore(memblob.OpenBucket(nil))
	defer store.Close()

	doc, err := document.Parse([]byte(`{"b":"Hola","a":["Mundo"]}`))
	if err != nil {
		t.Fatal(err)
	}

	name, err := WriteDocument(ctx, store, "en.json", "es", doc, time.UnixMilli(42))
	if err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	if name != "en-es-42.json" {
		t.Errorf("Expected en-es-42.json, got %q", name)
	}

	data, err := store.Get(ctx, name)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	back, err := document.Parse(data)
	if err != nil {
		t.Fatalf("Stored document is not JSON: %v", err)
	}
	if !document.Equal(doc, back) {
		t.Errorf("Expected stored document to match, got %s", data)
	}
	if !strings.HasPrefix(string(data), "{\n  \"b\"") {
		t.Errorf("Expected indented output in key order, got %s", data)
	}
}

func TestBlobStore_ListAndMissing(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore(memblob.OpenBucket(nil))
	defer store.Close()

	for _, name := range []string{"en-fr-2.json", "en-es-1.json", "docs-es-3.json"} {
		if err := store.Put(ctx, name, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	names, err := store.List(ctx, "en-")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if want := []string{"en-es-1.json", "en-fr-2.json"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}

	if _, err := store.Get(ctx, "nope.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "out")
	store, err := Open(ctx, Config{URL: dir})
	if err != nil {
		t.Fatalf("Open(dir) failed: %v", err)
	}
	if err := store.Put(ctx, "a-es-1.json", []byte("{}")); err != nil {
		t.Errorf("Put into created directory failed: %v", err)
	}
	store.Close()

	mem, err := Open(ctx, Config{URL: "mem://"})
	if err != nil {
		t.Fatalf("Open(mem://) failed: %v", err)
	}
	mem.Close()

	if _, err := Open(ctx, Config{}); err == nil {
		t.Error("Expected error without URL or endpoint")
	}
	if _, err := Open(ctx, Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("Expected error for endpoint without credentials")
	}
}

func TestNewMinioStore_Validation(t *testing.T) {
	cases := []MinioConfig{
		{AccessKey: "a", SecretKey: "s", Bucket: "b"},
		{Endpoint: "localhost:9000", Bucket: "b"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"},
	}
	for i, cfg := range cases {
		if _, err := NewMinioStore(cfg); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}

	store, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"})
	if err != nil {
		t.Fatalf("NewMinioStore failed: %v", err)
	}
	if store.region != "us-east-1" {
		t.Errorf("Expected default region, got %q", store.region)
	}
}

// fakeS3 serves the few path-style requests the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = data
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key><BucketName>%s</BucketName></Error>`, key, bucket)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinioStore_PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewMinioStore(MinioConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "artifacts",
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "/en-es-1.json", []byte(`{"a":"b"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fake.mu.Lock()
	created := fake.buckets["artifacts"]
	stored := string(fake.objects["artifacts/en-es-1.json"])
	fake.mu.Unlock()
	if !created {
		t.Error("Expected the bucket to be created on first use")
	}
	if stored != `{"a":"b"}` {
		t.Errorf("Expected object under a trimmed key, got %q", stored)
	}

	data, err := store.Get(ctx, "en-es-1.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != `{"a":"b"}` {
		t.Errorf("Unexpected content %q", data)
	}
}
