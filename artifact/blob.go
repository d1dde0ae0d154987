package artifact

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // gs:// driver
	_ "gocloud.dev/blob/memblob" // mem:// driver
	_ "gocloud.dev/blob/s3blob"  // s3:// driver
	"gocloud.dev/gcerrors"
)

// BlobStore keeps artifacts in a gocloud bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore wraps an open bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// OpenBlobStore opens a bucket URL. A value without a scheme is a local
// directory, created if missing.
func OpenBlobStore(ctx context.Context, url string) (*BlobStore, error) {
	if !strings.Contains(url, "://") {
		bucket, err := fileblob.OpenBucket(url, &fileblob.Options{CreateDir: true})
		if err != nil {
			return nil, fmt.Errorf("open artifact directory %s: %w", url, err)
		}
		return &BlobStore{bucket: bucket}, nil
	}

	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open artifact bucket %s: %w", url, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

func (s *BlobStore) Put(ctx context.Context, name string, content []byte) error {
	return s.bucket.WriteAll(ctx, name, content, &blob.WriterOptions{ContentType: "application/json"})
}

func (s *BlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir {
			continue
		}
		names = append(names, obj.Key)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

var _ Store = (*BlobStore)(nil)
