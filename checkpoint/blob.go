package checkpoint

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"
)

// BlobStore keeps checkpoints as objects in a gocloud bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore wraps an open bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// OpenBlobStore opens a bucket URL such as file:///var/lib/lingoflow,
// mem://, s3://bucket?region=eu-west-1 or gs://bucket.
func OpenBlobStore(ctx context.Context, url string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint bucket %s: %w", url, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// Load reads a checkpoint object.
func (s *BlobStore) Load(ctx context.Context, name string) (*Progress, error) {
	data, err := s.bucket.ReadAll(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
	}
	return Decode(data)
}

// Save writes a checkpoint object. Drivers commit the object on close, so a
// reader never sees a partial write.
func (s *BlobStore) Save(ctx context.Context, name string, p *Progress) error {
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, name, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", name, err)
	}
	return nil
}

// Delete removes a checkpoint object.
func (s *BlobStore) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Delete(ctx, name); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete checkpoint %s: %w", name, err)
	}
	return nil
}

// Close releases the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
