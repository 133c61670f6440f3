package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"multitool/internal/core"
	"multitool/internal/services"
)

// GCSStore keeps artifacts as objects <feature>/<name> in a bucket. It
// authenticates with Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

var _ services.ArtifactStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("missing GCS bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func objectName(f core.Feature, name string) string {
	return path.Join(string(f), name)
}

func (s *GCSStore) object(f core.Feature, name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(objectName(f, name))
}

func (s *GCSStore) Save(ctx context.Context, f core.Feature, name string, r io.Reader, contentType string) error {
	if err := validate(f, name); err != nil {
		return err
	}
	w := s.object(f, name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (s *GCSStore) Open(ctx context.Context, f core.Feature, name string) (io.ReadCloser, error) {
	if err := validate(f, name); err != nil {
		return nil, err
	}
	rc, err := s.object(f, name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return rc, nil
}

func (s *GCSStore) Exists(ctx context.Context, f core.Feature, name string) (bool, error) {
	if err := validate(f, name); err != nil {
		return false, err
	}
	_, err := s.object(f, name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read GCS object attrs: %w", err)
	}
	return true, nil
}

func (s *GCSStore) Clear(ctx context.Context, f core.Feature) error {
	if !f.Valid() {
		return fmt.Errorf("%w: unknown feature %q", core.ErrInvalidInput, f)
	}
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: string(f) + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list GCS objects: %w", err)
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
	}
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
