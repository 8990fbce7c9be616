package zarr

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/go-logr/logr"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// PathStore is the minimal hierarchical byte-blob collaborator the core
// depends on: read/write files by path, check existence, and enumerate
// children. It is intentionally narrow -- S3/GCS-specific concerns live
// behind gocloud.dev/blob's own driver registry, not in this interface.
type PathStore interface {
	Read(ctx context.Context, p string) ([]byte, error)
	Write(ctx context.Context, p string, data []byte) error
	Exists(ctx context.Context, p string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	OpenRead(ctx context.Context, p string) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, p string) (io.WriteCloser, error)
	MkdirAll(ctx context.Context, p string) error
}

// BucketStore implements PathStore over a gocloud.dev/blob.Bucket, the same
// collaborator the teacher's Reader opens via blob.OpenBucket.
type BucketStore struct {
	bucket *blob.Bucket
	log    logr.Logger
}

// OpenBucketStore opens a PathStore for the given gocloud.dev/blob URL
// (file://, mem://, s3://, gs://, ...), exactly as the teacher's NewReader
// does, generalized to read+write.
func OpenBucketStore(ctx context.Context, urlstr string) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, &IOFailureError{Path: urlstr, Cause: err}
	}
	return &BucketStore{bucket: bucket, log: loggerFromContext(ctx)}, nil
}

// NewBucketStore wraps an already-open bucket.
func NewBucketStore(bucket *blob.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket, log: logr.Discard()}
}

// Close releases the underlying bucket.
func (s *BucketStore) Close() error { return s.bucket.Close() }

func (s *BucketStore) Read(ctx context.Context, p string) ([]byte, error) {
	ctx, span := startSpan(ctx, "PathStore.Read", p)
	defer span.End()
	data, err := s.bucket.ReadAll(ctx, p)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, &NotFoundError{Path: p}
		}
		return nil, &IOFailureError{Path: p, Cause: err}
	}
	s.log.V(1).Info("read", "path", p, "bytes", len(data))
	return data, nil
}

func (s *BucketStore) Write(ctx context.Context, p string, data []byte) error {
	ctx, span := startSpan(ctx, "PathStore.Write", p)
	defer span.End()
	if err := s.bucket.WriteAll(ctx, p, data, nil); err != nil {
		return &IOFailureError{Path: p, Cause: err}
	}
	s.log.V(1).Info("write", "path", p, "bytes", len(data))
	return nil
}

func (s *BucketStore) Exists(ctx context.Context, p string) (bool, error) {
	ctx, span := startSpan(ctx, "PathStore.Exists", p)
	defer span.End()
	ok, err := s.bucket.Exists(ctx, p)
	if err != nil {
		return false, &IOFailureError{Path: p, Cause: err}
	}
	return ok, nil
}

// List enumerates the basenames of every key under prefix, one directory
// level deep, matching PathStore's "list(path) -> set<name>" contract.
func (s *BucketStore) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := startSpan(ctx, "PathStore.List", prefix)
	defer span.End()

	dirPrefix := prefix
	if dirPrefix != "" && !strings.HasSuffix(dirPrefix, "/") {
		dirPrefix += "/"
	}

	seen := map[string]struct{}{}
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: dirPrefix, Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &IOFailureError{Path: prefix, Cause: err}
		}
		name := strings.TrimPrefix(obj.Key, dirPrefix)
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *BucketStore) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	ctx, span := startSpan(ctx, "PathStore.OpenRead", p)
	defer span.End()
	r, err := s.bucket.NewReader(ctx, p, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, &NotFoundError{Path: p}
		}
		return nil, &IOFailureError{Path: p, Cause: err}
	}
	return r, nil
}

func (s *BucketStore) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	ctx, span := startSpan(ctx, "PathStore.OpenWrite", p)
	defer span.End()
	w, err := s.bucket.NewWriter(ctx, p, nil)
	if err != nil {
		return nil, &IOFailureError{Path: p, Cause: err}
	}
	return w, nil
}

// MkdirAll is a no-op: blob stores address flat keys, and a "/"-joined key
// prefix is created implicitly the first time a blob under it is written.
func (s *BucketStore) MkdirAll(ctx context.Context, p string) error {
	return nil
}

// JoinPath joins path segments with "/", the separator Zarr stores (and
// gocloud.dev/blob keys) use regardless of host OS.
func JoinPath(elem ...string) string {
	return path.Join(elem...)
}
