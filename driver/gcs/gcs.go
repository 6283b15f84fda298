package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/gobeaver/filesniff"
)

// DefaultPollInterval is the interval between listings of a Watch.
const DefaultPollInterval = 30 * time.Second

// objectAPI is the part of a bucket the adapter uses.
type objectAPI interface {
	Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error)
	NewRangeReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	Objects(ctx context.Context, q *storage.Query) objectIterator
}

type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// bucketAPI serves objectAPI from a storage bucket handle.
type bucketAPI struct {
	bkt *storage.BucketHandle
}

func (b bucketAPI) Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	return b.bkt.Object(key).Attrs(ctx)
}

func (b bucketAPI) NewRangeReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	return b.bkt.Object(key).NewRangeReader(ctx, offset, length)
}

func (b bucketAPI) Objects(ctx context.Context, q *storage.Query) objectIterator {
	return b.bkt.Objects(ctx, q)
}

// Adapter provides a Google Cloud Storage implementation of filesniff.Store
type Adapter struct {
	api          objectAPI
	prefix       string
	pollInterval time.Duration
}

// AdapterOption is a function that configures GCS Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the prefix for GCS objects
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		prefix = strings.TrimPrefix(prefix, "/")
		// Ensure prefix ends with a slash if it's not empty
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		a.prefix = prefix
	}
}

// WithPollInterval sets how often Watch lists the bucket.
func WithPollInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.pollInterval = d
	}
}

// New creates a new GCS adapter
func New(client *storage.Client, bucket string, options ...AdapterOption) *Adapter {
	return newAdapter(bucketAPI{bkt: client.Bucket(bucket)}, options...)
}

func newAdapter(api objectAPI, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		api:          api,
		pollInterval: DefaultPollInterval,
	}

	// Apply options
	for _, option := range options {
		option(adapter)
	}

	return adapter
}

func (a *Adapter) key(filePath string) string {
	return a.prefix + strings.TrimPrefix(path.Clean("/"+filePath), "/")
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	reader, err := a.api.NewRangeReader(ctx, a.key(filePath), 0, -1)
	if err != nil {
		return nil, mapGCSError("read", filePath, err)
	}
	return reader, nil
}

// ReadRange implements filesniff.Store with a ranged object reader.
func (a *Adapter) ReadRange(ctx context.Context, filePath string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrInvalidRange}
	}
	if length == 0 {
		return []byte{}, nil
	}

	reader, err := a.api.NewRangeReader(ctx, a.key(filePath), offset, length)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusRequestedRangeNotSatisfiable {
			return []byte{}, nil
		}
		return nil, mapGCSError("read", filePath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, length))
	if err != nil {
		return nil, mapGCSError("read", filePath, err)
	}
	return data, nil
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filesniff.FileInfo, error) {
	key := a.key(filePath)

	attrs, err := a.api.Attrs(ctx, key)
	if err != nil {
		return nil, mapGCSError("stat", filePath, err)
	}

	info := a.fileInfo(attrs)
	return &info, nil
}

func (a *Adapter) fileInfo(attrs *storage.ObjectAttrs) filesniff.FileInfo {
	rel := strings.TrimSuffix(strings.TrimPrefix(attrs.Name, a.prefix), "/")
	metadata := make(map[string]string, len(attrs.Metadata)+1)
	for k, v := range attrs.Metadata {
		metadata[k] = v
	}
	if attrs.Generation != 0 {
		metadata["generation"] = strconv.FormatInt(attrs.Generation, 10)
	}
	info := filesniff.FileInfo{
		Name:        path.Base(rel),
		Path:        rel,
		Size:        attrs.Size,
		ModTime:     attrs.Updated,
		IsDir:       strings.HasSuffix(attrs.Name, "/") || attrs.ContentType == "application/x-directory",
		ContentType: attrs.ContentType,
		Metadata:    metadata,
	}
	return info
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, dir string, recursive bool) ([]filesniff.FileInfo, error) {
	// Prepare prefix for listing
	listPrefix := a.key(dir)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	// Create query with or without delimiter based on recursive flag
	query := &storage.Query{Prefix: listPrefix}
	if !recursive {
		query.Delimiter = "/"
	}

	var files []filesniff.FileInfo
	it := a.api.Objects(ctx, query)

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapGCSError("listcontents", dir, err)
		}

		// Handle "directory" prefixes (only when not recursive)
		if attrs.Prefix != "" {
			rel := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, a.prefix), "/")
			if rel == "" {
				continue
			}
			files = append(files, filesniff.FileInfo{
				Name:  path.Base(rel),
				Path:  rel,
				IsDir: true,
			})
			continue
		}

		// Skip the directory itself
		if attrs.Name == listPrefix {
			continue
		}

		files = append(files, a.fileInfo(attrs))
	}

	return files, nil
}

// mapGCSError maps GCS errors to filesniff errors
func mapGCSError(op, filePath string, err error) error {
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		err = filesniff.ErrNotExist
	case errors.As(err, &gerr) && (gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized):
		err = filesniff.ErrNotAllowed
	}

	return &filesniff.PathError{Op: op, Path: filePath, Err: err}
}

// ============================================================================
// Watcher Implementation (Polling-based)
// ============================================================================

// Watch implements filesniff.CanWatch by polling object listings.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	return filesniff.WatchByPolling(ctx, a, "", filesniff.Glob(filter), a.pollInterval)
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
)
