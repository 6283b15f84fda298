package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gobeaver/filesniff"
)

// API is the subset of the S3 client the adapter uses.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// DefaultPollInterval is the interval between listings of a Watch.
const DefaultPollInterval = 30 * time.Second

// Adapter provides an S3 implementation of filesniff.Store
type Adapter struct {
	client       API
	bucket       string
	prefix       string
	pollInterval time.Duration
}

// AdapterOption is a function that configures Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the prefix for S3 objects
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

// New creates a new S3 adapter
func New(client API, bucket string, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:       client,
		bucket:       bucket,
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
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(filePath)),
	})
	if err != nil {
		return nil, mapS3Error("read", filePath, err)
	}

	return resp.Body, nil
}

// ReadRange implements filesniff.Store with a ranged GetObject.
func (a *Adapter) ReadRange(ctx context.Context, filePath string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrInvalidRange}
	}
	if length == 0 {
		return []byte{}, nil
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(filePath)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		// Ranges starting past the end are not satisfiable
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "InvalidRange" {
			return []byte{}, nil
		}
		return nil, mapS3Error("read", filePath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, length))
	if err != nil {
		return nil, mapS3Error("read", filePath, err)
	}
	return data, nil
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filesniff.FileInfo, error) {
	key := a.key(filePath)

	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("stat", filePath, err)
	}

	// Extract metadata
	metadata := make(map[string]string, len(resp.Metadata)+1)
	for k, v := range resp.Metadata {
		metadata[k] = v
	}
	if resp.ETag != nil {
		metadata["etag"] = strings.Trim(*resp.ETag, `"`)
	}

	rel := strings.TrimPrefix(key, a.prefix)
	return &filesniff.FileInfo{
		Name:        path.Base(rel),
		Path:        rel,
		Size:        aws.ToInt64(resp.ContentLength),
		ModTime:     aws.ToTime(resp.LastModified),
		IsDir:       strings.HasSuffix(key, "/"),
		ContentType: aws.ToString(resp.ContentType),
		Metadata:    metadata,
	}, nil
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, prefix string, recursive bool) ([]filesniff.FileInfo, error) {
	// Prepare prefix for listing
	listPrefix := a.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(listPrefix),
	}
	if !recursive {
		// Delimiter for immediate children only
		input.Delimiter = aws.String("/")
	}

	var files []filesniff.FileInfo
	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("listcontents", prefix, err)
		}

		// Add directories (common prefixes)
		for _, p := range page.CommonPrefixes {
			rel := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), a.prefix), "/")
			if rel == "" {
				continue
			}
			files = append(files, filesniff.FileInfo{
				Name:  path.Base(rel),
				Path:  rel,
				IsDir: true,
			})
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Skip the directory marker itself
			if key == listPrefix {
				continue
			}

			rel := strings.TrimPrefix(key, a.prefix)
			isDir := strings.HasSuffix(rel, "/")
			rel = strings.TrimSuffix(rel, "/")

			files = append(files, filesniff.FileInfo{
				Name:    path.Base(rel),
				Path:    rel,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
				IsDir:   isDir,
			})
		}
	}

	return files, nil
}

// mapS3Error maps S3 errors to filesniff errors
func mapS3Error(op, filePath string, err error) error {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &nsk), errors.As(err, &notFound), errors.As(err, &noBucket):
		err = filesniff.ErrNotExist
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		var ae smithy.APIError
		if errors.As(err, &ae) && (ae.ErrorCode() == "AccessDenied" || ae.ErrorCode() == "Forbidden") {
			err = filesniff.ErrNotAllowed
		}
	}

	return &filesniff.PathError{Op: op, Path: filePath, Err: err}
}

// ============================================================================
// Watcher Implementation (Polling-based)
// ============================================================================

// Watch implements filesniff.CanWatch by polling: S3 has no native events
// without bucket notifications. The filter is a glob over object paths.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	return filesniff.WatchByPolling(ctx, a, "", filesniff.Glob(filter), a.pollInterval)
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
)
