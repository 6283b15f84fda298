package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/gobeaver/filesniff"
)

// DefaultPollInterval is the interval between listings of a Watch.
const DefaultPollInterval = 30 * time.Second

// containerAPI is the part of a blob container the adapter uses.
type containerAPI interface {
	NewListBlobsFlatPager(o *container.ListBlobsFlatOptions) *runtime.Pager[container.ListBlobsFlatResponse]
	NewListBlobsHierarchyPager(delimiter string, o *container.ListBlobsHierarchyOptions) *runtime.Pager[container.ListBlobsHierarchyResponse]
	blobProperties(ctx context.Context, blobName string) (blob.GetPropertiesResponse, error)
	downloadRange(ctx context.Context, blobName string, offset, count int64) (io.ReadCloser, error)
}

// containerClient serves containerAPI from an Azure container client.
type containerClient struct {
	*container.Client
}

func (c containerClient) blobProperties(ctx context.Context, blobName string) (blob.GetPropertiesResponse, error) {
	return c.NewBlobClient(blobName).GetProperties(ctx, nil)
}

func (c containerClient) downloadRange(ctx context.Context, blobName string, offset, count int64) (io.ReadCloser, error) {
	resp, err := c.NewBlobClient(blobName).DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: count},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Adapter provides an Azure Blob Storage implementation of filesniff.Store
type Adapter struct {
	container    containerAPI
	prefix       string
	pollInterval time.Duration
}

// AdapterOption is a function that configures Azure Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the prefix for Azure blobs
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

// WithPollInterval sets how often Watch lists the container.
func WithPollInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.pollInterval = d
	}
}

// New creates a new Azure Blob Storage adapter
func New(client *container.Client, options ...AdapterOption) *Adapter {
	return newAdapter(containerClient{client}, options...)
}

func newAdapter(c containerAPI, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		container:    c,
		pollInterval: DefaultPollInterval,
	}

	// Apply options
	for _, option := range options {
		option(adapter)
	}

	return adapter
}

func (a *Adapter) blobName(filePath string) string {
	return a.prefix + strings.TrimPrefix(path.Clean("/"+filePath), "/")
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	body, err := a.container.downloadRange(ctx, a.blobName(filePath), 0, blob.CountToEnd)
	if err != nil {
		return nil, mapAzureError("read", filePath, err)
	}
	return body, nil
}

// ReadRange implements filesniff.Store with a ranged download.
func (a *Adapter) ReadRange(ctx context.Context, filePath string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrInvalidRange}
	}
	if length == 0 {
		return []byte{}, nil
	}

	body, err := a.container.downloadRange(ctx, a.blobName(filePath), offset, length)
	if err != nil {
		if bloberror.HasCode(err, bloberror.InvalidRange) {
			return []byte{}, nil
		}
		return nil, mapAzureError("read", filePath, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, length))
	if err != nil {
		return nil, mapAzureError("read", filePath, err)
	}
	return data, nil
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filesniff.FileInfo, error) {
	name := a.blobName(filePath)

	props, err := a.container.blobProperties(ctx, name)
	if err != nil {
		return nil, mapAzureError("stat", filePath, err)
	}

	// Convert metadata from *string to string
	metadata := make(map[string]string, len(props.Metadata)+1)
	for k, v := range props.Metadata {
		if v != nil {
			metadata[k] = *v
		}
	}
	if props.ETag != nil {
		metadata["etag"] = strings.Trim(string(*props.ETag), `"`)
	}

	rel := strings.TrimPrefix(name, a.prefix)
	return &filesniff.FileInfo{
		Name:        path.Base(rel),
		Path:        rel,
		Size:        deref(props.ContentLength),
		ModTime:     deref(props.LastModified),
		IsDir:       strings.HasSuffix(name, "/"),
		ContentType: deref(props.ContentType),
		Metadata:    metadata,
	}, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (a *Adapter) itemInfo(item *container.BlobItem) filesniff.FileInfo {
	rel := strings.TrimPrefix(*item.Name, a.prefix)
	info := filesniff.FileInfo{
		Name: path.Base(strings.TrimSuffix(rel, "/")),
		Path: strings.TrimSuffix(rel, "/"),
	}
	if p := item.Properties; p != nil {
		info.Size = deref(p.ContentLength)
		info.ModTime = deref(p.LastModified)
		info.ContentType = deref(p.ContentType)
	}
	info.IsDir = strings.HasSuffix(rel, "/") || info.ContentType == "application/x-directory"
	return info
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, dirPath string, recursive bool) ([]filesniff.FileInfo, error) {
	// Prepare prefix for listing
	listPrefix := a.blobName(dirPath)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	var files []filesniff.FileInfo

	if recursive {
		// Recursive listing - use flat pager
		pager := a.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
			Prefix: &listPrefix,
		})

		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return nil, mapAzureError("listcontents", dirPath, err)
			}
			if resp.Segment == nil {
				continue
			}

			for _, item := range resp.Segment.BlobItems {
				// Skip the directory itself
				if item.Name == nil || *item.Name == listPrefix {
					continue
				}
				files = append(files, a.itemInfo(item))
			}
		}
		return files, nil
	}

	// Non-recursive listing - use hierarchy pager
	pager := a.container.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: &listPrefix,
	})

	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapAzureError("listcontents", dirPath, err)
		}
		if resp.Segment == nil {
			continue
		}

		// Add directories (blob prefixes)
		for _, blobPrefix := range resp.Segment.BlobPrefixes {
			if blobPrefix.Name == nil {
				continue
			}
			rel := strings.TrimSuffix(strings.TrimPrefix(*blobPrefix.Name, a.prefix), "/")
			if rel == "" {
				continue
			}
			files = append(files, filesniff.FileInfo{
				Name:  path.Base(rel),
				Path:  rel,
				IsDir: true,
			})
		}

		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil || *item.Name == listPrefix {
				continue
			}
			files = append(files, a.itemInfo(item))
		}
	}

	return files, nil
}

// mapAzureError maps Azure errors to filesniff errors
func mapAzureError(op, filePath string, err error) error {
	var respErr *azcore.ResponseError
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		err = filesniff.ErrNotExist
	case errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound:
		err = filesniff.ErrNotExist
	case errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden:
		err = filesniff.ErrNotAllowed
	}

	return &filesniff.PathError{Op: op, Path: filePath, Err: err}
}

// ============================================================================
// Watcher Implementation (Polling-based)
// ============================================================================

// Watch implements filesniff.CanWatch by polling blob listings.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	return filesniff.WatchByPolling(ctx, a, "", filesniff.Glob(filter), a.pollInterval)
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
)
