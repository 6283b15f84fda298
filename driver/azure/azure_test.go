package azure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/google/go-cmp/cmp"

	"github.com/gobeaver/filesniff"
)

var lastModified = time.Date(2024, 8, 9, 10, 11, 12, 0, time.UTC)

type fakeContainer struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	ranges [][2]int64
}

func newFakeContainer(blobs map[string]string) *fakeContainer {
	c := &fakeContainer{blobs: make(map[string][]byte)}
	for k, v := range blobs {
		c.blobs[k] = []byte(v)
	}
	return c
}

func (c *fakeContainer) put(name string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[name] = body
}

func notFound() error {
	return &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "BlobNotFound"}
}

func (c *fakeContainer) blobProperties(ctx context.Context, name string) (blob.GetPropertiesResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.blobs[name]
	if !ok {
		return blob.GetPropertiesResponse{}, notFound()
	}
	etag := azcore.ETag(`"0x8D"`)
	return blob.GetPropertiesResponse{
		ContentLength: to.Ptr(int64(len(body))),
		LastModified:  to.Ptr(lastModified),
		ContentType:   to.Ptr("application/octet-stream"),
		ETag:          &etag,
		Metadata:      map[string]*string{"source": to.Ptr("scanner")},
	}, nil
}

func (c *fakeContainer) downloadRange(ctx context.Context, name string, offset, count int64) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.blobs[name]
	if !ok {
		return nil, notFound()
	}
	c.ranges = append(c.ranges, [2]int64{offset, count})
	if offset >= int64(len(body)) && len(body) > 0 {
		return nil, &azcore.ResponseError{StatusCode: http.StatusRequestedRangeNotSatisfiable, ErrorCode: "InvalidRange"}
	}
	end := int64(len(body))
	if count > 0 {
		end = min(end, offset+count)
	}
	return io.NopCloser(bytes.NewReader(body[offset:end])), nil
}

func (c *fakeContainer) sortedNames(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for k := range c.blobs {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (c *fakeContainer) item(name string) *container.BlobItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &container.BlobItem{
		Name: to.Ptr(name),
		Properties: &container.BlobProperties{
			ContentLength: to.Ptr(int64(len(c.blobs[name]))),
			LastModified:  to.Ptr(lastModified),
		},
	}
}

func singlePage[T any](page T) *runtime.Pager[T] {
	return runtime.NewPager(runtime.PagingHandler[T]{
		More: func(T) bool { return false },
		Fetcher: func(ctx context.Context, _ *T) (T, error) {
			return page, nil
		},
	})
}

func (c *fakeContainer) NewListBlobsFlatPager(o *container.ListBlobsFlatOptions) *runtime.Pager[container.ListBlobsFlatResponse] {
	var items []*container.BlobItem
	for _, name := range c.sortedNames(*o.Prefix) {
		items = append(items, c.item(name))
	}
	var resp container.ListBlobsFlatResponse
	resp.Segment = &container.BlobFlatListSegment{BlobItems: items}
	return singlePage(resp)
}

func (c *fakeContainer) NewListBlobsHierarchyPager(delimiter string, o *container.ListBlobsHierarchyOptions) *runtime.Pager[container.ListBlobsHierarchyResponse] {
	segment := &container.BlobHierarchyListSegment{}
	seen := map[string]bool{}
	for _, name := range c.sortedNames(*o.Prefix) {
		rest := strings.TrimPrefix(name, *o.Prefix)
		if i := strings.Index(rest, delimiter); i >= 0 {
			p := *o.Prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				segment.BlobPrefixes = append(segment.BlobPrefixes, &container.BlobPrefix{Name: to.Ptr(p)})
			}
			continue
		}
		segment.BlobItems = append(segment.BlobItems, c.item(name))
	}
	var resp container.ListBlobsHierarchyResponse
	resp.Segment = segment
	return singlePage(resp)
}

func TestReadRange(t *testing.T) {
	c := newFakeContainer(map[string]string{"x/f.bin": "0123456789"})
	a := newAdapter(c, WithPrefix("x"))
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{"head", 0, 5, "01234"},
		{"clipped", 9, 5, "9"},
		{"past end", 11, 5, ""},
		{"empty", 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.ReadRange(ctx, "f.bin", tt.offset, tt.length)
			if err != nil {
				t.Fatalf("ReadRange() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadRange() = %q, want %q", got, tt.want)
			}
		})
	}

	if diff := cmp.Diff([][2]int64{{0, 5}, {9, 5}, {11, 5}}, c.ranges); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}
	if _, err := a.ReadRange(ctx, "gone", 0, 1); !filesniff.IsNotExist(err) {
		t.Errorf("missing error = %v", err)
	}
	if _, err := a.ReadRange(ctx, "f.bin", -5, 1); !errors.Is(err, filesniff.ErrInvalidRange) {
		t.Errorf("range error = %v", err)
	}
}

func TestStat(t *testing.T) {
	a := newAdapter(newFakeContainer(map[string]string{"docs/a.pdf": "%PDF-"}))

	info, err := a.Stat(context.Background(), "/docs/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	want := &filesniff.FileInfo{
		Name:        "a.pdf",
		Path:        "docs/a.pdf",
		Size:        5,
		ModTime:     lastModified,
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"source": "scanner", "etag": "0x8D"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Stat() mismatch (-want +got):\n%s", diff)
	}
}

func TestListContents(t *testing.T) {
	a := newAdapter(newFakeContainer(map[string]string{
		"p/a.txt":     "a",
		"p/d/b.txt":   "b",
		"p/d/e/c.txt": "c",
	}), WithPrefix("p/"))
	ctx := context.Background()

	paths := func(files []filesniff.FileInfo) []string {
		out := make([]string, len(files))
		for i, f := range files {
			out[i] = f.Path
		}
		sort.Strings(out)
		return out
	}

	shallow, err := a.ListContents(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a.txt", "d"}, paths(shallow)); diff != "" {
		t.Errorf("shallow mismatch (-want +got):\n%s", diff)
	}

	deep, err := a.ListContents(ctx, "d", true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"d/b.txt", "d/e/c.txt"}, paths(deep)); diff != "" {
		t.Errorf("recursive mismatch (-want +got):\n%s", diff)
	}
}

func TestMapAzureError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"blob", notFound(), filesniff.ErrNotExist},
		{"container", &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ContainerNotFound"}, filesniff.ErrNotExist},
		{"forbidden", &azcore.ResponseError{StatusCode: http.StatusForbidden}, filesniff.ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mapAzureError("stat", "x", tt.err); !errors.Is(err, tt.want) {
				t.Errorf("mapAzureError() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassifyAndWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body := append([]byte("PK\x03\x04"), make([]byte, 6000)...)
	c := newFakeContainer(map[string]string{"in/a.bin": string(body)})
	a := newAdapter(c, WithPollInterval(10*time.Millisecond))

	r, err := filesniff.NewSniffer(a).Classify(ctx, "in/a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if r.Ext != "zip" {
		t.Errorf("Classify() = %+v, want zip", r)
	}

	token, err := a.Watch(ctx, "*.bin")
	if err != nil {
		t.Fatal(err)
	}
	c.put("in/deep/b.bin", []byte("x"))

	deadline := time.After(5 * time.Second)
	for !token.HasChanged() {
		select {
		case <-deadline:
			t.Fatal("token did not fire")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if diff := cmp.Diff([]string{"in/deep/b.bin"}, token.Changed()); diff != "" {
		t.Errorf("Changed() mismatch (-want +got):\n%s", diff)
	}
}
