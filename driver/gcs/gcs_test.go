package gcs

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

	"cloud.google.com/go/storage"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/gobeaver/filesniff"
)

var updated = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type rangeCall struct {
	key            string
	offset, length int64
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []rangeCall
}

func newFakeBucket(objects map[string]string) *fakeBucket {
	b := &fakeBucket{objects: make(map[string][]byte)}
	for k, v := range objects {
		b.objects[k] = []byte(v)
	}
	return b
}

func (b *fakeBucket) put(key string, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = body
}

func (b *fakeBucket) attrs(key string) *storage.ObjectAttrs {
	return &storage.ObjectAttrs{
		Name:       key,
		Size:       int64(len(b.objects[key])),
		Updated:    updated,
		Generation: 7,
	}
}

func (b *fakeBucket) Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return nil, storage.ErrObjectNotExist
	}
	return b.attrs(key), nil
}

func (b *fakeBucket) NewRangeReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, rangeCall{key, offset, length})
	body, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	if offset >= int64(len(body)) && len(body) > 0 {
		return nil, &googleapi.Error{Code: http.StatusRequestedRangeNotSatisfiable}
	}
	end := int64(len(body))
	if length >= 0 {
		end = min(end, offset+length)
	}
	return io.NopCloser(bytes.NewReader(body[offset:end])), nil
}

type sliceIterator struct {
	items []*storage.ObjectAttrs
}

func (it *sliceIterator) Next() (*storage.ObjectAttrs, error) {
	if len(it.items) == 0 {
		return nil, iterator.Done
	}
	next := it.items[0]
	it.items = it.items[1:]
	return next, nil
}

func (b *fakeBucket) Objects(ctx context.Context, q *storage.Query) objectIterator {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	it := &sliceIterator{}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, q.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, q.Prefix)
		if q.Delimiter != "" {
			if i := strings.Index(rest, q.Delimiter); i >= 0 {
				p := q.Prefix + rest[:i+1]
				if !seen[p] {
					seen[p] = true
					it.items = append(it.items, &storage.ObjectAttrs{Prefix: p})
				}
				continue
			}
		}
		it.items = append(it.items, b.attrs(k))
	}
	return it
}

func TestReadRange(t *testing.T) {
	bkt := newFakeBucket(map[string]string{"pre/f.bin": "0123456789"})
	a := newAdapter(bkt, WithPrefix("pre"))
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{"head", 0, 3, "012"},
		{"clipped", 8, 10, "89"},
		{"past end", 12, 4, ""},
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

	want := []rangeCall{{"pre/f.bin", 0, 3}, {"pre/f.bin", 8, 10}, {"pre/f.bin", 12, 4}}
	if diff := cmp.Diff(want, bkt.calls, cmp.AllowUnexported(rangeCall{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if _, err := a.ReadRange(ctx, "missing", 0, 1); !filesniff.IsNotExist(err) {
		t.Errorf("missing error = %v", err)
	}
	if _, err := a.ReadRange(ctx, "f.bin", 0, -1); !errors.Is(err, filesniff.ErrInvalidRange) {
		t.Errorf("range error = %v", err)
	}
}

func TestRead(t *testing.T) {
	a := newAdapter(newFakeBucket(map[string]string{"doc.txt": "hello"}))

	rc, err := a.Read(context.Background(), "doc.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "hello" {
		t.Errorf("Read() = %q", got)
	}
}

func TestStatAndList(t *testing.T) {
	a := newAdapter(newFakeBucket(map[string]string{
		"pre/a.txt":     "a",
		"pre/d/b.txt":   "bb",
		"pre/d/e/c.txt": "ccc",
	}), WithPrefix("/pre/"))
	ctx := context.Background()

	info, err := a.Stat(ctx, "d/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := &filesniff.FileInfo{
		Name:     "b.txt",
		Path:     "d/b.txt",
		Size:     2,
		ModTime:  updated,
		Metadata: map[string]string{"generation": "7"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Stat() mismatch (-want +got):\n%s", diff)
	}

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

	if _, err := a.Stat(ctx, "nope"); !filesniff.IsNotExist(err) {
		t.Errorf("missing error = %v", err)
	}
}

func TestMapGCSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"object", storage.ErrObjectNotExist, filesniff.ErrNotExist},
		{"bucket", storage.ErrBucketNotExist, filesniff.ErrNotExist},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, filesniff.ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mapGCSError("stat", "x", tt.err); !errors.Is(err, tt.want) {
				t.Errorf("mapGCSError() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassifyAndWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bkt := newFakeBucket(map[string]string{"in/a.pdf": "%PDF-1.5\n"})
	a := newAdapter(bkt, WithPollInterval(10*time.Millisecond))

	r, err := filesniff.NewSniffer(a).Classify(ctx, "in/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if r.Ext != "pdf" {
		t.Errorf("Classify() = %+v, want pdf", r)
	}

	token, err := a.Watch(ctx, "in/**")
	if err != nil {
		t.Fatal(err)
	}
	bkt.put("in/sub/b.pdf", []byte("%PDF-"))

	deadline := time.After(5 * time.Second)
	for !token.HasChanged() {
		select {
		case <-deadline:
			t.Fatal("token did not fire")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if diff := cmp.Diff([]string{"in/sub/b.pdf"}, token.Changed()); diff != "" {
		t.Errorf("Changed() mismatch (-want +got):\n%s", diff)
	}
}
