package filesniff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func init() {
	// Register test drivers
	RegisterDriver("local", newFakeDriver)
	RegisterDriver("memory", newFakeDriver)
}

func newFakeDriver(cfg *Config) (Store, error) {
	return newFakeStore(), nil
}

// fakeStore is an in-memory Store counting the ranged reads it serves.
type fakeStore struct {
	mu      sync.RWMutex
	objects map[string]fakeObject
	ranges  atomic.Int64
	failOn  map[string]error
}

type fakeObject struct {
	data    []byte
	modTime time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string]fakeObject),
		failOn:  make(map[string]error),
	}
}

func (s *fakeStore) put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[strings.TrimPrefix(p, "/")] = fakeObject{data: data, modTime: time.Now()}
}

func (s *fakeStore) fail(p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[p] = err
}

func (s *fakeStore) object(op, p string) (fakeObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failOn[p]; ok {
		return fakeObject{}, &PathError{Op: op, Path: p, Err: err}
	}
	obj, ok := s.objects[strings.TrimPrefix(p, "/")]
	if !ok {
		return fakeObject{}, &PathError{Op: op, Path: p, Err: ErrNotExist}
	}
	return obj, nil
}

func (s *fakeStore) Stat(ctx context.Context, p string) (*FileInfo, error) {
	obj, err := s.object("stat", p)
	if err != nil {
		if errors.Is(err, ErrNotExist) && s.isDir(p) {
			return &FileInfo{Name: path.Base(p), Path: p, IsDir: true}, nil
		}
		return nil, err
	}
	return &FileInfo{Name: path.Base(p), Path: p, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

func (s *fakeStore) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	obj, err := s.object("read", p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(obj.data))), nil
}

func (s *fakeStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &PathError{Op: "read", Path: p, Err: ErrInvalidRange}
	}
	obj, err := s.object("read", p)
	if err != nil {
		return nil, err
	}
	s.ranges.Add(1)
	if offset >= int64(len(obj.data)) {
		return []byte{}, nil
	}
	end := min(offset+length, int64(len(obj.data)))
	return append([]byte(nil), obj.data[offset:end]...), nil
}

func (s *fakeStore) isDir(p string) bool {
	prefix := strings.Trim(p, "/") + "/"
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func (s *fakeStore) ListContents(ctx context.Context, dir string, recursive bool) ([]FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var out []FileInfo
	for k, obj := range s.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 && !recursive {
			sub := prefix + rest[:i]
			if !seen[sub] {
				seen[sub] = true
				out = append(out, FileInfo{Name: rest[:i], Path: sub, IsDir: true})
			}
			continue
		}
		out = append(out, FileInfo{Name: path.Base(k), Path: k, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *fakeStore) String() string {
	return fmt.Sprintf("fakeStore(%d objects)", len(s.objects))
}
