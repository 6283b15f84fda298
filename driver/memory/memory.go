package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/gobeaver/filesniff"
)

// ErrFull is returned by Put when the adapter's size limit would be exceeded.
var ErrFull = errors.New("memory store full")

// memoryFile represents an object stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	filter glob.Glob
	base   bool
	token  *filesniff.CallbackChangeToken
}

// Adapter provides an in-memory implementation of filesniff.Store.
// Useful for tests and for classifying uploads held in memory.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]time.Time
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	// Watch support
	watchMu sync.RWMutex
	watches []*watchEntry
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory adapter
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	return &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    map[string]time.Time{"": time.Now()},
		maxSize: maxSize,
	}
}

// Put stores the content read from r at path, replacing any previous object.
// Watchers whose filter matches path are signalled.
func (a *Adapter) Put(ctx context.Context, p string, r io.Reader, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = normalizePath(p)
	if !isValidPath(p) {
		return &filesniff.PathError{Op: "put", Path: p, Err: filesniff.ErrNotAllowed}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return &filesniff.PathError{Op: "put", Path: p, Err: err}
	}

	a.mu.Lock()
	if _, isDir := a.dirs[p]; isDir {
		a.mu.Unlock()
		return &filesniff.PathError{Op: "put", Path: p, Err: filesniff.ErrIsDir}
	}

	newSize := a.size + int64(len(data))
	if existing, exists := a.files[p]; exists {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		a.mu.Unlock()
		return &filesniff.PathError{Op: "put", Path: p, Err: ErrFull}
	}

	a.ensureParentDirs(p)
	a.files[p] = &memoryFile{
		content:     data,
		contentType: mime.TypeByExtension(path.Ext(p)),
		metadata:    metadata,
		modTime:     time.Now(),
	}
	a.size = newSize
	a.mu.Unlock()

	a.notifyWatchers(p)
	return nil
}

// PutBytes stores b at path.
func (a *Adapter) PutBytes(ctx context.Context, p string, b []byte) error {
	return a.Put(ctx, p, bytes.NewReader(b), nil)
}

// Delete removes the object at path.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = normalizePath(p)

	a.mu.Lock()
	file, exists := a.files[p]
	if !exists {
		a.mu.Unlock()
		return &filesniff.PathError{Op: "delete", Path: p, Err: filesniff.ErrNotExist}
	}
	a.size -= int64(len(file.content))
	delete(a.files, p)
	a.mu.Unlock()

	a.notifyWatchers(p)
	return nil
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[p]
	if !exists {
		return nil, a.missing("read", p)
	}
	return io.NopCloser(bytes.NewReader(file.content)), nil
}

// ReadRange implements filesniff.Store. The returned slice is a copy.
func (a *Adapter) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: p, Err: filesniff.ErrInvalidRange}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[p]
	if !exists {
		return nil, a.missing("read", p)
	}

	size := int64(len(file.content))
	if offset >= size {
		return []byte{}, nil
	}
	end := min(offset+length, size)
	return append([]byte(nil), file.content[offset:end]...), nil
}

// missing reports the error for a path that is not an object.
// Must be called with lock held
func (a *Adapter) missing(op, p string) error {
	if _, isDir := a.dirs[p]; isDir {
		return &filesniff.PathError{Op: op, Path: p, Err: filesniff.ErrIsDir}
	}
	return &filesniff.PathError{Op: op, Path: p, Err: filesniff.ErrNotExist}
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, p string) (*filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, exists := a.files[p]; exists {
		info := fileInfo(p, file)
		return &info, nil
	}
	if modTime, exists := a.dirs[p]; exists {
		info := dirInfo(p, modTime)
		return &info, nil
	}

	return nil, &filesniff.PathError{Op: "stat", Path: p, Err: filesniff.ErrNotExist}
}

// ListContents implements filesniff.Store. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, exists := a.dirs[p]; !exists {
		if _, isFile := a.files[p]; isFile {
			return nil, &filesniff.PathError{Op: "listcontents", Path: p, Err: errors.New("not a directory")}
		}
		return nil, &filesniff.PathError{Op: "listcontents", Path: p, Err: filesniff.ErrNotExist}
	}

	var files []filesniff.FileInfo
	for filePath, file := range a.files {
		if a.within(p, filePath, recursive) {
			files = append(files, fileInfo(filePath, file))
		}
	}
	for dirPath, modTime := range a.dirs {
		if dirPath != p && a.within(p, dirPath, recursive) {
			files = append(files, dirInfo(dirPath, modTime))
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// within reports whether child lies below dir, directly unless recursive.
func (a *Adapter) within(dir, child string, recursive bool) bool {
	if child == "" {
		return false
	}
	rel := child
	if dir != "" {
		if !strings.HasPrefix(child, dir+"/") {
			return false
		}
		rel = strings.TrimPrefix(child, dir+"/")
	}
	return recursive || !strings.Contains(rel, "/")
}

// Clear removes all objects.
// Useful for testing cleanup
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]time.Time{"": time.Now()}
	a.size = 0
}

// Size returns the current total size of all stored objects
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of objects stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ensureParentDirs creates all parent directories for a given path
// Must be called with lock held
func (a *Adapter) ensureParentDirs(p string) {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = time.Now()
		}
	}
}

func fileInfo(p string, file *memoryFile) filesniff.FileInfo {
	return filesniff.FileInfo{
		Name:        path.Base(p),
		Path:        p,
		Size:        int64(len(file.content)),
		ModTime:     file.modTime,
		ContentType: file.contentType,
		Metadata:    file.metadata,
	}
}

func dirInfo(p string, modTime time.Time) filesniff.FileInfo {
	return filesniff.FileInfo{
		Name:    path.Base(p),
		Path:    p,
		ModTime: modTime,
		IsDir:   true,
	}
}

// normalizePath normalizes an object path
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// isValidPath checks if a path is valid (no directory traversal)
func isValidPath(p string) bool {
	return p != "" && p != ".." && !strings.HasPrefix(p, "../")
}

// ============================================================================
// Watcher Implementation
// ============================================================================

// Watch implements filesniff.CanWatch. The filter is a glob such as
// "**/*.txt" or "config/*"; a filter without "/" matches base names.
// The token fires on the first Put or Delete of a matching path.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter = strings.TrimPrefix(filter, "/")
	g, err := glob.Compile(filter, '/')
	if err != nil {
		return nil, &filesniff.PathError{Op: "watch", Path: filter, Err: err}
	}

	token := filesniff.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{
		filter: g,
		base:   !strings.Contains(filter, "/"),
		token:  token,
	})
	a.watchMu.Unlock()

	// Clean up when the token fires or the context is cancelled
	fired := make(chan struct{})
	var once sync.Once
	unregister := token.RegisterChangeCallback(func() { once.Do(func() { close(fired) }) })
	go func() {
		select {
		case <-ctx.Done():
		case <-fired:
		}
		unregister()
		a.removeWatch(token)
	}()

	return token, nil
}

// notifyWatchers signals all watchers whose filter matches the given path
func (a *Adapter) notifyWatchers(p string) {
	a.watchMu.RLock()
	defer a.watchMu.RUnlock()

	for _, entry := range a.watches {
		if entry.filter.Match(p) || (entry.base && entry.filter.Match(path.Base(p))) {
			entry.token.SignalChange(p)
		}
	}
}

// removeWatch removes a watch entry by token
func (a *Adapter) removeWatch(token *filesniff.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			// Remove by swapping with last element
			a.watches[i] = a.watches[len(a.watches)-1]
			a.watches = a.watches[:len(a.watches)-1]
			return
		}
	}
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
)
