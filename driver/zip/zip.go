package zip

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/filesniff"
)

// Adapter provides a read-only filesniff.Store over the entries of a ZIP
// archive.
type Adapter struct {
	mu     sync.RWMutex
	path   string
	file   *os.File // nil when opened over a caller's io.ReaderAt
	ra     io.ReaderAt
	files  map[string]*zipEntry
	closed bool
}

// zipEntry represents a file or directory in the ZIP
type zipEntry struct {
	file  *zip.File // nil for implied directories
	isDir bool
}

// Open opens an existing ZIP file for reading
func Open(zipPath string) (*Adapter, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat zip: %w", err)
	}

	a, err := NewFromReaderAt(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	a.path = zipPath
	a.file = f
	return a, nil
}

// NewFromReaderAt indexes the archive held by r. The caller keeps ownership
// of r.
func NewFromReaderAt(r io.ReaderAt, size int64) (*Adapter, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip: %w", err)
	}

	a := &Adapter{
		ra:    r,
		files: make(map[string]*zipEntry),
	}

	// Build file index
	for _, f := range reader.File {
		name := normalizePath(f.Name)
		if name == "" || !isValidPath(name) {
			continue
		}
		a.files[name] = &zipEntry{
			file:  f,
			isDir: f.FileInfo().IsDir(),
		}

		// Also add parent directories
		a.ensureParentDirs(name)
	}

	return a, nil
}

// Path returns the archive path, empty for archives opened from a reader.
func (a *Adapter) Path() string {
	return a.path
}

// Close implements filesniff.CanClose
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// lookup returns the entry at filePath.
// Must be called with lock held
func (a *Adapter) lookup(op, filePath string) (*zipEntry, error) {
	if a.closed {
		return nil, &filesniff.PathError{Op: op, Path: filePath, Err: os.ErrClosed}
	}
	entry, exists := a.files[filePath]
	if !exists {
		return nil, &filesniff.PathError{Op: op, Path: filePath, Err: filesniff.ErrNotExist}
	}
	return entry, nil
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	filePath = normalizePath(filePath)
	entry, err := a.lookup("read", filePath)
	if err != nil {
		return nil, err
	}
	if entry.isDir {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrIsDir}
	}

	rc, err := entry.file.Open()
	if err != nil {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
	}
	return rc, nil
}

// ReadRange implements filesniff.Store. Stored entries are read in place;
// compressed entries are inflated from the start up to the end of the
// range.
func (a *Adapter) ReadRange(ctx context.Context, filePath string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrInvalidRange}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	filePath = normalizePath(filePath)
	entry, err := a.lookup("read", filePath)
	if err != nil {
		return nil, err
	}
	if entry.isDir {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrIsDir}
	}

	size := int64(entry.file.UncompressedSize64)
	if offset >= size {
		return []byte{}, nil
	}
	buf := make([]byte, min(length, size-offset))

	if entry.file.Method == zip.Store {
		dataOffset, err := entry.file.DataOffset()
		if err != nil {
			return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
		}
		n, err := a.ra.ReadAt(buf, dataOffset+offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
		}
		return buf[:n], nil
	}

	rc, err := entry.file.Open()
	if err != nil {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
	}
	defer rc.Close()

	if _, err := io.CopyN(io.Discard, rc, offset); err != nil {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
	}
	n, err := io.ReadFull(rc, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: err}
	}
	return buf[:n], nil
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	filePath = normalizePath(filePath)
	if filePath == "" {
		return &filesniff.FileInfo{Name: "/", IsDir: true}, nil
	}

	entry, err := a.lookup("stat", filePath)
	if err != nil {
		return nil, err
	}
	info := entry.info(filePath)
	return &info, nil
}

func (e *zipEntry) info(entryPath string) filesniff.FileInfo {
	fi := filesniff.FileInfo{
		Name:  path.Base(entryPath),
		Path:  entryPath,
		IsDir: e.isDir,
	}
	if e.file != nil {
		fi.ModTime = e.file.Modified
		if !e.isDir {
			fi.Size = int64(e.file.UncompressedSize64)
			fi.ContentType = mime.TypeByExtension(path.Ext(entryPath))
			fi.Metadata = map[string]string{
				"method":          methodName(e.file.Method),
				"compressed_size": fmt.Sprint(e.file.CompressedSize64),
			}
			if e.file.Comment != "" {
				fi.Metadata["comment"] = e.file.Comment
			}
		}
	}
	return fi
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	}
	return fmt.Sprintf("method-%d", m)
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, prefix string, recursive bool) ([]filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	prefix = normalizePath(prefix)

	// Check if prefix is a directory
	if prefix != "" {
		entry, err := a.lookup("listcontents", prefix)
		if err != nil {
			return nil, err
		}
		if !entry.isDir {
			return nil, &filesniff.PathError{Op: "listcontents", Path: prefix, Err: errors.New("not a directory")}
		}
	} else if a.closed {
		return nil, &filesniff.PathError{Op: "listcontents", Path: prefix, Err: os.ErrClosed}
	}

	var files []filesniff.FileInfo
	for entryPath, entry := range a.files {
		relPath := entryPath
		if prefix != "" {
			if !strings.HasPrefix(entryPath, prefix+"/") {
				continue
			}
			relPath = strings.TrimPrefix(entryPath, prefix+"/")
		}
		if !recursive && strings.Contains(relPath, "/") {
			continue
		}
		files = append(files, entry.info(entryPath))
	}

	// Sort by path
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// ensureParentDirs creates parent directory entries
func (a *Adapter) ensureParentDirs(filePath string) {
	for dir := path.Dir(filePath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, exists := a.files[dir]; !exists {
			a.files[dir] = &zipEntry{isDir: true}
		}
	}
}

// normalizePath normalizes a file path
func normalizePath(p string) string {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// isValidPath checks if path is valid (no traversal)
func isValidPath(p string) bool {
	return p != ".." && !strings.HasPrefix(p, "../")
}

// ============================================================================
// Watcher Implementation
// ============================================================================

// Watch implements filesniff.CanWatch.
// Archive contents never change once opened, so the token never fires.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	return filesniff.NeverChangeToken{}, nil
}

// ModTime returns the newest entry modification time.
func (a *Adapter) ModTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var newest time.Time
	for _, e := range a.files {
		if e.file != nil && e.file.Modified.After(newest) {
			newest = e.file.Modified
		}
	}
	return newest
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
	_ filesniff.CanClose = (*Adapter)(nil)
)
