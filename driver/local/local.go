package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/filesniff"
)

// Adapter provides a local filesystem implementation of filesniff.Store
// confined to a root directory.
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter. The root must be an existing
// directory.
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("local root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local root %s: not a directory", absRoot)
	}

	return &Adapter{
		root: absRoot,
	}, nil
}

// Root returns the absolute root directory.
func (a *Adapter) Root() string {
	return a.root
}

// resolve maps a store path to a path on disk, refusing paths that escape
// the root.
func (a *Adapter) resolve(op, path string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.FromSlash(path))
	if !isPathUnderRoot(a.root, fullPath) {
		return "", &filesniff.PathError{Op: op, Path: path, Err: filesniff.ErrNotAllowed}
	}
	return fullPath, nil
}

func pathError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = filesniff.ErrNotExist
	case errors.Is(err, fs.ErrPermission):
		err = filesniff.ErrNotAllowed
	}
	return &filesniff.PathError{Op: op, Path: path, Err: err}
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, path string) (*filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("stat", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, pathError("stat", path, err)
	}

	return a.fileInfo(path, info), nil
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, pathError("read", path, err)
	}
	return f, nil
}

// ReadRange implements filesniff.Store with a positioned read.
func (a *Adapter) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: path, Err: filesniff.ErrInvalidRange}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, pathError("read", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pathError("read", path, err)
	}
	if info.IsDir() {
		return nil, &filesniff.PathError{Op: "read", Path: path, Err: filesniff.ErrIsDir}
	}
	if offset >= info.Size() {
		return []byte{}, nil
	}

	buf := make([]byte, min(length, info.Size()-offset))
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, pathError("read", path, err)
	}
	return buf[:n], nil
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]filesniff.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("listcontents", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, pathError("listcontents", path, err)
	}
	if !info.IsDir() {
		return nil, &filesniff.PathError{Op: "listcontents", Path: path, Err: fmt.Errorf("not a directory")}
	}

	var files []filesniff.FileInfo

	if recursive {
		err = filepath.WalkDir(fullPath, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			// Skip the root directory itself
			if walkPath == fullPath {
				return nil
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			files = append(files, *a.fileInfo(a.rel(walkPath), info))
			return nil
		})
		if err != nil {
			return nil, pathError("listcontents", path, err)
		}
		return files, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, pathError("listcontents", path, err)
	}

	files = make([]filesniff.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, *a.fileInfo(a.rel(filepath.Join(fullPath, entry.Name())), info))
	}
	return files, nil
}

// rel returns the slash-separated store path of a path on disk.
func (a *Adapter) rel(fullPath string) string {
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil {
		return filepath.ToSlash(fullPath)
	}
	return filepath.ToSlash(rel)
}

func (a *Adapter) fileInfo(path string, info os.FileInfo) *filesniff.FileInfo {
	fi := &filesniff.FileInfo{
		Name:     info.Name(),
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		IsDir:    info.IsDir(),
		Metadata: platformMetadata(info),
	}
	if !info.IsDir() {
		fi.ContentType = mime.TypeByExtension(filepath.Ext(info.Name()))
	}
	return fi
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ============================================================================
// Watch
// ============================================================================

// Watch implements filesniff.CanWatch using fsnotify for native file system
// events. The filter is a glob over store paths; "**" crosses directories.
// The token reports the store path of the first matching event.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	tw, err := newTreeWatch(a, strings.TrimPrefix(filepath.ToSlash(filter), "/"))
	if err != nil {
		return nil, err
	}
	go tw.run(ctx)
	return tw.token, nil
}

var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
)
