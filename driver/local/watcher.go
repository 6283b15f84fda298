package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/gobeaver/filesniff"
)

// treeWatch follows fsnotify events below one directory and fires a change
// token for the first event whose store path matches the filter.
type treeWatch struct {
	adapter   *Adapter
	watcher   *fsnotify.Watcher
	filter    glob.Glob
	baseName  bool // the pattern has no "/" and is matched against base names
	recursive bool
	token     *filesniff.CallbackChangeToken
}

// watchDir returns the longest directory prefix of pattern free of glob
// metacharacters, relative to the store root.
func watchDir(pattern string) string {
	lit := pattern
	if i := strings.IndexAny(pattern, "*?[{\\"); i >= 0 {
		lit = pattern[:i]
	}
	if i := strings.LastIndex(lit, "/"); i >= 0 {
		return lit[:i]
	}
	return ""
}

func newTreeWatch(a *Adapter, pattern string) (*treeWatch, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &filesniff.PathError{Op: "watch", Path: pattern, Err: err}
	}

	dir, err := a.resolve("watch", watchDir(pattern))
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &filesniff.PathError{Op: "watch", Path: pattern, Err: err}
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, pathError("watch", pattern, err)
	}

	tw := &treeWatch{
		adapter:   a,
		watcher:   w,
		filter:    g,
		baseName:  !strings.Contains(pattern, "/"),
		recursive: strings.Contains(pattern, "**") || !strings.Contains(pattern, "/"),
		token:     filesniff.NewCallbackChangeToken(),
	}
	if tw.recursive {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() && p != dir {
				_ = w.Add(p)
			}
			return nil
		})
	}
	return tw, nil
}

func (tw *treeWatch) matches(rel string) bool {
	if tw.baseName {
		return tw.filter.Match(filepath.Base(rel))
	}
	return tw.filter.Match(rel)
}

// run delivers events until the token fires or ctx ends.
func (tw *treeWatch) run(ctx context.Context) {
	defer tw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			// New directories below a recursive watch are watched too
			if tw.recursive && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = tw.watcher.Add(event.Name)
				}
			}
			if rel := tw.adapter.rel(event.Name); tw.matches(rel) {
				tw.token.SignalChange(rel)
				return
			}
		case _, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
