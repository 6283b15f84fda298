package filesniff

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// FileSelector decides which listed objects are classified and which
// directories a tree walk enters.
//
//	// PDFs below inbox/, skipping anything over 10 MiB
//	sel := filesniff.And(
//	    filesniff.Glob("inbox/**.pdf"),
//	    filesniff.MaxSize(10<<20),
//	)
//	results, err := sniffer.ClassifyTree(ctx, "inbox", sel, true)
type FileSelector interface {
	// Match reports whether a non-directory object is selected.
	Match(file *FileInfo) bool

	// TraverseDescendants reports whether a walk enters the directory.
	// Returning false prunes the whole subtree.
	TraverseDescendants(file *FileInfo) bool
}

// ListWithSelector lists the objects below dir that sel selects. Directories
// are never returned. A nil selector selects everything.
func ListWithSelector(ctx context.Context, store Store, dir string, sel FileSelector, recursive bool) ([]FileInfo, error) {
	if sel == nil {
		sel = All()
	}

	var selected []FileInfo
	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := store.ListContents(ctx, dir, false)
		if err != nil {
			return err
		}
		for i := range entries {
			e := &entries[i]
			switch {
			case !e.IsDir:
				if sel.Match(e) {
					selected = append(selected, *e)
				}
			case recursive && sel.TraverseDescendants(e):
				if err := walk(e.Path); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(dir); err != nil {
		return nil, err
	}
	return selected, nil
}

// AllSelector selects every object and enters every directory.
type AllSelector struct{}

func (AllSelector) Match(*FileInfo) bool               { return true }
func (AllSelector) TraverseDescendants(*FileInfo) bool { return true }

// All returns a selector that selects everything.
func All() FileSelector {
	return AllSelector{}
}

type globSelector struct {
	g glob.Glob

	// prefix is the literal directory part of a path pattern, used to
	// prune directories that cannot contain a match.
	prefix   string
	fullPath bool
}

// Glob selects by glob pattern. "*" stays within one path segment and "**"
// crosses segments. Patterns containing a "/" are matched against the
// object path, others against the base name. An invalid pattern selects
// nothing.
//
//	Glob("*.bin")             // every .bin object
//	Glob("scan_????.tif")     // scan_0001.tif, ...
//	Glob("uploads/**.png")    // PNGs anywhere below uploads/
//	Glob("*.{jpg,jpeg}")      // either extension
func Glob(pattern string) FileSelector {
	pattern = strings.TrimPrefix(pattern, "/")
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return FuncSelectorFull(
			func(*FileInfo) bool { return false },
			func(*FileInfo) bool { return false },
		)
	}

	s := &globSelector{g: g, fullPath: strings.Contains(pattern, "/")}
	if s.fullPath {
		lit := pattern
		if i := strings.IndexAny(pattern, "*?[{\\"); i >= 0 {
			lit = pattern[:i]
		}
		if i := strings.LastIndex(lit, "/"); i >= 0 {
			s.prefix = lit[:i]
		}
	}
	return s
}

func (s *globSelector) Match(file *FileInfo) bool {
	if s.fullPath {
		return s.g.Match(strings.TrimPrefix(file.Path, "/"))
	}
	return s.g.Match(file.Name)
}

func (s *globSelector) TraverseDescendants(file *FileInfo) bool {
	if s.prefix == "" {
		return true
	}
	dir := strings.Trim(file.Path, "/")
	// Enter ancestors of the prefix and anything below it.
	return dir == s.prefix ||
		strings.HasPrefix(s.prefix, dir+"/") ||
		strings.HasPrefix(dir, s.prefix+"/")
}

// Extensions selects objects whose name ends in one of exts, compared
// without case. A leading dot is optional.
func Extensions(exts ...string) FileSelector {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return FuncSelector(func(f *FileInfo) bool {
		return want[strings.ToLower(strings.TrimPrefix(path.Ext(f.Name), "."))]
	})
}

// MaxSize selects objects no larger than n bytes.
func MaxSize(n int64) FileSelector {
	return FuncSelector(func(f *FileInfo) bool { return f.Size <= n })
}

// MinSize selects objects of at least n bytes. MinSize(1) skips empty
// objects, which always classify as text.
func MinSize(n int64) FileSelector {
	return FuncSelector(func(f *FileInfo) bool { return f.Size >= n })
}

// ModifiedSince selects objects modified after t.
func ModifiedSince(t time.Time) FileSelector {
	return FuncSelector(func(f *FileInfo) bool { return f.ModTime.After(t) })
}

type depthSelector struct {
	max  int
	base string
}

// Depth limits a walk to maxDepth levels below base. Depth 1 selects the
// immediate children only.
func Depth(maxDepth int, base string) FileSelector {
	return &depthSelector{max: maxDepth, base: strings.Trim(base, "/")}
}

func (s *depthSelector) depth(p string) int {
	rel := strings.Trim(strings.TrimPrefix(strings.Trim(p, "/"), s.base), "/")
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

func (s *depthSelector) Match(file *FileInfo) bool {
	return s.depth(file.Path) <= s.max
}

func (s *depthSelector) TraverseDescendants(file *FileInfo) bool {
	return s.depth(file.Path) < s.max
}

type allOf []FileSelector

// And selects objects every selector selects. A directory is entered when
// any selector would enter it.
func And(selectors ...FileSelector) FileSelector {
	return allOf(selectors)
}

func (s allOf) Match(file *FileInfo) bool {
	for _, sel := range s {
		if !sel.Match(file) {
			return false
		}
	}
	return true
}

func (s allOf) TraverseDescendants(file *FileInfo) bool {
	return anyOf(s).TraverseDescendants(file)
}

type anyOf []FileSelector

// Or selects objects any selector selects.
func Or(selectors ...FileSelector) FileSelector {
	return anyOf(selectors)
}

func (s anyOf) Match(file *FileInfo) bool {
	for _, sel := range s {
		if sel.Match(file) {
			return true
		}
	}
	return false
}

func (s anyOf) TraverseDescendants(file *FileInfo) bool {
	for _, sel := range s {
		if sel.TraverseDescendants(file) {
			return true
		}
	}
	return false
}

type notSelector struct {
	FileSelector
}

// Not inverts the match of a selector. Every directory is entered.
func Not(sel FileSelector) FileSelector {
	return notSelector{sel}
}

func (s notSelector) Match(file *FileInfo) bool               { return !s.FileSelector.Match(file) }
func (s notSelector) TraverseDescendants(file *FileInfo) bool { return true }

type funcSelector struct {
	match    func(*FileInfo) bool
	traverse func(*FileInfo) bool
}

// FuncSelector selects with fn and enters every directory.
//
//	FuncSelector(func(f *filesniff.FileInfo) bool {
//	    return f.ContentType == "" || f.ContentType == "application/octet-stream"
//	})
func FuncSelector(fn func(*FileInfo) bool) FileSelector {
	return FuncSelectorFull(fn, func(*FileInfo) bool { return true })
}

// FuncSelectorFull selects with match and enters directories for which
// traverse returns true.
func FuncSelectorFull(match, traverse func(*FileInfo) bool) FileSelector {
	return funcSelector{match: match, traverse: traverse}
}

func (s funcSelector) Match(file *FileInfo) bool               { return s.match(file) }
func (s funcSelector) TraverseDescendants(file *FileInfo) bool { return s.traverse(file) }
