package filesniff

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchOption selects how ClassifyAll and ClassifyTree classify each path.
type BatchOption func(*batch)

type batch struct {
	classify func(s *Sniffer, ctx context.Context, path string) (Result, error)
}

// BatchCheck runs Check on every path, so policy rejections land in
// Result.Err.
func BatchCheck() BatchOption {
	return func(b *batch) { b.classify = (*Sniffer).Check }
}

// BatchNested runs ClassifyNested on every path.
func BatchNested() BatchOption {
	return func(b *batch) { b.classify = (*Sniffer).ClassifyNested }
}

// ClassifyAll classifies paths concurrently, at most the sniffer's
// concurrency at a time. Results keep the order of paths. A path that cannot
// be read gets a Result with Err set instead of failing the batch; the
// returned error is only non-nil when ctx is done.
func (s *Sniffer) ClassifyAll(ctx context.Context, paths []string, opts ...BatchOption) ([]Result, error) {
	b := batch{classify: (*Sniffer).Classify}
	for _, opt := range opts {
		opt(&b)
	}
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := b.classify(s, gctx, path)
			if err != nil {
				r.Path = path
				r.Err = err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// ClassifyTree lists dir with selector and classifies every selected object.
//
// Example:
//
//	results, err := sniffer.ClassifyTree(ctx, "uploads", filesniff.Glob("*.bin"), true)
//	for _, r := range results {
//	    if r.Failed() {
//	        log.Printf("%s: %v", r.Path, r.Err)
//	        continue
//	    }
//	    fmt.Println(r.Path, r.MIME)
//	}
func (s *Sniffer) ClassifyTree(ctx context.Context, dir string, selector FileSelector, recursive bool, opts ...BatchOption) ([]Result, error) {
	if s.store == nil {
		return nil, newSourceError("list", dir, ErrNotSupported)
	}
	files, err := ListWithSelector(ctx, s.store, dir, selector, recursive)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return s.ClassifyAll(ctx, paths, opts...)
}
