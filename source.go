package filesniff

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/gobeaver/filesniff/magic"
)

// Samples are the two byte windows a classification looks at. Header holds
// the first magic.SampleSize bytes of the source and Trailer the last ones;
// for short sources they overlap or are identical.
type Samples struct {
	Header  []byte
	Trailer []byte
	Size    int64
}

// Source is anything samples can be captured from. Sampling never mutates
// the underlying bytes, and sampling the same unchanged source twice yields
// the same samples.
type Source interface {
	// Name identifies the source in errors and results.
	Name() string

	// Sample captures the header and trailer windows.
	Sample(ctx context.Context) (Samples, error)
}

// ============================================================================
// In-memory bytes
// ============================================================================

type bytesSource struct {
	name string
	b    []byte
}

// FromBytes returns a Source over an in-memory blob.
func FromBytes(name string, b []byte) Source {
	return &bytesSource{name: name, b: b}
}

func (s *bytesSource) Name() string { return s.name }

func (s *bytesSource) Sample(ctx context.Context) (Samples, error) {
	if err := ctx.Err(); err != nil {
		return Samples{}, newSourceError("sample", s.name, err)
	}
	return Samples{
		Header:  magic.HeaderOf(s.b),
		Trailer: magic.TrailerOf(s.b),
		Size:    int64(len(s.b)),
	}, nil
}

// ============================================================================
// io.ReaderAt
// ============================================================================

type readerAtSource struct {
	name string
	r    io.ReaderAt
	size int64
}

// FromReaderAt returns a Source reading the two windows of a random-access
// object of the given size.
func FromReaderAt(name string, r io.ReaderAt, size int64) Source {
	return &readerAtSource{name: name, r: r, size: size}
}

func (s *readerAtSource) Name() string { return s.name }

func (s *readerAtSource) Sample(ctx context.Context) (Samples, error) {
	smp, err := sampleReaderAt(ctx, s.r, s.size)
	if err != nil {
		return Samples{}, newSourceError("sample", s.name, err)
	}
	return smp, nil
}

func sampleReaderAt(ctx context.Context, r io.ReaderAt, size int64) (Samples, error) {
	if size < 0 {
		return Samples{}, ErrInvalidRange
	}
	if err := ctx.Err(); err != nil {
		return Samples{}, err
	}

	n := min(size, magic.SampleSize)
	header := make([]byte, n)
	if err := readFullAt(r, header, 0); err != nil {
		return Samples{}, err
	}
	if size <= magic.SampleSize {
		return Samples{Header: header, Trailer: header, Size: size}, nil
	}

	if err := ctx.Err(); err != nil {
		return Samples{}, err
	}
	trailer := make([]byte, magic.SampleSize)
	if err := readFullAt(r, trailer, size-magic.SampleSize); err != nil {
		return Samples{}, err
	}
	return Samples{Header: header, Trailer: trailer, Size: size}, nil
}

// readFullAt fills p from off. A ReaderAt may return io.EOF together with a
// full read at the end of the object.
func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ============================================================================
// Local file
// ============================================================================

type fileSource struct {
	path string
}

// FromFile returns a Source over a file on the local disk. The file is
// opened for each Sample call.
func FromFile(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Name() string { return s.path }

func (s *fileSource) Sample(ctx context.Context) (Samples, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return Samples{}, newSourceError("open", s.path, osError("open", s.path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Samples{}, newSourceError("stat", s.path, err)
	}
	if info.IsDir() {
		return Samples{}, newSourceError("sample", s.path, &PathError{Op: "sample", Path: s.path, Err: ErrIsDir})
	}

	smp, err := sampleReaderAt(ctx, f, info.Size())
	if err != nil {
		return Samples{}, newSourceError("read", s.path, err)
	}
	return smp, nil
}

func osError(op, path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &PathError{Op: op, Path: path, Err: ErrNotExist}
	case errors.Is(err, os.ErrPermission):
		return &PathError{Op: op, Path: path, Err: ErrNotAllowed}
	}
	return err
}

// ============================================================================
// Streaming io.Reader
// ============================================================================

type readerSource struct {
	name string
	r    io.Reader
}

// FromReader returns a Source over a forward-only stream. Sample consumes the
// stream to its end, keeping the trailer in a ring buffer, so the Source can
// be sampled once.
func FromReader(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Sample(ctx context.Context) (Samples, error) {
	w := newSampleWriter(magic.SampleSize)
	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: s.r}); err != nil {
		return Samples{}, newSourceError("read", s.name, err)
	}
	return w.samples(), nil
}

// ctxReader aborts a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// sampleWriter keeps the first n bytes written to it and the last n bytes in
// a ring.
type sampleWriter struct {
	header []byte
	ring   []byte
	pos    int
	total  int64
}

func newSampleWriter(n int) *sampleWriter {
	return &sampleWriter{
		header: make([]byte, 0, n),
		ring:   make([]byte, n),
	}
}

func (w *sampleWriter) Write(p []byte) (int, error) {
	written := len(p)
	w.total += int64(written)

	if room := cap(w.header) - len(w.header); room > 0 {
		w.header = append(w.header, p[:min(room, len(p))]...)
	}

	n := len(w.ring)
	if len(p) >= n {
		copy(w.ring, p[len(p)-n:])
		w.pos = 0
		return written, nil
	}
	c := copy(w.ring[w.pos:], p)
	if c < len(p) {
		copy(w.ring, p[c:])
	}
	w.pos = (w.pos + len(p)) % n
	return written, nil
}

func (w *sampleWriter) samples() Samples {
	n := int64(len(w.ring))
	var trailer []byte
	switch {
	case w.total <= int64(len(w.header)):
		trailer = w.header
	case w.total < n:
		trailer = append([]byte(nil), w.ring[:w.total]...)
	default:
		trailer = make([]byte, 0, n)
		trailer = append(trailer, w.ring[w.pos:]...)
		trailer = append(trailer, w.ring[:w.pos]...)
	}
	return Samples{Header: w.header, Trailer: trailer, Size: w.total}
}

// ============================================================================
// Store object
// ============================================================================

type storeSource struct {
	store Store
	path  string
}

// FromStore returns a Source over an object of a Store. Only the two windows
// are fetched, with ranged reads.
func FromStore(store Store, path string) Source {
	return &storeSource{store: store, path: path}
}

func (s *storeSource) Name() string { return s.path }

func (s *storeSource) Sample(ctx context.Context) (Samples, error) {
	info, err := s.store.Stat(ctx, s.path)
	if err != nil {
		return Samples{}, newSourceError("stat", s.path, err)
	}
	return sampleStore(ctx, s.store, s.path, info)
}

func sampleStore(ctx context.Context, store Store, path string, info *FileInfo) (Samples, error) {
	if info.IsDir {
		return Samples{}, newSourceError("sample", path, &PathError{Op: "sample", Path: path, Err: ErrIsDir})
	}

	header, err := store.ReadRange(ctx, path, 0, magic.SampleSize)
	if err != nil {
		return Samples{}, newSourceError("read", path, err)
	}
	if info.Size <= magic.SampleSize {
		return Samples{Header: header, Trailer: header, Size: int64(len(header))}, nil
	}

	trailer, err := store.ReadRange(ctx, path, info.Size-magic.SampleSize, magic.SampleSize)
	if err != nil {
		return Samples{}, newSourceError("read", path, err)
	}
	return Samples{Header: header, Trailer: trailer, Size: info.Size}, nil
}

// ============================================================================
// Classification
// ============================================================================

// Classify samples src and classifies it with the built-in tables. An
// acquisition failure is returned as a *SourceError; it never produces a
// default classification.
func Classify(ctx context.Context, src Source) (Result, error) {
	return classifySource(ctx, magic.Default(), src)
}

func classifySource(ctx context.Context, engine *magic.Engine, src Source) (Result, error) {
	smp, err := src.Sample(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result: engine.Classify(smp.Header, smp.Trailer),
		Path:   src.Name(),
		Size:   smp.Size,
	}, nil
}
