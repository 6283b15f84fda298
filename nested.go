package filesniff

import (
	"bytes"
	"compress/bzip2"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Decompressor opens a decoding reader over a compressed stream.
type Decompressor func(r io.Reader) (io.ReadCloser, error)

// decompressors maps the media types of supported compression formats to
// their decoders.
var decompressors = map[string]Decompressor{
	"application/gzip": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	"application/zstd": func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
	"application/x-lz4": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(r)), nil
	},
	"application/x-bzip2": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	},
}

// DecompressorFor returns the decoder for a compression media type.
func DecompressorFor(mime string) (Decompressor, bool) {
	d, ok := decompressors[mime]
	return d, ok
}

// maxNestedDepth bounds how many compression layers are unwrapped.
const maxNestedDepth = 4

func (s *Sniffer) nestedLimitOrDefault() int64 {
	if s.nestedLimit > 0 {
		return s.nestedLimit
	}
	return defaultNestedLimit
}

// ClassifyNested classifies the object at path and, when it is a gzip, zstd,
// lz4 or bzip2 stream, also classifies its decompressed payload into
// Result.Inner. At most the nested limit of payload bytes is decoded, so the
// inner trailer is the end of the decoded prefix for large payloads. Nested
// compression is unwrapped up to four layers deep.
func (s *Sniffer) ClassifyNested(ctx context.Context, path string) (Result, error) {
	r, err := s.Classify(ctx, path)
	if err != nil {
		return r, err
	}
	if _, ok := decompressors[r.BaseMIME()]; !ok {
		return r, nil
	}

	rc, err := s.store.Read(ctx, path)
	if err != nil {
		return r, newSourceError("read", path, err)
	}
	defer rc.Close()

	inner, err := s.nested(ctx, path, r.BaseMIME(), rc, 1)
	if err != nil {
		return r, err
	}
	r.Inner = inner
	return r, nil
}

// ClassifyNestedBytes is ClassifyNested for an in-memory blob.
func (s *Sniffer) ClassifyNestedBytes(ctx context.Context, b []byte) (Result, error) {
	r := s.ClassifyBytes(b)
	if _, ok := decompressors[r.BaseMIME()]; !ok {
		return r, nil
	}
	inner, err := s.nested(ctx, "bytes", r.BaseMIME(), bytes.NewReader(b), 1)
	if err != nil {
		return r, err
	}
	r.Inner = inner
	return r, nil
}

func (s *Sniffer) nested(ctx context.Context, name, mime string, body io.Reader, depth int) (*Result, error) {
	dec, ok := decompressors[mime]
	if !ok {
		return nil, nil
	}
	dr, err := dec(body)
	if err != nil {
		return nil, newSourceError("decompress", name, fmt.Errorf("%s: %w", mime, err))
	}
	defer dr.Close()

	// The decoded prefix is kept only to unwrap a further layer.
	var payload bytes.Buffer
	src := FromReader(name, io.TeeReader(io.LimitReader(dr, s.nestedLimitOrDefault()), &payload))
	inner, err := classifySource(ctx, s.engine, src)
	if err != nil {
		return nil, newSourceError("decompress", name, err)
	}
	inner.Path = ""

	if depth < maxNestedDepth {
		if _, ok := decompressors[inner.BaseMIME()]; ok {
			next, err := s.nested(ctx, name, inner.BaseMIME(), &payload, depth+1)
			if err != nil {
				return nil, err
			}
			inner.Inner = next
		}
	}
	return &inner, nil
}
