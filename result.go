package filesniff

import "github.com/gobeaver/filesniff/magic"

// Result is a classification of one source.
type Result struct {
	magic.Result

	// Path names the classified source.
	Path string `json:"path,omitempty"`

	// Size is the source length in bytes.
	Size int64 `json:"size"`

	// Inner is the classification of the decompressed payload, set by
	// ClassifyNested when the outer result is a supported compression format.
	Inner *Result `json:"inner,omitempty"`

	// Err is set on batch results whose source could not be read.
	Err error `json:"-"`
}

// Failed reports whether the result carries an acquisition error.
func (r Result) Failed() bool {
	return r.Err != nil
}
