package magic

import "strings"

// SampleSize is the maximum length of the header and trailer samples.
const SampleSize = 4096

// Classification is a canonical file extension paired with a media type.
// The media type is not always IANA-registered; some vendor strings are kept
// because existing consumers expect them.
type Classification struct {
	Ext  string `json:"ext" yaml:"ext" toml:"ext"`
	MIME string `json:"mime" yaml:"mime" toml:"mime"`
}

// String returns the media type.
func (c Classification) String() string {
	return c.MIME
}

// IsZero reports whether c is the zero Classification.
func (c Classification) IsZero() bool {
	return c.Ext == "" && c.MIME == ""
}

// BaseMIME returns the media type without parameters such as charset.
func (c Classification) BaseMIME() string {
	mime := c.MIME
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = mime[:idx]
	}
	return strings.TrimSpace(mime)
}

var (
	// OctetStream is returned for binary input that matches no rule.
	OctetStream = Classification{Ext: "bin", MIME: "application/octet-stream"}

	// PlainText is returned for text input that matches no rule.
	PlainText = Classification{Ext: "txt", MIME: "text/plain"}
)

// DefaultRule names the rule reported when no catalog entry matched.
const DefaultRule = "default"

// Result is the outcome of a classification.
type Result struct {
	Classification

	// Rule is the name of the catalog entry that produced the
	// classification, or DefaultRule.
	Rule string `json:"rule"`

	// Binary reports which branch was consulted.
	Binary bool `json:"binary"`
}

// Matched reports whether a catalog rule, rather than a default, produced r.
func (r Result) Matched() bool {
	return r.Rule != DefaultRule
}
