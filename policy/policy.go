// Package policy decides whether a detected classification is acceptable.
//
// A Policy never inspects bytes itself: it judges the Classification a
// magic.Engine produced, so a renamed executable is rejected on what it is
// rather than on what its name claims.
package policy

import "github.com/gobeaver/filesniff/magic"

// Size constants for easier size configuration
const (
	KB = int64(1024)
	MB = KB * 1024
	GB = MB * 1024
)

// Policy lists the classifications that are accepted.
type Policy struct {
	// MaxFileSize is the maximum allowed size in bytes. 0 disables the check.
	MaxFileSize int64

	// MinFileSize is the minimum allowed size in bytes. 0 disables the check.
	MinFileSize int64

	// AcceptedTypes lists allowed media types. Groups such as "image/*" or
	// "archive/*" are supported. Empty accepts every type not blocked.
	AcceptedTypes []string

	// BlockedTypes lists rejected media types and groups. It wins over
	// AcceptedTypes.
	BlockedTypes []string

	// AllowedExts lists allowed detected extensions, with or without the dot.
	AllowedExts []string

	// BlockedExts lists rejected detected extensions. It wins over
	// AllowedExts.
	BlockedExts []string
}

// Default returns a policy that rejects executable content and anything
// above 10 MB.
func Default() *Policy {
	return &Policy{
		MaxFileSize:  10 * MB,
		BlockedTypes: []string{string(AllowAllExecutables)},
		BlockedExts:  []string{"exe", "elf", "macho", "wasm", "crx", "jar"},
	}
}

// ImageOnly returns a policy accepting images only.
func ImageOnly() *Policy {
	p := Default()
	p.AcceptedTypes = []string{string(AllowAllImages)}
	return p
}

// DocumentOnly returns a policy accepting documents and plain text.
func DocumentOnly() *Policy {
	p := Default()
	p.AcceptedTypes = []string{string(AllowAllDocuments), "text/plain"}
	return p
}

// MediaOnly returns a policy accepting audio and video up to 500 MB.
func MediaOnly() *Policy {
	p := Default()
	p.AcceptedTypes = []string{string(AllowAllAudio), string(AllowAllVideo)}
	p.MaxFileSize = 500 * MB
	return p
}

// Check returns a *ValidationError when c or size violates the policy.
// Size limits are checked first, then media types, then extensions.
// A nil Policy accepts everything.
func (p *Policy) Check(c magic.Classification, size int64) error {
	if p == nil {
		return nil
	}

	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return reject(ConstraintSize, c, size, "%d bytes exceeds the %d byte limit", size, p.MaxFileSize)
	}
	if p.MinFileSize > 0 && size < p.MinFileSize {
		return reject(ConstraintSize, c, size, "%d bytes is below the %d byte minimum", size, p.MinFileSize)
	}

	if matchAny(p.BlockedTypes, c) {
		return reject(ConstraintMIME, c, size, "%s is blocked", c.MIME)
	}
	if len(p.AcceptedTypes) > 0 && !matchAny(p.AcceptedTypes, c) {
		return reject(ConstraintMIME, c, size, "%s is not one of %v", c.MIME, p.AcceptedTypes)
	}

	if containsExt(p.BlockedExts, c.Ext) {
		return reject(ConstraintExtension, c, size, ".%s is blocked", c.Ext)
	}
	if len(p.AllowedExts) > 0 && !containsExt(p.AllowedExts, c.Ext) {
		return reject(ConstraintExtension, c, size, ".%s is not one of %v", c.Ext, p.AllowedExts)
	}

	return nil
}

// IsZero reports whether the policy accepts everything.
func (p *Policy) IsZero() bool {
	return p == nil || (p.MaxFileSize == 0 && p.MinFileSize == 0 &&
		len(p.AcceptedTypes) == 0 && len(p.BlockedTypes) == 0 &&
		len(p.AllowedExts) == 0 && len(p.BlockedExts) == 0)
}
