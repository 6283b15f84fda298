package policy

import (
	"strings"

	"github.com/gobeaver/filesniff/magic"
)

// MediaTypeGroup names a set of media types in accept and block lists.
type MediaTypeGroup string

const (
	AllowAllImages      MediaTypeGroup = "image/*"
	AllowAllDocuments   MediaTypeGroup = "document/*"
	AllowAllAudio       MediaTypeGroup = "audio/*"
	AllowAllVideo       MediaTypeGroup = "video/*"
	AllowAllText        MediaTypeGroup = "text/*"
	AllowAllFonts       MediaTypeGroup = "font/*"
	AllowAllArchives    MediaTypeGroup = "archive/*"
	AllowAllExecutables MediaTypeGroup = "executable/*"
	AllowAll            MediaTypeGroup = "*/*"
)

// matchType reports whether c is selected by pattern. A pattern is an exact
// media type, "*/*", or "<group>/*" where group is either the top-level type
// of the media type or its magic.Category.
func matchType(pattern string, c magic.Classification) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	mime := strings.ToLower(c.BaseMIME())

	if pattern == string(AllowAll) {
		return true
	}
	if group, ok := strings.CutSuffix(pattern, "/*"); ok {
		top, _, _ := strings.Cut(mime, "/")
		return top == group || string(magic.CategoryOf(c)) == group
	}
	return normalizeMIME(pattern) == mime
}

// normalizeMIME drops parameters and lower-cases a media type.
func normalizeMIME(mime string) string {
	return strings.ToLower(magic.Classification{MIME: mime}.BaseMIME())
}

func matchAny(patterns []string, c magic.Classification) bool {
	for _, p := range patterns {
		if matchType(p, c) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func containsExt(list []string, ext string) bool {
	ext = normalizeExt(ext)
	for _, e := range list {
		if normalizeExt(e) == ext {
			return true
		}
	}
	return false
}
