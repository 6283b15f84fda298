package magic

import (
	"sort"
	"strings"
	"sync"
)

// Category groups classifications for routing and display.
type Category string

const (
	CategoryImage      Category = "image"
	CategoryAudio      Category = "audio"
	CategoryVideo      Category = "video"
	CategoryFont       Category = "font"
	CategoryModel      Category = "model"
	CategoryText       Category = "text"
	CategoryDocument   Category = "document"
	CategoryArchive    Category = "archive"
	CategoryExecutable Category = "executable"
	CategoryOther      Category = "other"
)

var archiveTypes = map[string]bool{
	"application/zip":                   true,
	"application/gzip":                  true,
	"application/x-tar":                 true,
	"application/x-7z-compressed":       true,
	"application/x-rar-compressed":      true,
	"application/x-bzip2":               true,
	"application/x-xz":                  true,
	"application/zstd":                  true,
	"application/x-lz4":                 true,
	"application/x-lzip":                true,
	"application/x-compress":            true,
	"application/vnd.ms-cab-compressed": true,
	"application/x-rpm":                 true,
	"application/x-apple-diskimage":     true,
}

var executableTypes = map[string]bool{
	"application/x-msdownload":              true,
	"application/x-elf":                     true,
	"application/x-mach-binary":             true,
	"application/wasm":                      true,
	"application/x-google-chrome-extension": true,
}

var documentTypes = map[string]bool{
	"application/pdf":        true,
	"application/postscript": true,
	"application/eps":        true,
	"application/rtf":        true,
	"application/epub+zip":   true,
	"application/json":       true,
	"application/atom+xml":   true,
}

// CategoryOf returns the category of c.
func CategoryOf(c Classification) Category {
	mime := c.BaseMIME()
	switch {
	case executableTypes[mime]:
		return CategoryExecutable
	case archiveTypes[mime]:
		return CategoryArchive
	case documentTypes[mime],
		strings.HasPrefix(mime, "application/vnd.oasis.opendocument."),
		strings.HasPrefix(mime, "application/vnd.openxmlformats-officedocument."):
		return CategoryDocument
	}

	top, _, _ := strings.Cut(mime, "/")
	switch top {
	case "image":
		return CategoryImage
	case "audio":
		return CategoryAudio
	case "video":
		return CategoryVideo
	case "font":
		return CategoryFont
	case "model":
		return CategoryModel
	case "text":
		return CategoryText
	}
	return CategoryOther
}

// IsExecutable reports whether c is native or browser-executable code.
func IsExecutable(c Classification) bool {
	return executableTypes[c.BaseMIME()]
}

// IsArchive reports whether c is a compressed stream or an archive container.
func IsArchive(c Classification) bool {
	return archiveTypes[c.BaseMIME()]
}

var (
	extIndexOnce sync.Once
	extIndex     map[string]string
)

// preferredExt overrides the first-in-table extension for media types shared
// by several rules.
var preferredExt = map[string]string{
	"audio/ogg":    "ogg",
	"image/x-icon": "ico",
	"audio/mpeg":   "mp3",
}

// ExtensionFor returns the canonical extension the built-in tables assign to
// mime, without a leading dot. Parameters are ignored. The result is "bin"
// for unknown media types.
func ExtensionFor(mime string) string {
	extIndexOnce.Do(buildExtIndex)
	base := Classification{MIME: mime}.BaseMIME()
	if ext, ok := extIndex[strings.ToLower(base)]; ok {
		return ext
	}
	return OctetStream.Ext
}

// Known returns every classification the built-in tables can produce, in
// table order, without duplicates.
func Known() []Classification {
	var out []Classification
	seen := make(map[Classification]bool)
	add := func(c Classification) {
		if !c.IsZero() && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, r := range defaultBinaryRules {
		switch r.Name {
		case "ftyp":
			for _, b := range ftypBrands {
				add(b.class)
			}
			add(ftypGeneric)
		case "ogg":
			for _, c := range oggCodecs {
				add(c.class)
			}
			add(oggGeneric)
		case "asf":
			add(asfVideo)
			add(asfWMV)
			add(asfWMA)
			add(asfGeneric)
		case "jp2":
			for _, b := range jp2Brands {
				add(b.class)
			}
		case "riff":
			for _, f := range riffForms {
				add(f.class)
			}
		case "ebml":
			for _, d := range ebmlDocTypes {
				add(d.class)
			}
		case "zip":
			for _, m := range zipMarkers {
				add(m.class)
			}
			mimes := make([]string, 0, len(ocfTypes))
			for mime := range ocfTypes {
				mimes = append(mimes, mime)
			}
			sort.Strings(mimes)
			for _, mime := range mimes {
				add(ocfTypes[mime])
			}
			add(ZipClassification)
		default:
			add(r.Class)
		}
	}
	add(OctetStream)
	for _, c := range []Classification{objClass, svgClass, atomClass, xmlClass, htmlClass, jsonClass, PlainText} {
		add(c)
	}
	return out
}

func buildExtIndex() {
	extIndex = make(map[string]string, len(preferredExt))
	for mime, ext := range preferredExt {
		extIndex[mime] = ext
	}
	for _, c := range Known() {
		key := strings.ToLower(c.BaseMIME())
		if _, ok := extIndex[key]; !ok {
			extIndex[key] = c.Ext
		}
	}
}
