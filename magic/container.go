package magic

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// ============================================================================
// ISO base media (ftyp)
// ============================================================================

// brand maps a major-brand prefix, read at offset 8 of an ftyp box, to a
// classification. extra, when set, must also match the header.
type brand struct {
	prefix string
	extra  Matcher
	class  Classification
}

// ftypBrands is ordered: longer or more specific brands precede the prefixes
// that would shadow them ("3g2" before "3g", "M4V M4A" before "M4V").
var ftypBrands = []brand{
	{prefix: "avif", class: Classification{"avif", "image/avif"}},
	{prefix: "avis", class: Classification{"avif", "image/avif"}},
	{prefix: "mif1", class: Classification{"heif", "image/heif"}},
	{prefix: "msf1", class: Classification{"heifs", "image/heif-sequence"}},
	{prefix: "heic", class: Classification{"heic", "image/heic"}},
	{prefix: "heix", class: Classification{"heic", "image/heic"}},
	{prefix: "hevc", class: Classification{"heics", "image/heic-sequence"}},
	{prefix: "hevx", class: Classification{"heics", "image/heic-sequence"}},
	{prefix: "qt", class: Classification{"mov", "video/quicktime"}},
	{prefix: "M4V", extra: At(16, "M4V M4A "), class: Classification{"mp4", "video/mp4"}},
	{prefix: "M4V", class: Classification{"m4v", "video/x-m4v"}},
	{prefix: "M4P", class: Classification{"m4p", "audio/mp4a-latm"}},
	{prefix: "M4B", class: Classification{"m4b", "audio/mp4a-latm"}},
	{prefix: "M4A", class: Classification{"m4a", "audio/x-m4a"}},
	{prefix: "F4V", class: Classification{"f4v", "video/mp4"}},
	{prefix: "F4P", class: Classification{"f4p", "video/mp4"}},
	{prefix: "F4A", class: Classification{"f4a", "audio/mp4"}},
	{prefix: "F4B", class: Classification{"f4b", "audio/mp4"}},
	{prefix: "crx", class: Classification{"cr3", "image/x-canon-cr3"}},
	{prefix: "3g2", class: Classification{"3g2", "video/3gpp2"}},
	{prefix: "3g", class: Classification{"3gp", "video/3gpp"}},
	{prefix: "mp41", class: Classification{"mp4", "video/mp4"}},
	{prefix: "mp42", class: Classification{"mp4", "video/mp4"}},
	{prefix: "isom", class: Classification{"mp4", "video/mp4"}},
	{prefix: "iso2", class: Classification{"mp4", "video/mp4"}},
	{prefix: "mmp4", class: Classification{"mp4", "video/mp4"}},
	{prefix: "dash", class: Classification{"mp4", "video/mp4"}},
	{prefix: "avcl", class: Classification{"3gp", "video/3gpp"}},
}

// ftypGeneric is returned for any brand not listed in ftypBrands.
var ftypGeneric = Classification{Ext: "mp4", MIME: "application/mpeg"}

const ftypBrandOffset = 8

// resolveFtyp maps the major brand of an ftyp box. The caller has already
// matched "ftyp" at offset 4, so some classification is always returned.
func resolveFtyp(header []byte) (Classification, bool) {
	for _, b := range ftypBrands {
		if !At(ftypBrandOffset, b.prefix).Match(header) {
			continue
		}
		if b.extra != nil && !b.extra.Match(header) {
			continue
		}
		return b.class, true
	}
	return ftypGeneric, true
}

// ============================================================================
// Ogg
// ============================================================================

type codecMarker struct {
	marker string
	class  Classification
}

var oggCodecs = []codecMarker{
	{"OpusHead", Classification{"opus", "audio/opus"}},
	{"\x80theora", Classification{"ogv", "video/ogg"}},
	{"\x01video\x00", Classification{"ogv", "video/ogg"}},
	{"\x7FFLAC", Classification{"oga", "audio/ogg"}},
	{"Speex   ", Classification{"spx", "audio/ogg"}},
	{"\x01vorbis", Classification{"ogg", "audio/ogg"}},
}

var oggGeneric = Classification{Ext: "ogx", MIME: "application/ogg"}

// The first packet of a single-segment first page starts at offset 28, after
// the 27-byte page header and a one-byte segment table.
const (
	oggScanFrom = 28
	oggScanTo   = oggScanFrom + 32
)

func resolveOgg(header []byte) (Classification, bool) {
	for _, c := range oggCodecs {
		if ContainsFrom(oggScanFrom, oggScanTo, c.marker).Match(header) {
			return c.class, true
		}
	}
	return oggGeneric, true
}

// ============================================================================
// ASF (WMA / WMV)
// ============================================================================

const (
	asfHeaderGUID = "\x30\x26\xB2\x75\x8E\x66\xCF\x11\xA6\xD9\x00\xAA\x00\x62\xCE\x6C"
	asfAudioGUID  = "\x40\x9E\x69\xF8\x4D\x5B\xCF\x11\xA8\xFD\x00\x80\x5F\x5C\x44\x2B"
	asfVideoGUID  = "\xC0\xEF\x19\xBC\x4D\x5B\xCF\x11\xA8\xFD\x00\x80\x5F\x5C\x44\x2B"
)

var (
	asfVideo   = Classification{Ext: "asf", MIME: "video/x-ms-asf"}
	asfWMV     = Classification{Ext: "wmv", MIME: "video/x-ms-wmv"}
	asfWMA     = Classification{Ext: "wma", MIME: "audio/x-ms-wma"}
	asfGeneric = Classification{Ext: "asf", MIME: "application/vnd.ms-asf"}
)

// resolveASF looks for the stream-type GUIDs of the stream properties objects
// anywhere after the top-level header GUID.
func resolveASF(header []byte) (Classification, bool) {
	video := ContainsFrom(len(asfHeaderGUID), 0, asfVideoGUID).Match(header)
	audio := ContainsFrom(len(asfHeaderGUID), 0, asfAudioGUID).Match(header)
	switch {
	case video && audio:
		return asfVideo, true
	case video:
		return asfWMV, true
	case audio:
		return asfWMA, true
	default:
		return asfGeneric, true
	}
}

// ============================================================================
// JPEG 2000
// ============================================================================

const (
	jp2Signature   = "\x00\x00\x00\x0C\x6A\x50\x20\x20\x0D\x0A\x87\x0A"
	jp2BrandOffset = 20
)

var jp2Brands = []brand{
	{prefix: "jp2 ", class: Classification{"jp2", "image/jp2"}},
	{prefix: "jpx ", class: Classification{"jpx", "image/jpx"}},
	{prefix: "jpm ", class: Classification{"jpm", "image/jpm"}},
	{prefix: "mjp2", class: Classification{"mj2", "image/mj2"}},
}

// resolveJP2 falls through for brands it does not know.
func resolveJP2(header []byte) (Classification, bool) {
	for _, b := range jp2Brands {
		if At(jp2BrandOffset, b.prefix).Match(header) {
			return b.class, true
		}
	}
	return Classification{}, false
}

// ============================================================================
// RIFF
// ============================================================================

var riffForms = []brand{
	{prefix: "WEBP", class: Classification{"webp", "image/webp"}},
	{prefix: "WAVE", class: Classification{"wav", "audio/wav"}},
	{prefix: "AVI ", class: Classification{"avi", "video/avi"}},
}

func resolveRIFF(header []byte) (Classification, bool) {
	for _, f := range riffForms {
		if At(8, f.prefix).Match(header) {
			return f.class, true
		}
	}
	return Classification{}, false
}

// ============================================================================
// EBML (Matroska / WebM)
// ============================================================================

const ebmlDocTypeID = "\x42\x82"

var ebmlDocTypes = []brand{
	{prefix: "matroska", class: Classification{"mkv", "video/x-matroska"}},
	{prefix: "webm", class: Classification{"webm", "video/webm"}},
}

// resolveEBML reads the DocType element: its ID, a one-byte size, the value.
func resolveEBML(header []byte) (Classification, bool) {
	from := 4
	for {
		i := indexWithin(header, from, 0, []byte(ebmlDocTypeID))
		if i < 0 {
			return Classification{}, false
		}
		value := i + len(ebmlDocTypeID) + 1
		for _, d := range ebmlDocTypes {
			if At(value, d.prefix).Match(header) {
				return d.class, true
			}
		}
		from = i + 1
	}
}

// ============================================================================
// Zip compound documents
// ============================================================================

const zipLocalHeader = "PK\x03\x04"

// ZipClassification is the default classification of a Zip archive with no
// recognised internal marker.
var ZipClassification = Classification{Ext: "zip", MIME: "application/zip"}

// ocfTypes maps the content of a leading, stored "mimetype" entry to a
// classification. EPUB, OpenDocument, Krita and OpenRaster all use this layout.
var ocfTypes = map[string]Classification{
	"application/epub+zip":                             {"epub", "application/epub+zip"},
	"application/x-krita":                              {"kra", "application/x-krita"},
	"image/openraster":                                 {"ora", "image/openraster"},
	"application/vnd.oasis.opendocument.text":          {"odt", "application/vnd.oasis.opendocument.text"},
	"application/vnd.oasis.opendocument.spreadsheet":   {"ods", "application/vnd.oasis.opendocument.spreadsheet"},
	"application/vnd.oasis.opendocument.presentation":  {"odp", "application/vnd.oasis.opendocument.presentation"},
	"application/vnd.oasis.opendocument.graphics":      {"odg", "application/vnd.oasis.opendocument.graphics"},
	"application/vnd.oasis.opendocument.formula":       {"odf", "application/vnd.oasis.opendocument.formula"},
	"application/vnd.oasis.opendocument.text-template": {"ott", "application/vnd.oasis.opendocument.text-template"},
}

// zipMarker recognises a specialization from the raw sample or from the names
// of the local file entries it contains.
type zipMarker struct {
	name    string
	content Matcher
	entry   string
	class   Classification
}

func (m zipMarker) match(header []byte, entries []string) bool {
	if m.content != nil {
		return m.content.Match(header)
	}
	for _, e := range entries {
		if strings.HasPrefix(e, m.entry) {
			return true
		}
	}
	return false
}

// zipMarkers are searched in order when there is no readable mimetype entry.
var zipMarkers = []zipMarker{
	{name: "epub", content: Contains(0, "mimetypeapplication/epub+zip"), class: Classification{"epub", "application/epub+zip"}},
	{name: "krita", content: Ordered(4, "mimetype", "application/x-krita"), class: Classification{"kra", "application/x-krita"}},
	{name: "procreate", entry: "Document.archive", class: Classification{"procreate", "application/x-procreate"}},
	{name: "openraster", content: Contains(0, "mimetypeimage/openraster"), class: Classification{"ora", "image/openraster"}},
	{name: "docx", entry: "word/", class: Classification{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}},
	{name: "xlsx", entry: "xl/", class: Classification{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}},
	{name: "pptx", entry: "ppt/", class: Classification{"pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"}},
	{name: "jar", entry: "META-INF/MANIFEST.MF", class: Classification{"jar", "application/java-archive"}},
}

// zipResolver returns a resolver that falls back to generic for archives
// without a recognised specialization. It never falls through.
func zipResolver(generic Classification) Resolver {
	return func(header []byte) (Classification, bool) {
		if !bytes.HasPrefix(header, []byte(zipLocalHeader)) {
			return generic, true
		}
		if mime, ok := zipMimetypeEntry(header); ok {
			if c, known := ocfTypes[mime]; known {
				return c, true
			}
		}
		entries := zipEntryNames(header)
		for _, m := range zipMarkers {
			if m.match(header, entries) {
				return m.class, true
			}
		}
		return generic, true
	}
}

// zipMimetypeEntry returns the content of the first local file entry when it
// is a stored (uncompressed) file named "mimetype".
func zipMimetypeEntry(header []byte) (string, bool) {
	const fixed = 30
	if len(header) < fixed {
		return "", false
	}
	method := binary.LittleEndian.Uint16(header[8:10])
	size := uint64(binary.LittleEndian.Uint32(header[18:22]))
	nameLen := int(binary.LittleEndian.Uint16(header[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(header[28:30]))
	if method != 0 || nameLen != len("mimetype") {
		return "", false
	}
	if !At(fixed, "mimetype").Match(header) {
		return "", false
	}
	start := fixed + nameLen + extraLen
	if start >= len(header) {
		return "", false
	}
	if size == 0 {
		// Sizes follow in a data descriptor; the content runs up to the
		// next record signature.
		next := bytes.Index(header[start:], []byte("PK"))
		if next <= 0 {
			return "", false
		}
		size = uint64(next)
	}
	if size > uint64(len(header)-start) {
		return "", false
	}
	return string(header[start : start+int(size)]), true
}

// zipEntryNames walks the local file headers in the sample and returns the
// entry names it can read. Entries whose compressed size is deferred to a data
// descriptor are skipped by scanning for the next local header.
func zipEntryNames(header []byte) []string {
	const fixed = 30
	var names []string
	off := 0
	for off+fixed <= len(header) && bytes.Equal(header[off:off+4], []byte(zipLocalHeader)) {
		rec := header[off:]
		size := uint64(binary.LittleEndian.Uint32(rec[18:22]))
		nameLen := int(binary.LittleEndian.Uint16(rec[26:28]))
		extraLen := int(binary.LittleEndian.Uint16(rec[28:30]))
		if fixed+nameLen > len(rec) {
			break
		}
		names = append(names, string(rec[fixed:fixed+nameLen]))

		data := fixed + nameLen + extraLen
		if data > len(rec) {
			break
		}
		if size == 0 && binary.LittleEndian.Uint16(rec[6:8])&0x0008 != 0 {
			next := bytes.Index(rec[data:], []byte(zipLocalHeader))
			if next < 0 {
				break
			}
			off += data + next
			continue
		}
		if size > uint64(len(rec)-data) {
			break
		}
		off += data + int(size)
	}
	return names
}
