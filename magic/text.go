package magic

import (
	"bytes"
)

// Detector inspects the header and trailer samples of text-compatible input.
type Detector func(header, trailer []byte) (Classification, bool)

// TextRule is one entry of the text table.
type TextRule struct {
	Name   string
	Detect Detector
}

// headerRule lifts a header-only Rule into the text table.
func headerRule(r Rule) TextRule {
	return TextRule{
		Name: r.Name,
		Detect: func(header, _ []byte) (Classification, bool) {
			return r.apply(header)
		},
	}
}

var (
	htmlClass = Classification{Ext: "html", MIME: "text/html"}
	svgClass  = Classification{Ext: "svg", MIME: "image/svg+xml"}
	atomClass = Classification{Ext: "atom", MIME: "application/atom+xml"}
	xmlClass  = Classification{Ext: "xml", MIME: "text/xml"}
	objClass  = Classification{Ext: "obj", MIME: "model/obj"}
	jsonClass = Classification{Ext: "json", MIME: "application/json"}
)

func newTextCatalog() []TextRule {
	var rules []TextRule
	for _, r := range documentRules {
		rules = append(rules, headerRule(r))
	}
	return append(rules,
		headerRule(rule("utf16be-bom", Prefix("\xFE\xFF"), "txt", "text/plain; charset=utf-16be")),
		headerRule(rule("utf16le-bom", Prefix("\xFF\xFE"), "txt", "text/plain; charset=utf-16le")),
		headerRule(rule("utf8-bom", Prefix("\xEF\xBB\xBF"), "txt", "text/plain; charset=utf-8")),
		TextRule{Name: "obj", Detect: detectOBJ},
		TextRule{Name: "markup", Detect: detectMarkup},
		TextRule{Name: "json", Detect: detectJSON},
	)
}

var defaultTextRules = newTextCatalog()

// TextRules returns a copy of the built-in text table in evaluation order.
func TextRules() []TextRule {
	return append([]TextRule(nil), defaultTextRules...)
}

// detectOBJ recognises Wavefront OBJ by a leading comment line or a leading
// vertex line. Headers starting with "#define " are C sources or XBM.
func detectOBJ(header, _ []byte) (Classification, bool) {
	if bytes.HasPrefix(header, []byte("#define ")) {
		return Classification{}, false
	}
	if len(header) > 0 && header[0] == '#' && bytes.IndexByte(header[1:], '\n') >= 0 {
		return objClass, true
	}
	if isVertexLine(header) {
		return objClass, true
	}
	return Classification{}, false
}

// isVertexLine reports whether b starts with "v N N N\n".
func isVertexLine(b []byte) bool {
	if len(b) == 0 || b[0] != 'v' {
		return false
	}
	pos := 1
	for i := 0; i < 3; i++ {
		if pos >= len(b) || !isBlank(b[pos]) {
			return false
		}
		pos++
		n := scanNumber(b[pos:])
		if n == 0 {
			return false
		}
		pos += n
	}
	return pos < len(b) && b[pos] == '\n'
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// scanNumber returns the length of the decimal number at the start of b, or 0.
// Accepted: optional sign, digits, optional fraction, optional exponent and
// an optional trailing dot.
func scanNumber(b []byte) int {
	i := 0
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	intDigits := countDigits(b[i:])
	i += intDigits
	fracDigits := 0
	if i < len(b) && b[i] == '.' {
		fracDigits = countDigits(b[i+1:])
		if fracDigits > 0 {
			i += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}
		if d := countDigits(b[j:]); d > 0 {
			i = j + d
		}
	}
	if i < len(b) && b[i] == '.' {
		i++
	}
	return i
}

func countDigits(b []byte) int {
	n := 0
	for n < len(b) && b[n] >= '0' && b[n] <= '9' {
		n++
	}
	return n
}

// detectMarkup distinguishes SVG, Atom/RSS, XML and HTML. A single leading
// comment is skipped.
func detectMarkup(header, _ []byte) (Classification, bool) {
	trimmed := bytes.TrimSpace(header)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return Classification{}, false
	}
	doc := bytes.ToLower(trimmed)
	doc = bytes.ReplaceAll(doc, []byte("\n"), nil)
	doc = bytes.ReplaceAll(doc, []byte("\r"), nil)
	if bytes.HasPrefix(doc, []byte("<!--")) {
		if end := bytes.Index(doc[4:], []byte("-->")); end >= 0 {
			doc = bytes.TrimLeft(doc[4+end+3:], " \t\f\v")
		}
	}

	switch {
	case bytes.HasPrefix(doc, []byte("<svg")):
		return svgClass, true
	case bytes.HasPrefix(doc, []byte("<?xml")):
		if bytes.Contains(doc, []byte("<feed")) || bytes.Contains(doc, []byte("<rss")) {
			return atomClass, true
		}
		if bytes.Contains(doc, []byte("<svg")) {
			return svgClass, true
		}
		return xmlClass, true
	case bytes.HasPrefix(doc, []byte("<!doctype svg")):
		return svgClass, true
	case bytes.HasPrefix(doc, []byte("<!doctype html")), bytes.HasPrefix(doc, []byte("<html")):
		return htmlClass, true
	}
	return Classification{}, false
}

// detectJSON checks only the outermost delimiters: the first non-space byte
// of the header and the last non-space byte of the trailer.
func detectJSON(header, trailer []byte) (Classification, bool) {
	head := bytes.TrimLeft(header, " \t\r\n\f\v")
	tail := bytes.TrimRight(trailer, " \t\r\n\f\v")
	if len(head) == 0 || len(tail) == 0 {
		return Classification{}, false
	}
	switch {
	case head[0] == '{' && tail[len(tail)-1] == '}':
		return jsonClass, true
	case head[0] == '[' && tail[len(tail)-1] == ']':
		return jsonClass, true
	}
	return Classification{}, false
}
