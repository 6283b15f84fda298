package magic

import (
	"bytes"
	"encoding/binary"
)

// Sample builders shared by the package tests.

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	return append(b, make([]byte, n-len(b))...)
}

// withNUL appends a NUL so the sample lands in the binary branch.
func withNUL(s string) []byte {
	return append([]byte(s), 0x00)
}

func pngWith(chunks ...string) []byte {
	b := []byte(pngSignature + "\x00\x00\x00\x0DIHDR\x00\x00\x00\x10\x00\x00\x00\x10\x08\x06\x00\x00\x00")
	for _, c := range chunks {
		b = append(b, "\x00\x00\x00\x08"+c+"\x00\x00\x00\x01\x00\x00\x00\x00"...)
	}
	return b
}

// oggPage builds a first Ogg page with a single-segment table followed by
// packet.
func oggPage(packet string) []byte {
	b := []byte("OggS\x00\x02")
	b = append(b, make([]byte, 20)...)
	b = append(b, 0x01, byte(len(packet)))
	return append(b, packet...)
}

func asfHeader(guids ...string) []byte {
	b := []byte(asfHeaderGUID)
	b = append(b, make([]byte, 14)...)
	for _, g := range guids {
		b = append(b, "\x91\x07\xDC\xB7\xB7\xA9\xCF\x11\x8E\xE6\x00\xC0\x0C\x20\x53\x65"...)
		b = append(b, make([]byte, 8)...)
		b = append(b, g...)
	}
	return b
}

// ftypBox builds an ftyp box with a major brand and compatible brands.
func ftypBox(major string, compatible ...string) []byte {
	var body bytes.Buffer
	body.WriteString("ftyp")
	body.WriteString(major)
	body.Write([]byte{0x00, 0x00, 0x02, 0x00})
	for _, c := range compatible {
		body.WriteString(c)
	}
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(body.Len()+4))
	return append(size, body.Bytes()...)
}

func jp2Header(brand string) []byte {
	return []byte(jp2Signature + "\x00\x00\x00\x14ftyp" + brand + "\x00\x00\x00\x00")
}

func ebmlHeader(docType string) []byte {
	b := []byte("\x1A\x45\xDF\xA3\x01\x00\x00\x00\x00\x00\x00\x1F")
	b = append(b, "\x42\x86\x81\x01\x42\xF7\x81\x01"...)
	b = append(b, 0x42, 0x82, 0x80|byte(len(docType)))
	return append(b, docType...)
}

// zipEntry builds a local file header followed by content. A negative size
// writes zero sizes and sets the data-descriptor flag.
func zipEntry(name, content string, method uint16, dataDescriptor bool) []byte {
	h := make([]byte, 30)
	copy(h, zipLocalHeader)
	binary.LittleEndian.PutUint16(h[4:], 20)
	if dataDescriptor {
		binary.LittleEndian.PutUint16(h[6:], 0x0008)
	} else {
		binary.LittleEndian.PutUint32(h[18:], uint32(len(content)))
		binary.LittleEndian.PutUint32(h[22:], uint32(len(content)))
	}
	binary.LittleEndian.PutUint16(h[8:], method)
	binary.LittleEndian.PutUint16(h[26:], uint16(len(name)))
	h = append(h, name...)
	return append(h, content...)
}

// tsPackets returns n transport stream packets, each preceded by skip bytes
// of timecode.
func tsPackets(skip, n int) []byte {
	var b []byte
	for range n {
		b = append(b, make([]byte, skip)...)
		b = append(b, padTo([]byte("\x47\x40\x00\x10"), 188)...)
	}
	return b
}

func tarHeader(name string) []byte {
	b := padTo([]byte(name), 257)
	b = append(b, "ustar\x0000"...)
	return padTo(b, 512)
}

// binaryWitnesses holds, for every binary rule, a sample that rule must be the
// first to match.
var binaryWitnesses = map[string][]byte{
	"pdf":           withNUL("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n"),
	"eps":           withNUL("%!PS-Adobe-3.0 EPSF-3.0\n"),
	"ps":            withNUL("%!PS-Adobe-3.0\n"),
	"xpm2":          withNUL("! XPM2\n"),
	"xpm3":          withNUL("/* XPM */\n"),
	"rtf":           withNUL(`{\rtf1\ansi`),
	"7z":            []byte("7z\xBC\xAF\x27\x1C\x00\x04"),
	"apng":          pngWith("acTL", "IDAT"),
	"png":           pngWith("IDAT"),
	"glb":           []byte("glTF\x02\x00\x00\x00"),
	"otf":           []byte("OTTO\x00\x0A\x00\x80"),
	"it":            withNUL("IMPM"),
	"mov":           []byte("\x00\x00\x00\x08wide"),
	"mjpeg":         []byte("\x00\x00\x00\x08mdat"),
	"mpeg1-ps":      []byte("\x00\x00\x01\xBA\x21\x00\x01"),
	"mpeg2-ps":      []byte("\x00\x00\x01\xBA\x44\x00\x04"),
	"mpeg":          []byte("\x00\x00\x01\xB3\x14\x00"),
	"ttf":           []byte("\x00\x01\x00\x00\x00\x0F\x00\x80"),
	"mp2t":          tsPackets(0, 3),
	"bdav":          tsPackets(4, 3),
	"ktx":           []byte("\xABKTX 11\xBB\x0D\x0A\x1A\x0A"),
	"rpm":           []byte("\xED\xAB\xEE\xDB\x03\x00"),
	"eps-binary":    []byte("\xC5\xD0\xD3\xC6\x1E\x00"),
	"zstd":          []byte("\x28\xB5\x2F\xFD\x04\x00"),
	"elf":           []byte("\x7FELF\x02\x01\x01\x00"),
	"msg":           withNUL("!BDN"),
	"parquet":       []byte("PAR1\x15\x04"),
	"ac3":           []byte("\x0B\x77\x12\x34"),
	"dmg":           []byte("\x78\x01\x00\x00"),
	"exe":           []byte("MZ\x90\x00\x03\x00"),
	"compress":      []byte("\x1F\x9D\x90"),
	"gif":           []byte("GIF89a\x01\x00\x01\x00"),
	"swf":           []byte("FWS\x0A\x00\x00"),
	"jxr":           []byte("II\xBC\x01\x08\x00"),
	"bz2":           withNUL("BZh91AY&SY"),
	"mpc7":          []byte("MP+\x07\x00"),
	"jls":           []byte("\xFF\xD8\xFF\xF7\x00\x0B"),
	"flif":          withNUL("FLIF"),
	"psd":           []byte("8BPS\x00\x01"),
	"riff":          []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
	"mpc8":          withNUL("MPCK"),
	"aiff":          []byte("FORM\x00\x00\x00\x00AIFF"),
	"icns":          []byte("icns\x00\x00\x10\x00"),
	"zip":           zipEntry("a.txt", "hello", 0, false),
	"clip":          []byte("CSFCHUNK\x00\x00\x00\x00"),
	"ogg":           oggPage("\x01vorbis\x00\x00\x00\x00"),
	"midi":          []byte("MThd\x00\x00\x00\x06"),
	"ebml":          ebmlHeader("webm"),
	"asf":           asfHeader(asfAudioGUID),
	"ftyp":          ftypBox("isom", "isom", "mp41"),
	"3gp5":          withNUL("3gp5"),
	"jp2":           jp2Header("jp2 "),
	"id3":           []byte("ID3\x04\x00\x00"),
	"mp3":           []byte("\xFF\xFB\x90\x00"),
	"mp2":           []byte("\xFF\xFD\x90\x00"),
	"mp1":           []byte("\xFF\xFF\x90\x00"),
	"mp1-c20e":      []byte("\xC2\x0E\x00"),
	"mp1-c2c1":      []byte("\xC2\xC1\x00"),
	"mp1-c2d6":      []byte("\xC2\xD6\x00"),
	"mp1-c47b":      []byte("\xC4\x7B\x00"),
	"mp1-c893":      []byte("\xC8\x93\x00"),
	"mp1-e40f":      []byte("\xE4\x0F\x00"),
	"aac-mpeg4":     []byte("\xFF\xF1\x50\x80\x00"),
	"aac-mpeg2":     []byte("\xFF\xF9\x50\x80\x00"),
	"mpeg-audio-f":  []byte("\xFF\xF0\x00"),
	"mpeg-audio-e":  []byte("\xFF\xE0\x00"),
	"woff":          []byte("wOFF\x00\x01\x00\x00"),
	"woff2":         []byte("wOF2OTTO\x00\x00"),
	"pcap":          []byte("\xD4\xC3\xB2\xA1\x02\x00\x04\x00"),
	"dsf":           []byte("DSD \x1C\x00\x00\x00"),
	"lz":            []byte("LZIP\x01\x0C"),
	"flac":          []byte("fLaC\x00\x00\x00\x22"),
	"bpg":           []byte("BPG\xFB\x00"),
	"wv":            withNUL("wvpk"),
	"wasm":          []byte("\x00asm\x01\x00\x00\x00"),
	"ape":           []byte("MAC \x96\x0F\x00\x00"),
	"sqlite":        withNUL("SQLite format 3"),
	"crx":           []byte("Cr24\x03\x00\x00\x00"),
	"cab":           []byte("MSCF\x00\x00\x00\x00"),
	"jpeg":          []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF\x00"),
	"bmp":           []byte("BM\x36\x00\x0C\x00"),
	"gzip":          []byte("\x1F\x8B\x08\x00\x00\x00"),
	"rm":            []byte(".RMF\x00\x00\x00\x12"),
	"cr2":           []byte("II\x2A\x00\x10\x00\x00\x00CR\x02\x00"),
	"tiff-ii-space": withNUL("I I"),
	"tiff-le":       []byte("II*\x00\x08\x00\x00\x00"),
	"tiff-be":       []byte("MM\x00*\x00\x00\x00\x08"),
	"rar":           []byte("Rar!\x1A\x07\x00\xCF"),
	"rar5":          []byte("Rar!\x1A\x07\x01\x00"),
	"wmf":           []byte("\xD7\xCD\xC6\x9A\x00\x00"),
	"flv":           []byte("FLV\x01\x05\x00"),
	"xbm":           withNUL("#define x_width 8\n"),
	"amr":           withNUL("#!AMR\n"),
	"crw":           []byte("II\x1A\x00\x00\x00HEAPCCDR"),
	"mrw":           []byte("\x00MRM\x00\x00"),
	"orf":           []byte("IIRO\x08\x00\x00\x00"),
	"raf":           withNUL("FUJIFILMCCD-RAW 0201"),
	"panasonic-raw": []byte("IIU\x00\x08\x00\x00\x00"),
	"rw2":           []byte("IIU\x00\x18\x00\x00\x00"),
	"iiq":           withNUL("MMMMRaw"),
	"x3f":           withNUL("FOVb"),
	"blend":         withNUL("BLENDER-v279"),
	"nes":           []byte("NES\x1A\x02\x01"),
	"xz":            []byte("\xFD7zXZ\x00\x00\x04"),
	"tar":           tarHeader("hello.txt"),
	"macho":         []byte("\xCF\xFA\xED\xFE\x07\x00\x00\x01"),
	"lz4":           []byte("\x04\x22\x4D\x18\x64\x40"),
	"cur":           []byte("\x00\x00\x02\x00\x01\x00"),
	"ico":           []byte("\x00\x00\x01\x00\x01\x00"),
}

// textWitnesses holds, for every text rule, a binary-free sample that rule
// must be the first to match.
var textWitnesses = map[string][]byte{
	"pdf":         []byte("%PDF-1.4\n1 0 obj\n"),
	"eps":         []byte("%!PS-Adobe-3.0 EPSF-3.0\n%%BoundingBox: 0 0 10 10\n"),
	"ps":          []byte("%!PS-Adobe-2.0\n"),
	"xpm2":        []byte("! XPM2\n16 7 2 1\n"),
	"xpm3":        []byte("/* XPM */\nstatic char *x[] = {\n"),
	"rtf":         []byte(`{\rtf1\ansi\deff0 hello}`),
	"utf16be-bom": []byte("\xFE\xFF\x4E\x2D"),
	"utf16le-bom": []byte("\xFF\xFE\x2D\x4E"),
	"utf8-bom":    []byte("\xEF\xBB\xBFhello"),
	"obj":         []byte("# cube\nv 1.0 1.0 -1.0\n"),
	"markup":      []byte("<!DOCTYPE html>\n<html></html>\n"),
	"json":        []byte(`{"a":1}`),
}
