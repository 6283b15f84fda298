package magic

// documentRules are document formats whose first 4 KiB are often free of
// binary bytes. They head both the binary and the text table.
var documentRules = []Rule{
	rule("pdf", Prefix("%PDF-"), "pdf", "application/pdf"),
	// EPS must precede PS.
	rule("eps", All(Prefix("%!PS-Adobe-"), At(14, " EPSF-")), "eps", "application/eps"),
	rule("ps", Prefix("%!PS-Adobe-"), "ps", "application/postscript"),
	rule("xpm2", Prefix("! XPM2"), "xpm", "image/x-xpixmap"),
	rule("xpm3", Prefix("/* XPM */"), "xpm", "image/x-xpixmap"),
	rule("rtf", Prefix(`{\rtf`), "rtf", "application/rtf"),
}

const pngSignature = "\x89PNG\x0D\x0A\x1A\x0A"

// newBinaryCatalog builds the binary table. zip is the classification of a
// Zip archive without a recognised specialization.
func newBinaryCatalog(zip Classification) []Rule {
	rules := append([]Rule(nil), documentRules...)
	return append(rules,
		rule("7z", Prefix("7z\xBC\xAF\x27\x1C"), "7z", "application/x-7z-compressed"),
		// APNG must precede PNG.
		rule("apng", All(Prefix(pngSignature), Ordered(len(pngSignature), "acTL", "IDAT")), "apng", "image/apng"),
		rule("png", Prefix(pngSignature), "png", "image/png"),
		rule("glb", Prefix("glTF\x02\x00\x00\x00"), "glb", "model/gltf-binary"),
		rule("otf", Prefix("OTTO\x00"), "otf", "font/otf"),
		rule("it", Prefix("IMPM"), "it", "audio/x-it"),
		rule("mov", Any(At(4, "free"), At(4, "moov"), At(4, "wide")), "mov", "video/quicktime"),
		rule("mjpeg", At(4, "mdat"), "mov", "video/quicktime"),
		rule("mpeg1-ps", Prefix("\x00\x00\x01\xBA\x21"), "mpg", "video/MP1S"),
		rule("mpeg2-ps", Prefix("\x00\x00\x01\xBA\x44"), "mpg", "video/MP2P"),
		rule("mpeg", All(Prefix("\x00\x00\x01"), OneOf(3, 0xBA, 0xB3)), "mpg", "video/mpeg"),
		rule("ttf", Prefix("\x00\x01\x00\x00\x00"), "ttf", "font/ttf"),
		rule("mp2t", All(Prefix("\x47"), At(188, "\x47"), At(376, "\x47")), "ts", "video/mp2t"),
		rule("bdav", All(At(4, "\x47"), At(196, "\x47"), At(388, "\x47")), "m2ts", "video/mp2t"),
		rule("ktx", Prefix("\xABKTX 11\xBB\x0D\x0A\x1A\x0A"), "ktx", "image/ktx"),
		rule("rpm", Prefix("\xED\xAB\xEE\xDB"), "rpm", "application/x-rpm"),
		rule("eps-binary", Prefix("\xC5\xD0\xD3\xC6"), "eps", "application/eps"),
		rule("zstd", Prefix("\x28\xB5\x2F\xFD"), "zst", "application/zstd"),
		rule("elf", Prefix("\x7FELF"), "elf", "application/x-elf"),
		rule("msg", Prefix("!BDN"), "pst", "application/vnd.ms-outlook"),
		rule("parquet", Prefix("PAR1"), "parquet", "application/x-parquet"),
		rule("ac3", Prefix("\x0B\x77"), "ac3", "audio/vnd.dolby.dd-raw"),
		rule("dmg", Prefix("\x78\x01"), "dmg", "application/x-apple-diskimage"),
		rule("exe", Prefix("MZ"), "exe", "application/x-msdownload"),
		rule("compress", All(Prefix("\x1F"), OneOf(1, 0xA0, 0x9D)), "z", "application/x-compress"),
		rule("gif", Prefix("GIF8"), "gif", "image/gif"),
		rule("swf", All(OneOf(0, 'C', 'F'), At(1, "WS")), "swf", "application/x-shockwave-flash"),
		rule("jxr", Prefix("II\xBC"), "jxr", "image/vnd.ms-photo"),
		rule("bz2", Prefix("BZh"), "bz2", "application/x-bzip2"),
		rule("mpc7", Prefix("MP+"), "mpc", "audio/x-musepack"),
		// JPEG-LS must precede JPEG.
		rule("jls", Prefix("\xFF\xD8\xFF\xF7"), "jls", "image/jls"),
		rule("flif", Prefix("FLIF"), "flif", "image/flif"),
		rule("psd", Prefix("8BPS"), "psd", "image/vnd.adobe.photoshop"),
		resolved("riff", Prefix("RIFF"), resolveRIFF),
		rule("mpc8", Prefix("MPCK"), "mpc", "audio/x-musepack"),
		rule("aiff", Prefix("FORM"), "aif", "audio/aiff"),
		rule("icns", Prefix("icns"), "icns", "image/icns"),
		resolved("zip", All(Prefix("PK"), OneOf(2, 0x03, 0x05, 0x07), OneOf(3, 0x04, 0x06, 0x08)), zipResolver(zip)),
		rule("clip", Prefix("CSFCHUNK\x00\x00"), "clip", "application/x-clip-studio"),
		resolved("ogg", Prefix("OggS"), resolveOgg),
		rule("midi", Prefix("MThd"), "mid", "audio/midi"),
		resolved("ebml", Prefix("\x1A\x45\xDF\xA3"), resolveEBML),
		resolved("asf", Prefix(asfHeaderGUID[:10]), resolveASF),
		resolved("ftyp", At(4, "ftyp"), resolveFtyp),
		rule("3gp5", Prefix("3gp5"), "mp4", "video/mp4"),
		resolved("jp2", Prefix(jp2Signature), resolveJP2),
		rule("id3", Prefix("ID3"), "mp3", "audio/mpeg"),

		// MPEG audio frame sync: narrow alternatives before the broad fallbacks.
		rule("mp3", All(Prefix("\xFF"), OneOf(1, 0xE2, 0xE3, 0xF2, 0xF3, 0xFA, 0xFB)), "mp3", "audio/mpeg"),
		rule("mp2", All(Prefix("\xFF"), OneOf(1, 0xE4, 0xE5, 0xF4, 0xF5, 0xFC, 0xFD)), "mp2", "audio/mpeg"),
		rule("mp1", All(Prefix("\xFF"), OneOf(1, 0xE6, 0xE7, 0xF6, 0xF7, 0xFE, 0xFF)), "mp1", "audio/mpeg"),
		rule("mp1-c20e", Prefix("\xC2\x0E"), "mp1", "audio/mpeg"),
		rule("mp1-c2c1", Prefix("\xC2\xC1"), "mp1", "audio/mpeg"),
		rule("mp1-c2d6", Prefix("\xC2\xD6"), "mp1", "audio/mpeg"),
		rule("mp1-c47b", Prefix("\xC4\x7B"), "mp1", "audio/mpeg"),
		rule("mp1-c893", Prefix("\xC8\x93"), "mp1", "audio/mpeg"),
		rule("mp1-e40f", Prefix("\xE4\x0F"), "mp1", "audio/mpeg"),
		rule("aac-mpeg4", Prefix("\xFF\xF1"), "aac", "audio/aac"),
		rule("aac-mpeg2", Prefix("\xFF\xF9"), "aac", "audio/aac"),
		rule("mpeg-audio-f", All(Prefix("\xFF"), ByteRange(1, 0xF0, 0xFF)), "mp3", "audio/mpeg"),
		rule("mpeg-audio-e", All(Prefix("\xFF"), ByteRange(1, 0xE0, 0xEF)), "mp3", "audio/mpeg"),

		rule("woff", All(Prefix("wOFF"), Any(At(4, "\x00\x01\x00\x00"), At(4, "OTTO"))), "woff", "font/woff"),
		rule("woff2", All(Prefix("wOF2"), Any(At(4, "\x00\x01\x00\x00"), At(4, "OTTO"))), "woff2", "font/woff2"),
		rule("pcap", Any(Prefix("\xD4\xC3\xB2\xA1"), Prefix("\xA1\xB2\xC3\xD4")), "pcap", "application/vnd.tcpdump.pcap"),
		rule("dsf", Prefix("DSD "), "dsf", "audio/x-dsf"),
		rule("lz", Prefix("LZIP"), "lz", "application/x-lzip"),
		rule("flac", Prefix("fLaC"), "flac", "audio/x-flac"),
		rule("bpg", Prefix("BPG\xFB"), "bpg", "image/bpg"),
		rule("wv", Prefix("wvpk"), "wv", "audio/wavpack"),
		rule("wasm", Prefix("\x00asm"), "wasm", "application/wasm"),
		rule("ape", Prefix("MAC "), "ape", "audio/ape"),
		rule("sqlite", Prefix("SQLi"), "sqlite", "application/x-sqlite3"),
		rule("crx", Prefix("Cr24"), "crx", "application/x-google-chrome-extension"),
		rule("cab", Any(Prefix("MSCF"), Prefix("ISc(")), "cab", "application/vnd.ms-cab-compressed"),
		rule("jpeg", Prefix("\xFF\xD8\xFF"), "jpg", "image/jpeg"),
		rule("bmp", Prefix("BM"), "bmp", "image/bmp"),
		rule("gzip", Prefix("\x1F\x8B\x08"), "gz", "application/gzip"),
		rule("rm", Prefix(".RMF"), "rm", "audio/x-pn-realaudio"),
		// CR2 must precede TIFF.
		rule("cr2", Prefix("II\x2A\x00\x10\x00\x00\x00CR"), "cr2", "image/x-canon-cr2"),
		rule("tiff-ii-space", Prefix("I I"), "tif", "image/tiff"),
		rule("tiff-le", Prefix("II*"), "tif", "image/tiff"),
		rule("tiff-be", Prefix("MM\x00*"), "tif", "image/tiff"),
		rule("rar", Prefix("Rar!\x1A\x07\x00"), "rar", "application/x-rar-compressed"),
		rule("rar5", Prefix("Rar!\x1A\x07\x01\x00"), "rar", "application/x-rar-compressed"),
		rule("wmf", Prefix("\xD7\xCD\xC6\x9A"), "wmf", "application/x-msmetafile"),
		rule("flv", Prefix("FLV"), "flv", "video/x-flv"),
		rule("xbm", Prefix("#define"), "xbm", "image/x-xbitmap"),
		rule("amr", Prefix("#!AMR\n"), "amr", "audio/amr"),
		rule("crw", Prefix("II\x1A\x00\x00\x00HEAPCCDR"), "crw", "image/x-canon-crw"),
		rule("mrw", Prefix("\x00MRM"), "mrw", "image/x-minolta-mrw"),
		rule("orf", Any(Prefix("MMOR"), Prefix("IIRO"), Prefix("IIRS")), "orf", "image/x-olympus-orf"),
		rule("raf", Prefix("FUJIFILMCCD-RAW "), "raf", "image/x-fuji-raf"),
		rule("panasonic-raw", Prefix("IIU\x00\x08\x00\x00\x00"), "raw", "image/x-panasonic-raw"),
		rule("rw2", Prefix("IIU\x00\x18\x00\x00\x00"), "rw2", "image/x-panasonic-raw"),
		rule("iiq", Prefix("MMMMRaw"), "iiq", "image/x-phaseone-raw"),
		rule("x3f", Prefix("FOVb"), "x3f", "image/x-x3f"),
		rule("blend", Prefix("BLENDER"), "blend", "application/x-blender"),
		rule("nes", Prefix("NES\x1A"), "nes", "application/x-nintendo-nes-rom"),
		rule("xz", Prefix("\xFD7zXZ\x00"), "xz", "application/x-xz"),
		rule("tar", At(257, "ustar"), "tar", "application/x-tar"),
		rule("macho", Any(
			Prefix("\xFE\xED\xFA\xCE"), Prefix("\xFE\xED\xFA\xCF"),
			Prefix("\xCE\xFA\xED\xFE"), Prefix("\xCF\xFA\xED\xFE"),
		), "macho", "application/x-mach-binary"),
		rule("lz4", Prefix("\x04\x22\x4D\x18"), "lz4", "application/x-lz4"),
		rule("cur", Prefix("\x00\x00\x02\x00"), "cur", "image/x-icon"),
		rule("ico", Prefix("\x00\x00\x01\x00"), "ico", "image/x-icon"),
	)
}

// defaultBinaryRules is the binary table with the default Zip classification.
var defaultBinaryRules = newBinaryCatalog(ZipClassification)

// BinaryRules returns a copy of the built-in binary table in evaluation order.
func BinaryRules() []Rule {
	return append([]Rule(nil), defaultBinaryRules...)
}
