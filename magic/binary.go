package magic

// binaryBytes marks the bytes that never occur in text-compatible content:
// 0x00-0x08, 0x0B, 0x0E-0x1A and 0x1C-0x1F.
var binaryBytes = func() (t [256]bool) {
	for b := 0x00; b <= 0x08; b++ {
		t[b] = true
	}
	t[0x0B] = true
	for b := 0x0E; b <= 0x1A; b++ {
		t[b] = true
	}
	for b := 0x1C; b <= 0x1F; b++ {
		t[b] = true
	}
	return t
}()

// IsBinary reports whether header contains at least one binary data byte.
// An empty header is not binary.
func IsBinary(header []byte) bool {
	for _, b := range header {
		if binaryBytes[b] {
			return true
		}
	}
	return false
}
