package magic

import "testing"

func TestMatchers(t *testing.T) {
	tests := []struct {
		name   string
		m      Matcher
		sample string
		want   bool
	}{
		{"prefix", Prefix("GIF8"), "GIF89a", true},
		{"prefix short sample", Prefix("GIF8"), "GIF", false},
		{"at", At(4, "ftyp"), "\x00\x00\x00\x20ftypisom", true},
		{"at past end", At(4, "ftyp"), "\x00\x00\x00\x20fty", false},
		{"one of", OneOf(2, 3, 5, 7), "PK\x05", true},
		{"one of miss", OneOf(2, 3, 5, 7), "PK\x04", false},
		{"one of past end", OneOf(2, 3), "PK", false},
		{"byte range", ByteRange(1, 0xE0, 0xEF), "\xFF\xE7", true},
		{"byte range miss", ByteRange(1, 0xE0, 0xEF), "\xFF\xF0", false},
		{"contains", Contains(0, "acTL"), "....acTL", true},
		{"contains within", Contains(6, "acTL"), "....acTL", false},
		{"contains from", ContainsFrom(2, 0, "ab"), "ab....", false},
		{"contains from hit", ContainsFrom(2, 8, "ab"), "....ab", true},
		{"contains from beyond", ContainsFrom(10, 0, "ab"), "ab", false},
		{"ordered", Ordered(0, "acTL", "IDAT"), "acTL....IDAT", true},
		{"ordered reversed", Ordered(0, "acTL", "IDAT"), "IDAT....acTL", false},
		{"ordered overlapping", Ordered(0, "abc", "cd"), "abcd", false},
		{"all", All(Prefix("a"), At(2, "c")), "abc", true},
		{"all miss", All(Prefix("a"), At(2, "d")), "abc", false},
		{"any", Any(Prefix("x"), Prefix("a")), "abc", true},
		{"any miss", Any(Prefix("x"), Prefix("y")), "abc", false},
		{"func", MatchFunc(func(b []byte) bool { return len(b) == 3 }), "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Match([]byte(tt.sample)); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.sample, got, tt.want)
			}
		})
	}
}
