package magic

import "bytes"

// Matcher reports whether a sample satisfies a byte pattern.
// Matchers never read past the end of the sample.
type Matcher interface {
	Match(sample []byte) bool
}

// MatchFunc adapts a plain function to the Matcher interface.
type MatchFunc func(sample []byte) bool

// Match calls f(sample).
func (f MatchFunc) Match(sample []byte) bool { return f(sample) }

// literal matches a fixed byte string at a fixed offset. An offset greater
// than zero stands for that many wildcard bytes before the literal.
type literal struct {
	offset int
	lit    []byte
}

// Prefix matches lit at offset zero.
func Prefix(lit string) Matcher {
	return literal{lit: []byte(lit)}
}

// At matches lit after skip don't-care bytes.
func At(skip int, lit string) Matcher {
	return literal{offset: skip, lit: []byte(lit)}
}

func (m literal) Match(sample []byte) bool {
	end := m.offset + len(m.lit)
	if end > len(sample) {
		return false
	}
	return bytes.Equal(sample[m.offset:end], m.lit)
}

// oneOf matches when the byte at pos is any member of set.
type oneOf struct {
	pos int
	set []byte
}

// OneOf matches when sample[pos] is one of set.
func OneOf(pos int, set ...byte) Matcher {
	return oneOf{pos: pos, set: set}
}

// ByteRange matches when sample[pos] lies in [lo, hi].
func ByteRange(pos int, lo, hi byte) Matcher {
	set := make([]byte, 0, int(hi)-int(lo)+1)
	for b := int(lo); b <= int(hi); b++ {
		set = append(set, byte(b))
	}
	return oneOf{pos: pos, set: set}
}

func (m oneOf) Match(sample []byte) bool {
	if m.pos >= len(sample) {
		return false
	}
	return bytes.IndexByte(m.set, sample[m.pos]) >= 0
}

// contains searches for lit inside sample[from:within]. A within of zero
// means the whole sample.
type contains struct {
	from   int
	within int
	lit    []byte
}

// Contains matches when lit occurs anywhere in the first within bytes.
func Contains(within int, lit string) Matcher {
	return contains{within: within, lit: []byte(lit)}
}

// ContainsFrom matches when lit occurs in sample[from:within].
func ContainsFrom(from, within int, lit string) Matcher {
	return contains{from: from, within: within, lit: []byte(lit)}
}

func (m contains) Match(sample []byte) bool {
	return indexWithin(sample, m.from, m.within, m.lit) >= 0
}

// ordered matches when every needle occurs after the previous one.
type ordered struct {
	from    int
	needles [][]byte
}

// Ordered matches when the needles occur in order, each one starting after the
// end of the previous match, scanning from offset from.
func Ordered(from int, needles ...string) Matcher {
	m := ordered{from: from}
	for _, n := range needles {
		m.needles = append(m.needles, []byte(n))
	}
	return m
}

func (m ordered) Match(sample []byte) bool {
	pos := m.from
	for _, n := range m.needles {
		i := indexWithin(sample, pos, 0, n)
		if i < 0 {
			return false
		}
		pos = i + len(n)
	}
	return true
}

type all []Matcher

// All matches when every matcher matches.
func All(matchers ...Matcher) Matcher { return all(matchers) }

func (m all) Match(sample []byte) bool {
	for _, sub := range m {
		if !sub.Match(sample) {
			return false
		}
	}
	return true
}

type anyOf []Matcher

// Any matches when at least one matcher matches.
func Any(matchers ...Matcher) Matcher { return anyOf(matchers) }

func (m anyOf) Match(sample []byte) bool {
	for _, sub := range m {
		if sub.Match(sample) {
			return true
		}
	}
	return false
}

// indexWithin returns the absolute index of lit in sample[from:within], or -1.
func indexWithin(sample []byte, from, within int, lit []byte) int {
	end := len(sample)
	if within > 0 && within < end {
		end = within
	}
	if from < 0 {
		from = 0
	}
	if from >= end {
		return -1
	}
	i := bytes.Index(sample[from:end], lit)
	if i < 0 {
		return -1
	}
	return from + i
}
