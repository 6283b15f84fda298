package magic

// Resolver picks a concrete classification for a header whose top-level
// signature is shared by several formats. It returns false when none of the
// formats it knows apply; evaluation then continues with the next rule.
type Resolver func(header []byte) (Classification, bool)

// Rule is one entry of an ordered catalog. Exactly one of Class and Resolve
// is used: Resolve when it is non-nil, Class otherwise.
type Rule struct {
	Name    string
	Match   Matcher
	Class   Classification
	Resolve Resolver
}

// apply evaluates the rule against header.
func (r Rule) apply(header []byte) (Classification, bool) {
	if !r.Match.Match(header) {
		return Classification{}, false
	}
	if r.Resolve != nil {
		return r.Resolve(header)
	}
	return r.Class, true
}

// evaluate returns the first rule in rules that classifies header.
func evaluate(rules []Rule, header []byte) (Classification, string, bool) {
	for _, r := range rules {
		if c, ok := r.apply(header); ok {
			return c, r.Name, true
		}
	}
	return Classification{}, "", false
}

// rule builds a Rule with a fixed classification.
func rule(name string, m Matcher, ext, mime string) Rule {
	return Rule{Name: name, Match: m, Class: Classification{Ext: ext, MIME: mime}}
}

// resolved builds a Rule that delegates to a Resolver.
func resolved(name string, m Matcher, fn Resolver) Rule {
	return Rule{Name: name, Match: m, Resolve: fn}
}
