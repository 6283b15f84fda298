package magic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format names a rules file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Branch selects which table a custom rule joins.
type Branch string

const (
	BranchBinary Branch = "binary"
	BranchText   Branch = "text"
	BranchBoth   Branch = "both"
)

// ErrInvalidRule is returned for rule definitions that cannot be compiled.
var ErrInvalidRule = errors.New("magic: invalid rule")

// RuleSpec is the serialized form of a custom rule.
//
//	rules:
//	  - name: acme-archive
//	    ext: acme
//	    mime: application/x-acme
//	    offset: 0
//	    hex: "41434d4500"
//	    branch: binary
//
// Exactly one of Hex and Text holds the literal. When Within is non-zero the
// literal may occur anywhere in the first Within bytes, starting at Offset.
type RuleSpec struct {
	Name   string `yaml:"name" toml:"name"`
	Ext    string `yaml:"ext" toml:"ext"`
	MIME   string `yaml:"mime" toml:"mime"`
	Offset int    `yaml:"offset" toml:"offset"`
	Hex    string `yaml:"hex" toml:"hex"`
	Text   string `yaml:"text" toml:"text"`
	Within int    `yaml:"within" toml:"within"`
	Branch Branch `yaml:"branch" toml:"branch"`
}

type rulesDocument struct {
	Rules []RuleSpec `yaml:"rules" toml:"rules"`
}

// RuleSet holds compiled custom rules per branch, in file order.
type RuleSet struct {
	Binary []Rule
	Text   []Rule
}

// Len returns the number of table entries across both branches.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Binary) + len(rs.Text)
}

// LoadRules decodes and compiles a rules document.
func LoadRules(r io.Reader, format Format) (*RuleSet, error) {
	var doc rulesDocument
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("magic: decode yaml rules: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("magic: decode toml rules: %w", err)
		}
	default:
		return nil, fmt.Errorf("magic: unsupported rules format %q", format)
	}
	return CompileRules(doc.Rules)
}

// LoadRulesFile reads a rules file, choosing the format from its extension.
func LoadRulesFile(path string) (*RuleSet, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rs, err := LoadRules(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// FormatFor maps a file name to a rules format.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("magic: cannot infer rules format from %q", path)
}

// CompileRules turns rule specs into Rules.
func CompileRules(specs []RuleSpec) (*RuleSet, error) {
	rs := &RuleSet{}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		r, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("rule %d: %w: duplicate name %q", i, ErrInvalidRule, r.Name)
		}
		seen[r.Name] = true

		switch s.Branch {
		case BranchBinary:
			rs.Binary = append(rs.Binary, r)
		case BranchText:
			rs.Text = append(rs.Text, r)
		case BranchBoth, "":
			rs.Binary = append(rs.Binary, r)
			rs.Text = append(rs.Text, r)
		default:
			return nil, fmt.Errorf("rule %d: %w: unknown branch %q", i, ErrInvalidRule, s.Branch)
		}
	}
	return rs, nil
}

func (s RuleSpec) compile() (Rule, error) {
	if s.Name == "" {
		return Rule{}, fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if s.MIME == "" || s.Ext == "" {
		return Rule{}, fmt.Errorf("%w: %s: ext and mime are required", ErrInvalidRule, s.Name)
	}
	if s.Offset < 0 || s.Offset >= SampleSize {
		return Rule{}, fmt.Errorf("%w: %s: offset %d outside sample", ErrInvalidRule, s.Name, s.Offset)
	}
	if s.Within < 0 || s.Within > SampleSize {
		return Rule{}, fmt.Errorf("%w: %s: within %d outside sample", ErrInvalidRule, s.Name, s.Within)
	}

	var lit string
	switch {
	case s.Hex != "" && s.Text != "":
		return Rule{}, fmt.Errorf("%w: %s: hex and text are exclusive", ErrInvalidRule, s.Name)
	case s.Hex != "":
		b, err := hex.DecodeString(strings.ReplaceAll(s.Hex, " ", ""))
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %s: %v", ErrInvalidRule, s.Name, err)
		}
		lit = string(b)
	case s.Text != "":
		lit = s.Text
	default:
		return Rule{}, fmt.Errorf("%w: %s: empty literal", ErrInvalidRule, s.Name)
	}

	var m Matcher = At(s.Offset, lit)
	if s.Within > 0 {
		m = ContainsFrom(s.Offset, s.Within, lit)
	}
	return rule(s.Name, m, s.Ext, s.MIME), nil
}
