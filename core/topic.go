package core

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strings"
)

// PartKind tags the variant a TopicPart holds.
type PartKind uint8

const (
	KindExact PartKind = iota
	KindAny
	KindRange
	KindPattern
)

func (k PartKind) tag() byte {
	switch k {
	case KindExact:
		return 'E'
	case KindAny:
		return 'A'
	case KindRange:
		return 'R'
	case KindPattern:
		return 'P'
	default:
		return '?'
	}
}

// TopicPart is one dot-separated fragment of a Topic. Exactly one of its
// fields is meaningful, selected by Kind:
//
//	KindExact   -> Literal holds the fragment text
//	KindAny     -> Name holds the wildcard's capture name
//	KindRange   -> Options holds the ordered alternatives
//	KindPattern -> Source holds the regex text, compiled holds the
//	               eagerly-compiled *regexp.Regexp
type TopicPart struct {
	Kind    PartKind
	Literal string
	Name    string
	Options []string
	Source  string

	compiled *regexp.Regexp
}

// Exact constructs a literal TopicPart.
func Exact(literal string) TopicPart { return TopicPart{Kind: KindExact, Literal: literal} }

// Any constructs a named-wildcard TopicPart.
func Any(name string) TopicPart { return TopicPart{Kind: KindAny, Name: name} }

// RangePart constructs an alternation TopicPart. Named RangePart (not
// Range) to avoid colliding with the builtin range keyword's natural
// reading in call sites.
func RangePart(options ...string) TopicPart {
	cp := make([]string, len(options))
	copy(cp, options)
	return TopicPart{Kind: KindRange, Options: cp}
}

// PatternPart constructs a regex TopicPart, compiling source eagerly.
// The compiled form is anchored on both ends so a match means source
// fully matches the target rather than merely finding a substring —
// required because Go's regexp picks the leftmost-first alternative,
// not the leftmost-longest one, so an unanchored search over e.g.
// "a|ab" against "ab" would otherwise report a (wrong) partial match.
// Returns a *ParseError if source does not compile.
func PatternPart(source string) (TopicPart, error) {
	re, err := regexp.Compile("^(?:" + source + ")$")
	if err != nil {
		return TopicPart{}, &ParseError{Input: source, Offset: 0, Reason: err.Error()}
	}
	return TopicPart{Kind: KindPattern, Source: source, compiled: re}, nil
}

// display renders the part back to its grammar form.
func (p TopicPart) display() string {
	switch p.Kind {
	case KindExact:
		return p.Literal
	case KindAny:
		return "{" + p.Name + "}"
	case KindRange:
		return "(" + strings.Join(p.Options, "|") + ")"
	case KindPattern:
		return "/" + p.Source + "/"
	default:
		return ""
	}
}

// encodeInto appends this part's canonical-key encoding to buf:
// a tag byte, then a length-prefixed payload per field, following §4.1's
// "length-prefixed tag byte per part" rule.
func (p TopicPart) encodeInto(buf *bytes.Buffer) {
	buf.WriteByte(p.Kind.tag())
	switch p.Kind {
	case KindExact:
		writeLP(buf, p.Literal)
	case KindAny:
		writeLP(buf, p.Name)
	case KindRange:
		writeUvarint(buf, uint64(len(p.Options)))
		for _, opt := range p.Options {
			writeLP(buf, opt)
		}
	case KindPattern:
		writeLP(buf, p.Source)
	}
}

func writeLP(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// keyDelimiter separates successive part encodings in the canonical key.
// It never appears inside a length-prefixed payload's own encoding
// because payloads are read by explicit length, not by scanning for this
// byte, so its value only needs to avoid colliding with a tag byte.
const keyDelimiter = 0x00

// Topic is an immutable, ordered sequence of TopicPart. Construct one with
// Parse (grammar-checked) or NewFromParts (programmatic, used by Format
// and by tests).
type Topic struct {
	Parts   []TopicPart
	Literal string
	Key     string
	Hash    uint64
	IsExact bool
}

// NewFromParts builds a Topic directly from parts, bypassing the grammar.
// Used internally by Format (substituting Any parts with Exact ones) and
// by tests that want to construct structurally distinct topics sharing a
// display string, per §3's key-injectivity invariant.
func NewFromParts(parts []TopicPart) *Topic {
	lits := make([]string, len(parts))
	isExact := true
	var keyBuf bytes.Buffer
	for i, p := range parts {
		lits[i] = p.display()
		if p.Kind != KindExact {
			isExact = false
		}
		if i > 0 {
			keyBuf.WriteByte(keyDelimiter)
		}
		p.encodeInto(&keyBuf)
	}
	key := keyBuf.String()
	return &Topic{
		Parts:   parts,
		Literal: strings.Join(lits, "."),
		Key:     key,
		Hash:    Hash64([]byte(key)),
		IsExact: isExact,
	}
}

// Parse parses a dotted topic string per the grammar in §6:
//
//	topic   := part ( "." part )*
//	part    := exact | any | range | pattern
//	exact   := [^.{}()/|]+
//	any     := "{" [^}]+ "}"
//	range   := "(" opt ( "|" opt )+ ")"
//	pattern := "/" regex "/"
//
// Empty segments and malformed forms return a *ParseError.
func Parse(s string) (*Topic, error) {
	if s == "" {
		return nil, &ParseError{Input: s, Offset: 0, Reason: "empty topic"}
	}

	var parts []TopicPart
	i := 0
	for {
		if i >= len(s) {
			return nil, &ParseError{Input: s, Offset: i, Reason: "trailing separator"}
		}
		part, next, err := parsePart(s, i)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		i = next
		if i == len(s) {
			break
		}
		if s[i] != '.' {
			return nil, &ParseError{Input: s, Offset: i, Reason: "expected '.' separator"}
		}
		i++
	}

	return NewFromParts(parts), nil
}

// parsePart parses exactly one part of s starting at i, returning the
// part and the index immediately after it (at the next '.' or at
// len(s)).
func parsePart(s string, i int) (TopicPart, int, error) {
	switch s[i] {
	case '{':
		j := strings.IndexByte(s[i+1:], '}')
		if j < 0 {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "unterminated '{'"}
		}
		name := s[i+1 : i+1+j]
		if name == "" {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "empty wildcard name"}
		}
		return Any(name), i + 1 + j + 1, nil

	case '(':
		j := strings.IndexByte(s[i+1:], ')')
		if j < 0 {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "unterminated '('"}
		}
		inner := s[i+1 : i+1+j]
		opts := strings.Split(inner, "|")
		if len(opts) < 2 {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "range needs at least two alternatives"}
		}
		for _, o := range opts {
			if o == "" {
				return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "empty range alternative"}
			}
		}
		return RangePart(opts...), i + 1 + j + 1, nil

	case '/':
		j := strings.IndexByte(s[i+1:], '/')
		if j < 0 {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "unterminated '/'"}
		}
		source := s[i+1 : i+1+j]
		part, err := PatternPart(source)
		if err != nil {
			pe := err.(*ParseError)
			pe.Input = s
			pe.Offset = i
			return TopicPart{}, 0, pe
		}
		return part, i + 1 + j + 1, nil

	case ')', '}', '|', '.':
		return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "unexpected character"}

	default:
		j := i
		for j < len(s) && !isSpecial(s[j]) {
			j++
		}
		if j == i {
			return TopicPart{}, 0, &ParseError{Input: s, Offset: i, Reason: "unexpected character"}
		}
		return Exact(s[i:j]), j, nil
	}
}

func isSpecial(c byte) bool {
	switch c {
	case '.', '{', '}', '(', ')', '/', '|':
		return true
	default:
		return false
	}
}

// MatchNode describes the outcome of matching one part pair.
type MatchNode struct {
	Matched  bool
	Name     string // non-empty only for a matched Any part
	Captured string
}

// MatchResult is the outcome of Topic.Match: one node per part, plus an
// overall Matched flag (false if the part counts differ or any node
// fails to match).
type MatchResult struct {
	Matched bool
	Nodes   []MatchNode
}

// Match treats self as the pattern and other as the target, per the
// table in §4.1. other's parts must be exact for any row except the
// both-generic row to apply; a non-exact other part never matches.
func (self *Topic) Match(other *Topic) MatchResult {
	if len(self.Parts) != len(other.Parts) {
		return MatchResult{Matched: false}
	}

	nodes := make([]MatchNode, len(self.Parts))
	overall := true
	for i, sp := range self.Parts {
		op := other.Parts[i]
		node := matchPart(sp, op)
		nodes[i] = node
		if !node.Matched {
			overall = false
		}
	}
	return MatchResult{Matched: overall, Nodes: nodes}
}

func matchPart(self, other TopicPart) MatchNode {
	if other.Kind != KindExact {
		// "any generic, any generic -> non-matching" and, by extension,
		// any non-exact target part never matches a pattern part.
		return MatchNode{Matched: false}
	}
	target := other.Literal

	switch self.Kind {
	case KindExact:
		return MatchNode{Matched: self.Literal == target, Captured: target}
	case KindAny:
		return MatchNode{Matched: true, Name: self.Name, Captured: target}
	case KindRange:
		for _, opt := range self.Options {
			if opt == target {
				return MatchNode{Matched: true, Captured: target}
			}
		}
		return MatchNode{Matched: false}
	case KindPattern:
		return MatchNode{Matched: self.compiled.MatchString(target), Captured: target}
	default:
		return MatchNode{Matched: false}
	}
}

// Format substitutes every Any part whose Name is a key of assignments
// with an Exact part holding the assigned value, leaving all other parts
// untouched. If every resulting part is Exact, the returned Topic's
// IsExact is true.
func (t *Topic) Format(assignments map[string]string) *Topic {
	parts := make([]TopicPart, len(t.Parts))
	for i, p := range t.Parts {
		if p.Kind == KindAny {
			if v, ok := assignments[p.Name]; ok {
				parts[i] = Exact(v)
				continue
			}
		}
		parts[i] = p
	}
	return NewFromParts(parts)
}

// Equal reports whether t and other are the same topic per §3: equality
// is canonical-key equality, not literal equality.
func (t *Topic) Equal(other *Topic) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.Key == other.Key
}
