package mdv

import (
	"fmt"
	"strings"
)

// PropsKind tells what a props annotation turns its element into
type PropsKind int

const (
	PropsNone PropsKind = iota
	PropsComponent
	PropsSlot
)

// Props is a parsed `{...}` annotation.
//
//	{#intro .lead .wide ::Card title="x"}
//	{::header::{ item }::}
type Props struct {
	ID          string
	Classes     []string
	Component   string
	Slot        string
	SlotBinding string
	// Whatever the scanner did not recognize, trimmed
	Passthrough string
}

// Kind resolves the annotation: a component wins over a slot
func (p Props) Kind() PropsKind {
	switch {
	case p.Component != "":
		return PropsComponent
	case p.Slot != "":
		return PropsSlot
	default:
		return PropsNone
	}
}

// Tag returns the element name the annotation asks for, or fallback
func (p Props) Tag(fallback string) string {
	switch p.Kind() {
	case PropsComponent:
		return p.Component
	case PropsSlot:
		return "template"
	default:
		return fallback
	}
}

// AttrString serializes the id, the classes and the passthrough text, in that order
func (p Props) AttrString() string {
	var parts []string
	if p.Kind() == PropsSlot {
		parts = append(parts, p.slotAttr())
	}
	if p.ID != "" {
		parts = append(parts, fmt.Sprintf(`id="%s"`, p.ID))
	}
	if len(p.Classes) > 0 {
		parts = append(parts, fmt.Sprintf(`class="%s"`, strings.Join(p.Classes, " ")))
	}
	if p.Passthrough != "" {
		parts = append(parts, p.Passthrough)
	}
	return strings.Join(parts, " ")
}

// HasAttrs reports whether the annotation renders any attribute
func (p Props) HasAttrs() bool {
	return p.ID != "" || len(p.Classes) > 0 || p.Passthrough != ""
}

func (p Props) slotAttr() string {
	if p.SlotBinding == "" {
		return "#" + p.Slot
	}
	return fmt.Sprintf(`#%s="%s"`, p.Slot, p.SlotBinding)
}

// ParseProps scans an annotation body, the text between the outer braces.
//
// Tokens are recognized in any order: `#id`, `.class`, `::name::binding::` and `::name`.
// Quoted values are skipped whole, so `title="a.b #c"` stays passthrough text.
func ParseProps(body string) Props {
	var p Props
	var rest []string

	s := body
	i := 0
	// atBoundary is true at the start of the body, after whitespace, and right after a recognized token
	atBoundary := true
	for i < len(s) {
		c := s[i]

		switch {
		case isSpace(c):
			i++
			atBoundary = true
			continue

		case atBoundary && strings.HasPrefix(s[i:], "::"):
			n := scanIdent(s, i+2)
			if n == i+2 {
				break
			}
			name := s[i+2 : n]
			if strings.HasPrefix(s[n:], "::") {
				bindStart := n + 2
				end := strings.Index(s[bindStart:], "::")
				if end == -1 {
					p.Slot = name
					p.SlotBinding = strings.TrimSpace(s[bindStart:])
					i = len(s)
				} else {
					p.Slot = name
					p.SlotBinding = strings.TrimSpace(s[bindStart : bindStart+end])
					i = bindStart + end + 2
				}
			} else {
				p.Component = name
				i = n
			}
			atBoundary = true
			continue

		case atBoundary && (c == '#' || c == '.'):
			n := scanIdent(s, i+1)
			if n == i+1 {
				break
			}
			if c == '#' {
				p.ID = s[i+1 : n]
			} else {
				p.Classes = append(p.Classes, s[i+1:n])
			}
			i = n
			atBoundary = true
			continue
		}

		// passthrough word, quotes are opaque
		n := scanWord(s, i)
		rest = append(rest, s[i:n])
		i = n
		atBoundary = false
	}

	p.Passthrough = strings.TrimSpace(strings.Join(rest, " "))
	return p
}

// SplitTrailingProps splits a line into its text and the body of a trailing `{...}` annotation.
//
// The annotation is the maximal balanced brace span ending at the last character. When the line
// does not end with `}` or its braces do not balance, ok is false and the line is left alone.
func SplitTrailingProps(line string) (text, body string, ok bool) {
	trimmed := strings.TrimRight(line, " \t\r\n")
	if !strings.HasSuffix(trimmed, "}") {
		return line, "", false
	}

	depth := 0
	for i := len(trimmed) - 1; i >= 0; i-- {
		switch trimmed[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return trimmed[:i], trimmed[i+1 : len(trimmed)-1], true
			}
			if depth < 0 {
				return line, "", false
			}
		}
	}
	return line, "", false
}

// braceEnds pairs every `{` of s with its balancing `}` in a single sweep. ends[i] is the index
// just past the partner of the `{` at s[i], or -1 when it is never closed.
func braceEnds(s string) []int {
	var ends []int
	var open []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if ends == nil {
				ends = make([]int, len(s))
				for j := range ends {
					ends[j] = -1
				}
			}
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				ends[open[n-1]] = i + 1
				open = open[:n-1]
			}
		}
	}
	return ends
}

// LookupAttr finds `name="value"` (or single-quoted, or bare) in an annotation body
func LookupAttr(body, name string) (string, bool) {
	s := strings.TrimSpace(body)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	i := 0
	for i < len(s) {
		if isSpace(s[i]) {
			i++
			continue
		}
		n := scanWord(s, i)
		word := s[i:n]
		i = n

		key, value, found := strings.Cut(word, "=")
		if !found || key != name {
			continue
		}
		return unquote(value), true
	}
	return "", false
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// scanIdent returns the end of the identifier starting at i
func scanIdent(s string, i int) int {
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return i
}

// scanWord returns the end of the whitespace-delimited word starting at i.
// Quoted sections may contain whitespace; an unterminated quote runs to the end.
func scanWord(s string, i int) int {
	var quote byte
	for i < len(s) {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case isSpace(c):
			return i
		}
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
