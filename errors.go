package mdv

import (
	"fmt"
	"strings"
)

// contextRadius is the number of source lines shown on each side of an error line
const contextRadius = 5

// ParseErrorKind names a structural problem in a document
type ParseErrorKind string

const (
	ErrUnclosedContainer   ParseErrorKind = "unclosed container"
	ErrUnexpectedContainer ParseErrorKind = "unexpected container close"
	ErrUnbalancedBlock     ParseErrorKind = "unbalanced block"
)

// ParseError is a fatal structural error, located in the original source
type ParseError struct {
	Kind ParseErrorKind
	// 1-based line in the original document
	Line int
	// Source excerpt around Line, with the offending line marked
	Context string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ErrUnclosedContainer:
		fmt.Fprintf(&b, "%s: container opened at line %d is never closed", e.Kind, e.Line)
	default:
		fmt.Fprintf(&b, "%s at line %d", e.Kind, e.Line)
	}
	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
	}
	return b.String()
}

// HighlightError is returned when the highlight service fails for a code block
type HighlightError struct {
	Key  string
	Lang string
	Err  error
}

func (e *HighlightError) Error() string {
	return fmt.Sprintf("highlighting %s (lang %q): %v", e.Key, e.Lang, e.Err)
}

func (e *HighlightError) Unwrap() error { return e.Err }

// sourceContext renders the lines around line (1-based) with a `>` marker on it
func sourceContext(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	from := max(1, line-contextRadius)
	to := min(len(lines), line+contextRadius)
	width := len(fmt.Sprint(to))

	var b strings.Builder
	for i := from; i <= to; i++ {
		marker := " "
		if i == line {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %*d | %s\n", marker, width, i, strings.TrimRight(lines[i-1], "\r"))
	}
	return strings.TrimRight(b.String(), "\n")
}
