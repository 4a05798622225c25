package mdv

import (
	"log/slog"
	"strings"
)

const containerOpenMarker = "["

// containerOpenAt reports whether tokens[i:i+3] is a top level paragraph holding only `[`
func containerOpenAt(tokens []Token, i int) bool {
	inline, ok := markerParagraph(tokens, i)
	return ok && inline.Content == containerOpenMarker
}

// containerCloseAt reports whether tokens[i:i+3] is a top level paragraph holding `]` or `]{...}`.
// The annotation body is returned without its outer braces.
func containerCloseAt(tokens []Token, i int) (props string, hasProps, ok bool) {
	inline, isMarker := markerParagraph(tokens, i)
	if !isMarker || !strings.HasPrefix(inline.Content, "]") {
		return "", false, false
	}

	rest := strings.TrimSpace(inline.Content[1:])
	if rest == "" {
		return "", false, true
	}

	text, body, found := SplitTrailingProps(rest)
	if !found || strings.TrimSpace(text) != "" {
		return "", false, false
	}
	return body, true, true
}

func markerParagraph(tokens []Token, i int) (Token, bool) {
	if i+2 >= len(tokens) {
		return Token{}, false
	}
	open, inline, closing := tokens[i], tokens[i+1], tokens[i+2]
	if open.Type != "paragraph_open" || open.Level != 0 || inline.Type != "inline" || closing.Type != "paragraph_close" {
		return Token{}, false
	}
	return inline, true
}

// ValidateContainers checks that every container opener has exactly one closer.
//
// src is the original document and lineOffset the number of lines before the tokenized body,
// so the reported line and context point into the original document.
func ValidateContainers(tokens []Token, src string, lineOffset int) error {
	var open []int // source lines of unclosed openers

	for i := 0; i < len(tokens); i++ {
		if containerOpenAt(tokens, i) {
			open = append(open, tokens[i].Line)
			i += 2
			continue
		}
		if _, _, ok := containerCloseAt(tokens, i); ok {
			if len(open) == 0 {
				return newParseError(ErrUnexpectedContainer, tokens[i].Line+lineOffset, src)
			}
			open = open[:len(open)-1]
			i += 2
		}
	}

	if len(open) > 0 {
		// the opener nearest to the end of the document is the one missing its closer
		return newParseError(ErrUnclosedContainer, open[len(open)-1]+lineOffset, src)
	}

	slog.Debug("containers balanced")
	return nil
}

func newParseError(kind ParseErrorKind, line int, src string) *ParseError {
	return &ParseError{
		Kind:    kind,
		Line:    line,
		Context: sourceContext(src, line),
	}
}
