package mdv

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	scriptRegex = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
	styleRegex  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	setupAttr   = regexp.MustCompile(`(?i)(^|\s)setup(\s|$)`)
)

// ExtractScriptStyle locates the script block and the style blocks of a document body.
//
// Code is neutralized first so that example tags inside fences, indented code blocks or inline
// code spans are never picked up. Only the first script block is recognized. Style blocks are kept
// verbatim, in order.
func ExtractScriptStyle(body string) Sections {
	stripped := StripCode(body)
	sections := Sections{Body: body}

	var spans [][]int

	if m := scriptRegex.FindStringSubmatchIndex(stripped); m != nil {
		attrs := setupAttr.ReplaceAllString(body[m[2]:m[3]], " ")
		sections.Script = body[m[4]:m[5]]
		sections.ScriptLine = strings.Count(body[:m[4]], "\n") + 1
		sections.ScriptAttrs = strings.Join(strings.Fields(attrs), " ")
		spans = append(spans, m[:2])
	}

	for _, m := range styleRegex.FindAllStringIndex(stripped, -1) {
		sections.Styles = append(sections.Styles, body[m[0]:m[1]])
		spans = append(spans, m)
	}

	if len(spans) > 0 {
		b := []byte(body)
		for _, s := range spans {
			blank(b[s[0]:s[1]])
		}
		sections.Body = string(b)
	}

	slog.Debug("extracted script and styles",
		"hasScript", sections.Script != "",
		"scriptAttrs", sections.ScriptAttrs,
		"styles", len(sections.Styles))

	return sections
}

// StripCodeFences replaces the content of fenced code blocks, fences included, with spaces.
//
// Newlines are kept so the result has the same length and line numbering as the input.
func StripCodeFences(s string) string {
	b := []byte(s)
	var fence string
	start := 0

	lineStart := 0
	for lineStart < len(b) {
		lineEnd := strings.IndexByte(s[lineStart:], '\n')
		if lineEnd == -1 {
			lineEnd = len(b)
		} else {
			lineEnd += lineStart
		}
		line := strings.TrimLeft(s[lineStart:lineEnd], " ")

		if fence == "" {
			if f := fenceMarker(line); f != "" {
				fence = f
				start = lineStart
			}
		} else if closesFence(line, fence) {
			blank(b[start:lineEnd])
			fence = ""
		}

		lineStart = lineEnd + 1
	}

	// an unclosed fence runs to the end of the document
	if fence != "" {
		blank(b[start:])
	}

	return string(b)
}

// StripCode blanks every kind of markdown code: fenced blocks, indented blocks and inline code
// spans. Raw `<script>` and `<style>` blocks are left alone, their content is not markdown.
//
// Like StripCodeFences the result keeps the length and line numbering of the input.
func StripCode(s string) string {
	b := []byte(StripCodeFences(s))
	text := string(b)

	var rawClose *regexp.Regexp
	prevBlank, inIndented := true, false
	paraStart := -1

	lineStart := 0
	for lineStart <= len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd == -1 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		line := text[lineStart:lineEnd]
		isBlank := strings.TrimSpace(line) == ""

		prose := false
		switch {
		case rawClose != nil:
			if rawClose.MatchString(line) {
				rawClose = nil
			}
		case isBlank:
		case (prevBlank || inIndented) && indentWidth(line) >= 4:
			inIndented = true
			blank(b[lineStart:lineEnd])
		default:
			inIndented = false
			if tag := rawOpen.FindStringSubmatch(line); tag != nil {
				if !rawCloser(tag[1]).MatchString(line) {
					rawClose = rawCloser(tag[1])
				}
			} else {
				prose = true
			}
		}

		if prose {
			if paraStart == -1 {
				paraStart = lineStart
			}
		} else if paraStart != -1 {
			blankCodeSpans(b, paraStart, lineStart)
			paraStart = -1
		}

		prevBlank = isBlank
		lineStart = lineEnd + 1
	}
	if paraStart != -1 {
		blankCodeSpans(b, paraStart, len(b))
	}

	return string(b)
}

var (
	rawOpen         = regexp.MustCompile(`(?i)^ {0,3}<(script|style)(\s|>|$)`)
	scriptCloseLine = regexp.MustCompile(`(?i)</script\s*>`)
	styleCloseLine  = regexp.MustCompile(`(?i)</style\s*>`)
)

func rawCloser(tag string) *regexp.Regexp {
	if strings.EqualFold(tag, "script") {
		return scriptCloseLine
	}
	return styleCloseLine
}

// indentWidth measures leading whitespace in columns, a tab advancing to the next multiple of 4
func indentWidth(line string) int {
	w := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			w++
		case '\t':
			w += 4 - w%4
		default:
			return w
		}
	}
	return w
}

// blankCodeSpans blanks the inline code spans of the paragraph b[from:to]. A span opens with a
// backtick run and closes at the next run of the same length. A run length that found no closer is
// remembered so the paragraph is never rescanned for it.
func blankCodeSpans(b []byte, from, to int) {
	var unmatched map[int]bool
	i := from
	for i < to {
		if b[i] == '\\' {
			i += 2
			continue
		}
		if b[i] != '`' {
			i++
			continue
		}

		n := backtickRun(b, i, to)
		if unmatched[n] {
			i += n
			continue
		}
		closer := -1
		for j := i + n; j < to; {
			if b[j] != '`' {
				j++
				continue
			}
			m := backtickRun(b, j, to)
			if m == n {
				closer = j
				break
			}
			j += m
		}
		if closer == -1 {
			if unmatched == nil {
				unmatched = make(map[int]bool)
			}
			unmatched[n] = true
			i += n
			continue
		}
		blank(b[i : closer+n])
		i = closer + n
	}
}

func backtickRun(b []byte, i, to int) int {
	n := 0
	for i+n < to && b[i+n] == '`' {
		n++
	}
	return n
}

// fenceMarker returns the opening fence run of a line (``` or ~~~, possibly longer), or "".
func fenceMarker(line string) string {
	if len(line) < 3 {
		return ""
	}
	c := line[0]
	if c != '`' && c != '~' {
		return ""
	}
	n := 0
	for n < len(line) && line[n] == c {
		n++
	}
	if n < 3 {
		return ""
	}
	if c == '`' && strings.ContainsRune(line[n:], '`') {
		return ""
	}
	return line[:n]
}

func closesFence(line, fence string) bool {
	line = strings.TrimRight(line, " \t\r")
	if len(line) < len(fence) {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != fence[0] {
			return false
		}
	}
	return true
}

func blank(b []byte) {
	for i := range b {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}
