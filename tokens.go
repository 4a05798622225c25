package mdv

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Token is one entry of the flat token stream the tree builder consumes.
//
// Block tokens come in `<name>_open` / `<name>_close` pairs, with the text of a block held by a
// single `inline` token whose Children are the inline runs.
type Token struct {
	Type     string
	Tag      string
	Content  string
	Info     string
	Attrs    map[string]string
	Children []Token
	// 1-based line of the token in the tokenized source
	Line int
	// Block nesting depth, 0 for top level blocks
	Level int
}

// Attr returns the attribute value, or "" if missing
func (t Token) Attr(name string) string {
	if t.Attrs == nil {
		return ""
	}
	return t.Attrs[name]
}

// Tokenizer adapts goldmark's block/inline tree to a flat token stream
type Tokenizer struct {
	gm goldmark.Markdown
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		gm: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// Tokenize parses markdown source into a flat token stream
func (t *Tokenizer) Tokenize(src []byte) []Token {
	doc := t.gm.Parser().Parse(text.NewReader(src))

	w := &tokenWalker{source: src}
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, 0)
	}

	slog.Debug("tokenized markdown", "tokens", len(w.tokens))
	return w.tokens
}

type tokenWalker struct {
	source []byte
	tokens []Token
}

func getLineNumber(content []byte, byteOffset int) int {
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	return bytes.Count(content[:byteOffset], []byte("\n")) + 1
}

func (w *tokenWalker) emit(tok Token) {
	w.tokens = append(w.tokens, tok)
}

func (w *tokenWalker) open(name, tag string, n ast.Node, level int, attrs map[string]string) {
	w.emit(Token{Type: name + "_open", Tag: tag, Line: w.lineOf(n), Level: level, Attrs: attrs})
}

func (w *tokenWalker) close(name, tag string, level int) {
	w.emit(Token{Type: name + "_close", Tag: tag, Level: level})
}

func (w *tokenWalker) children(n ast.Node, level int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, level)
	}
}

// block emits the tokens of a block node and everything below it
func (w *tokenWalker) block(n ast.Node, level int) {
	switch node := n.(type) {
	case *ast.Heading:
		tag := fmt.Sprintf("h%d", node.Level)
		w.open("heading", tag, node, level, nil)
		w.inline(node, level+1)
		w.close("heading", tag, level)

	case *ast.Paragraph:
		w.open("paragraph", "p", node, level, nil)
		w.inline(node, level+1)
		w.close("paragraph", "p", level)

	case *ast.TextBlock:
		// tight list items carry their text without a paragraph
		w.inline(node, level)

	case *ast.Blockquote:
		w.open("blockquote", "blockquote", node, level, nil)
		w.children(node, level+1)
		w.close("blockquote", "blockquote", level)

	case *ast.List:
		if node.IsOrdered() {
			var attrs map[string]string
			if node.Start > 1 {
				attrs = map[string]string{"start": fmt.Sprint(node.Start)}
			}
			w.open("ordered_list", "ol", node, level, attrs)
			w.children(node, level+1)
			w.close("ordered_list", "ol", level)
		} else {
			w.open("bullet_list", "ul", node, level, nil)
			w.children(node, level+1)
			w.close("bullet_list", "ul", level)
		}

	case *ast.ListItem:
		w.open("list_item", "li", node, level, nil)
		w.children(node, level+1)
		w.close("list_item", "li", level)

	case *ast.FencedCodeBlock:
		w.emit(Token{
			Type:    "fence",
			Tag:     "code",
			Info:    strings.TrimSpace(string(node.Language(w.source))),
			Content: w.lines(node),
			Line:    w.lineOf(node),
			Level:   level,
		})

	case *ast.CodeBlock:
		w.emit(Token{
			Type:    "code_block",
			Tag:     "code",
			Content: w.lines(node),
			Line:    w.lineOf(node),
			Level:   level,
		})

	case *ast.HTMLBlock:
		content := w.lines(node)
		if node.HasClosure() {
			content += string(node.ClosureLine.Value(w.source))
		}
		w.emit(Token{Type: "html_block", Content: content, Line: w.lineOf(node), Level: level})

	case *ast.ThematicBreak:
		w.emit(Token{Type: "hr", Tag: "hr", Line: w.lineOf(node), Level: level})

	case *east.Table:
		w.table(node, level)

	default:
		slog.Debug("tokenizing unhandled block through its children", "kind", n.Kind().String())
		w.children(n, level)
	}
}

func (w *tokenWalker) table(node *east.Table, level int) {
	w.open("table", "table", node, level, nil)

	inBody := false
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *east.TableHeader:
			w.open("thead", "thead", row, level+1, nil)
			w.open("tr", "tr", row, level+2, nil)
			w.cells(row, "th", level+3)
			w.close("tr", "tr", level+2)
			w.close("thead", "thead", level+1)
		case *east.TableRow:
			if !inBody {
				w.open("tbody", "tbody", row, level+1, nil)
				inBody = true
			}
			w.open("tr", "tr", row, level+2, nil)
			w.cells(row, "td", level+3)
			w.close("tr", "tr", level+2)
		}
	}
	if inBody {
		w.close("tbody", "tbody", level+1)
	}

	w.close("table", "table", level)
}

func (w *tokenWalker) cells(row ast.Node, tag string, level int) {
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		w.open(tag, tag, c, level, nil)
		w.inline(c, level+1)
		w.close(tag, tag, level)
	}
}

// inline emits a single inline token holding the raw text of a block and its inline runs
func (w *tokenWalker) inline(n ast.Node, level int) {
	var children []Token
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		children = w.inlineRun(c, children)
	}

	content := w.lines(n)
	if content == "" {
		content = inlineText(children)
	}

	w.emit(Token{
		Type:     "inline",
		Content:  strings.TrimSpace(content),
		Children: children,
		Line:     w.lineOf(n),
		Level:    level,
	})
}

func (w *tokenWalker) inlineRun(n ast.Node, out []Token) []Token {
	switch node := n.(type) {
	case *ast.Text:
		out = append(out, Token{Type: "text", Content: unescapeText(string(node.Segment.Value(w.source)))})
		if node.HardLineBreak() {
			out = append(out, Token{Type: "hardbreak"})
		} else if node.SoftLineBreak() {
			out = append(out, Token{Type: "softbreak"})
		}

	case *ast.String:
		out = append(out, Token{Type: "text", Content: string(node.Value)})

	case *ast.CodeSpan:
		var buf strings.Builder
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(w.source))
			} else if s, ok := c.(*ast.String); ok {
				buf.Write(s.Value)
			}
		}
		out = append(out, Token{Type: "code_inline", Tag: "code", Content: buf.String()})

	case *ast.Emphasis:
		name, tag := "em", "em"
		if node.Level >= 2 {
			name, tag = "strong", "strong"
		}
		out = append(out, Token{Type: name + "_open", Tag: tag})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = w.inlineRun(c, out)
		}
		out = append(out, Token{Type: name + "_close", Tag: tag})

	case *east.Strikethrough:
		out = append(out, Token{Type: "s_open", Tag: "s"})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = w.inlineRun(c, out)
		}
		out = append(out, Token{Type: "s_close", Tag: "s"})

	case *ast.Link:
		attrs := map[string]string{"href": string(node.Destination)}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		out = append(out, Token{Type: "link_open", Tag: "a", Attrs: attrs})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = w.inlineRun(c, out)
		}
		out = append(out, Token{Type: "link_close", Tag: "a"})

	case *ast.AutoLink:
		url := string(node.URL(w.source))
		href := url
		if node.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:") {
			href = "mailto:" + url
		}
		out = append(out,
			Token{Type: "link_open", Tag: "a", Attrs: map[string]string{"href": href}},
			Token{Type: "text", Content: url},
			Token{Type: "link_close", Tag: "a"},
		)

	case *ast.Image:
		var alt []Token
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			alt = w.inlineRun(c, alt)
		}
		attrs := map[string]string{"src": string(node.Destination), "alt": inlineText(alt)}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		out = append(out, Token{Type: "image", Tag: "img", Attrs: attrs})

	case *ast.RawHTML:
		var buf strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			buf.Write(seg.Value(w.source))
		}
		out = append(out, Token{Type: "html_inline", Content: buf.String()})

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = w.inlineRun(c, out)
		}
	}
	return out
}

// lines joins the raw source lines of a block
func (w *tokenWalker) lines(n ast.Node) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	var buf strings.Builder
	l := n.Lines().Len()
	for i := 0; i < l; i++ {
		line := n.Lines().At(i)
		buf.Write(line.Value(w.source))
	}
	return buf.String()
}

// lineOf finds the first source line of a node, looking at its descendants when it has no lines
func (w *tokenWalker) lineOf(n ast.Node) int {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return getLineNumber(w.source, n.Lines().At(0).Start)
	}
	if t, ok := n.(*ast.Text); ok {
		return getLineNumber(w.source, t.Segment.Start)
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if l := w.lineOf(c); l > 0 {
			return l
		}
	}
	return 0
}

// inlineText flattens inline runs to their plain text
func inlineText(runs []Token) string {
	var buf strings.Builder
	for _, r := range runs {
		switch r.Type {
		case "text", "code_inline":
			buf.WriteString(r.Content)
		case "softbreak", "hardbreak":
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// unescapeText resolves backslash escapes of punctuation, except the ones guarding a bracket
// construct, which the inline rewrite needs to see
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) || !isASCIIPunct(s[i+1]) {
			buf.WriteByte(c)
			continue
		}
		next := s[i+1]
		if next == '[' || next == ']' || (next == ':' && i+2 < len(s) && s[i+2] == '[') {
			buf.WriteByte(c)
			continue
		}
		buf.WriteByte(next)
		i++
	}
	return buf.String()
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') || (c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}
