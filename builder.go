package mdv

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// compileState is shared by one compile and the nested container builds it spawns.
// Nothing in it outlives the compile.
type compileState struct {
	src        string
	lineOffset int

	components map[string]string
	imports    []string

	highlightPath string
	jobs          []highlightJob
}

type highlightJob struct {
	Key  string
	Code string
	Lang string
}

// recordImport remembers a generated import line once, in first-use order
func (s *compileState) recordImport(line string) {
	if !slices.Contains(s.imports, line) {
		s.imports = append(s.imports, line)
	}
}

// frame is an open block waiting for its close token
type frame struct {
	tag      string
	attrs    string
	children []Node
}

// builder turns a token stream into a tree. Each builder owns its cursor; nested containers get
// their own builder.
type builder struct {
	state  *compileState
	tokens []Token
	pos    int

	root  []Node
	stack []*frame
}

func newBuilder(state *compileState, tokens []Token) *builder {
	return &builder{state: state, tokens: tokens}
}

func (b *builder) build() (*Root, error) {
	for b.pos < len(b.tokens) {
		tok := b.tokens[b.pos]

		if containerOpenAt(b.tokens, b.pos) {
			if err := b.container(); err != nil {
				return nil, err
			}
			continue
		}

		// only top level tables become nodes of their own, nested ones are folded into their parent markup
		if tok.Type == "table_open" && len(b.stack) == 0 && b.dynamicTable() {
			continue
		}

		switch {
		case strings.HasSuffix(tok.Type, "_open"):
			b.stack = append(b.stack, &frame{tag: tok.Tag, attrs: tokenAttrs(tok)})

		case strings.HasSuffix(tok.Type, "_close"):
			if err := b.closeFrame(tok); err != nil {
				return nil, err
			}

		case tok.Type == "inline":
			b.push(&HTML{Markup: renderInline(tok.Children)})

		case tok.Type == "fence" || tok.Type == "code_block":
			b.push(b.codeBlock(tok))

		case tok.Type == "html_block":
			b.push(&HTML{Markup: strings.TrimRight(tok.Content, "\r\n")})

		case tok.Type == "hr":
			b.push(&HTML{Markup: "<hr>"})

		default:
			slog.Debug("skipping token", "type", tok.Type, "line", tok.Line)
		}

		b.pos++
	}

	if len(b.stack) > 0 {
		f := b.stack[len(b.stack)-1]
		return nil, &ParseError{Kind: ErrUnbalancedBlock, Context: fmt.Sprintf("<%s> is never closed", f.tag)}
	}

	return &Root{Children: b.root}, nil
}

// push appends a node to the innermost open block, or to the root
func (b *builder) push(n Node) {
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		top.children = append(top.children, n)
		return
	}
	b.root = append(b.root, n)
}

// container consumes a `[` ... `]{...}` span starting at the cursor and builds its content on
// a fresh builder
func (b *builder) container() error {
	openLine := b.tokens[b.pos].Line
	depth := 1

	for j := b.pos + 3; j < len(b.tokens); {
		if containerOpenAt(b.tokens, j) {
			depth++
			j += 3
			continue
		}

		props, hasProps, ok := containerCloseAt(b.tokens, j)
		if !ok {
			j++
			continue
		}

		depth--
		if depth > 0 {
			j += 3
			continue
		}

		inner := b.tokens[b.pos+3 : j]
		slog.Debug("building container", "line", openLine, "tokens", len(inner))

		sub, err := newBuilder(b.state, inner).build()
		if err != nil {
			return err
		}

		c := &Container{Tag: DefaultContainerTag, Children: sub.Children, Line: openLine}
		if hasProps {
			p := ParseProps(props)
			c.Tag = p.Tag(DefaultContainerTag)
			c.Props = p.AttrString()
		}
		b.push(c)

		b.pos = j + 3
		return nil
	}

	return newParseError(ErrUnclosedContainer, openLine+b.state.lineOffset, b.state.src)
}

// dynamicTable looks ahead from a table_open token for a `{... :data-source ...}` row.
// Without one the cursor is left where it was and the table renders as static markup.
func (b *builder) dynamicTable() bool {
	tokens := b.tokens
	i := b.pos + 1

	var headers []string
	var propsLine, placeholder string

	for i < len(tokens) && tokens[i].Type != "table_close" {
		t := tokens[i]

		if t.Type == "th_open" && i+1 < len(tokens) && tokens[i+1].Type == "inline" {
			headers = append(headers, tokens[i+1].Content)
			i += 2
			continue
		}

		if t.Type == "tbody_open" && i+3 < len(tokens) &&
			tokens[i+1].Type == "tr_open" && tokens[i+2].Type == "td_open" && tokens[i+3].Type == "inline" &&
			!isDataSourceLine(tokens[i+3].Content) {
			placeholder = tokens[i+3].Content
		}

		if t.Type == "inline" && isDataSourceLine(t.Content) {
			propsLine = strings.TrimSpace(t.Content)
		}

		i++
	}

	end := i + 1

	// the annotation may also sit in its own paragraph right below the table
	if propsLine == "" {
		if inline, ok := markerParagraph(tokens, end); ok && isDataSourceLine(inline.Content) {
			propsLine = strings.TrimSpace(inline.Content)
			end += 3
		}
	}

	if propsLine == "" {
		slog.Debug("table has no data source, rendering static markup", "line", tokens[b.pos].Line)
		return false
	}

	b.push(&Table{Headers: headers, PropsLine: propsLine, Placeholder: placeholder})
	b.pos = end
	return true
}

func isDataSourceLine(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && strings.Contains(s, ":data-source")
}

// closeFrame pops the innermost block and appends its synthesized markup to the parent
func (b *builder) closeFrame(tok Token) error {
	if len(b.stack) == 0 {
		return &ParseError{Kind: ErrUnbalancedBlock, Context: fmt.Sprintf("%s has no matching open", tok.Type)}
	}
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]

	tag := f.tag
	attrs := f.attrs

	path, registered := b.state.components[tag]
	registered = registered && path != ""
	if registered {
		tag = ComponentName(path)
	}

	// only a component or slot annotation replaces the tag, other props are merged
	if body, ok := takeTrailingProps(f.children); ok {
		p := ParseProps(body)
		if p.Kind() != PropsNone {
			registered = false
		}
		tag = p.Tag(tag)
		attrs = joinAttrs(p.AttrString(), attrs)
	}

	if registered {
		b.state.recordImport(fmt.Sprintf("import %s from '%s';", tag, path))
	}

	var inner strings.Builder
	for _, c := range f.children {
		inner.WriteString(c.Value())
	}

	b.push(&HTML{Markup: fmt.Sprintf("<%s%s>%s</%s>", tag, attrPrefix(attrs), inner.String(), tag)})
	return nil
}

// takeTrailingProps removes a `{...}` annotation from the end of the last text child.
//
// The annotation is left alone when it belongs to an inline bracket (`[x]{...}`), when it is a
// `{{ }}` interpolation, or when it is the only text of the block.
func takeTrailingProps(children []Node) (string, bool) {
	if len(children) == 0 {
		return "", false
	}
	last, ok := children[len(children)-1].(*HTML)
	if !ok {
		return "", false
	}

	text, body, found := SplitTrailingProps(last.Markup)
	if !found || strings.HasPrefix(body, "{") {
		return "", false
	}
	text = strings.TrimRight(text, " \t")
	if text == "" || strings.HasSuffix(text, "]") {
		return "", false
	}

	last.Markup = text
	return body, true
}

// codeBlock queues a highlight job under the next key and returns the placeholder referencing it
func (b *builder) codeBlock(tok Token) Node {
	key := fmt.Sprintf("shiki_%d", len(b.state.jobs))
	b.state.jobs = append(b.state.jobs, highlightJob{Key: key, Code: tok.Content, Lang: tok.Info})

	slog.Debug("queued code block", "key", key, "lang", tok.Info, "line", tok.Line)

	return &HTML{Markup: fmt.Sprintf(`<CodeBlock name="%s" highlight-path="%s" raw='%s'></CodeBlock>`,
		key, b.state.highlightPath, escapeCode(tok.Content))}
}

// renderInline concatenates inline runs into markup
func renderInline(runs []Token) string {
	var b strings.Builder
	for _, r := range runs {
		switch r.Type {
		case "text":
			b.WriteString(r.Content)
		case "softbreak", "hardbreak":
			b.WriteString("<br>")
		case "code_inline":
			fmt.Fprintf(&b, "<code>%s</code>", escapeCode(r.Content))
		case "strong_open", "em_open", "s_open":
			fmt.Fprintf(&b, "<%s>", r.Tag)
		case "strong_close", "em_close", "s_close", "link_close":
			fmt.Fprintf(&b, "</%s>", r.Tag)
		case "link_open":
			href := r.Attr("href")
			if href == "" {
				href = "#"
			}
			fmt.Fprintf(&b, `<a href="%s"`, escapeHTML(href))
			if title := r.Attr("title"); title != "" {
				fmt.Fprintf(&b, ` title="%s"`, escapeHTML(title))
			}
			b.WriteString(">")
		case "image":
			fmt.Fprintf(&b, `<img src="%s" alt="%s"`, escapeHTML(r.Attr("src")), escapeHTML(r.Attr("alt")))
			if title := r.Attr("title"); title != "" {
				fmt.Fprintf(&b, ` title="%s"`, escapeHTML(title))
			}
			b.WriteString(">")
		default:
			b.WriteString(r.Content)
		}
	}
	return b.String()
}

// tokenAttrs serializes token attributes in a stable order
func tokenAttrs(tok Token) string {
	if len(tok.Attrs) == 0 {
		return ""
	}
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(tok.Attrs)) {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, escapeHTML(tok.Attrs[k])))
	}
	return strings.Join(parts, " ")
}

func joinAttrs(attrs ...string) string {
	var parts []string
	for _, a := range attrs {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

func attrPrefix(attrs string) string {
	if attrs == "" {
		return ""
	}
	return " " + attrs
}

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	// code also hides the characters the bracket rewrite and template interpolation react to
	codeEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
		"[", "&#91;",
		"]", "&#93;",
		"{", "&#123;",
		"}", "&#125;",
	)
)

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }

func escapeCode(s string) string { return codeEscaper.Replace(s) }
