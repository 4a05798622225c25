package mdv

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

const (
	defaultRowKeyProp    = "id"
	defaultCellValueProp = "value"
)

// Transformer resolves the markup of every node of a tree.
//
// One Transformer serves one compile: table header variables are numbered across every tree it
// transforms.
type Transformer struct {
	tables        int
	headerScripts []string
}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform rewrites the tree in place and records the generated header declarations on root
func (t *Transformer) Transform(root *Root) {
	t.transformChildren(root.Children)
	root.HeaderScripts = slices.Clone(t.headerScripts)
}

func (t *Transformer) transformChildren(nodes []Node) {
	for _, n := range nodes {
		t.transformNode(n)
	}
}

func (t *Transformer) transformNode(n Node) {
	switch node := n.(type) {
	case *HTML:
		node.Markup = RewriteInline(node.Markup)
	case *Table:
		node.Markup = t.renderTable(node)
	case *Container:
		t.transformChildren(node.Children)
		node.Markup = renderContainer(node)
	}
}

func renderContainer(c *Container) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s%s>\n", c.Tag, attrPrefix(c.Props))
	b.WriteString(serializeNodes(c.Children))
	fmt.Fprintf(&b, "</%s>", c.Tag)
	return b.String()
}

// renderTable emits the iteration skeleton of a dynamic table
func (t *Transformer) renderTable(tbl *Table) string {
	dataSource, _ := LookupAttr(tbl.PropsLine, ":data-source")
	rowKey, ok := LookupAttr(tbl.PropsLine, "row-key-prop")
	if !ok || rowKey == "" {
		rowKey = defaultRowKeyProp
	}
	cellValue, ok := LookupAttr(tbl.PropsLine, "cell-value-prop")
	if !ok || cellValue == "" {
		cellValue = defaultCellValueProp
	}

	headersVar := fmt.Sprintf("__mdv_headers_%d", t.tables)
	t.tables++

	headers := tbl.Headers
	if headers == nil {
		headers = []string{}
	}
	encoded, _ := json.Marshal(headers)
	t.headerScripts = append(t.headerScripts, fmt.Sprintf("const %s = %s", headersVar, encoded))

	slog.Debug("rendering dynamic table", "dataSource", dataSource, "headers", headersVar, "rowKey", rowKey)

	var b strings.Builder
	b.WriteString("<table>\n")
	b.WriteString("  <thead>\n")
	b.WriteString("    <tr>")
	for _, h := range tbl.Headers {
		fmt.Fprintf(&b, "<th>%s</th>", h)
	}
	b.WriteString("</tr>\n")
	b.WriteString("  </thead>\n")
	b.WriteString("  <tbody>\n")
	fmt.Fprintf(&b, "    <tr v-if=\"%[1]s && %[1]s.length > 0\" v-for=\"item in %[1]s\" :key=\"item.%[2]s\">\n", dataSource, rowKey)
	fmt.Fprintf(&b, "      <td v-for=\"h in %s\" :key=\"h\">\n", headersVar)
	b.WriteString("        <template v-if=\"item[h]\">\n")
	b.WriteString("          <template v-if=\"typeof item[h] === 'object'\">\n")
	b.WriteString("            <component v-if=\"item[h].component\" :is=\"item[h].component\" v-bind=\"item\" />\n")
	fmt.Fprintf(&b, "            <span v-else>{{ item[h].%s }}</span>\n", cellValue)
	b.WriteString("          </template>\n")
	b.WriteString("          <span v-else>{{ item[h] }}</span>\n")
	b.WriteString("        </template>\n")
	b.WriteString("      </td>\n")
	b.WriteString("    </tr>\n")
	if tbl.Placeholder != "" {
		fmt.Fprintf(&b, "    <tr v-if=\"!%[1]s || %[1]s.length === 0\">\n", dataSource)
		fmt.Fprintf(&b, "      <td colspan=\"%d\">%s</td>\n", len(tbl.Headers), tbl.Placeholder)
		b.WriteString("    </tr>\n")
	}
	b.WriteString("  </tbody>\n")
	b.WriteString("</table>")
	return b.String()
}

// bracket is one `[content]` or `:[content]` construct with its optional annotation
type bracket struct {
	sigil      bool
	content    string
	annotation string
	annotated  bool
	// index just past the construct
	end int
}

// RewriteInline rewrites the bracket constructs of a markup string.
//
//	[text]{.note}        -> <span class="note">text</span>
//	:[expr]{::Badge}     -> <Badge>{{ expr }}</Badge>
//	[text]{::item::row::} -> <template #item="row">text</template>
//	:[expr]              -> {{ expr }}
//	[text]               -> [text]
//	\[text]{.note}       -> [text]{.note}, html escaped
func RewriteInline(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}

	braces := braceEnds(s)

	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]

		if c == '\\' && i+1 < len(s) && startsBracket(s, i+1) {
			if m, ok := matchBracket(s, i+1, braces); ok {
				out.WriteString(escapeHTML(s[i+1 : m.end]))
				i = m.end
				continue
			}
			// a lone escaped bracket character
			out.WriteByte(s[i+1])
			i += 2
			continue
		}

		if startsBracket(s, i) {
			if m, ok := matchBracket(s, i, braces); ok {
				out.WriteString(m.render(s[i:m.end]))
				i = m.end
				continue
			}
		}

		out.WriteByte(c)
		i++
	}
	return out.String()
}

func startsBracket(s string, i int) bool {
	return s[i] == '[' || (s[i] == ':' && i+1 < len(s) && s[i+1] == '[')
}

// matchBracket scans the construct starting at s[i]. The content runs to the first `]` and may not
// contain `[` or a newline. braces holds the brace pairs of s, see braceEnds.
func matchBracket(s string, i int, braces []int) (bracket, bool) {
	var m bracket
	if s[i] == ':' {
		m.sigil = true
		i++
	}

	start := i + 1
	j := start
	for j < len(s) && s[j] != ']' {
		if s[j] == '[' || s[j] == '\n' {
			return bracket{}, false
		}
		j++
	}
	if j >= len(s) || j == start {
		return bracket{}, false
	}
	m.content = s[start:j]
	m.end = j + 1

	if m.end < len(s) && s[m.end] == '{' {
		// unbalanced braces mean no annotation, the text stays literal
		if e := braces[m.end]; e > 0 {
			m.annotation = s[m.end+1 : e-1]
			m.annotated = true
			m.end = e
		}
	}
	return m, true
}

func (m bracket) render(literal string) string {
	inner := m.content
	if m.sigil {
		inner = fmt.Sprintf("{{ %s }}", strings.TrimSpace(m.content))
	}

	if !m.annotated {
		if m.sigil {
			return inner
		}
		return literal
	}

	p := ParseProps(m.annotation)
	if p.Kind() == PropsSlot {
		return fmt.Sprintf("<template %s>%s</template>", p.AttrString(), inner)
	}

	tag := p.Tag(DefaultInlineTag)
	return fmt.Sprintf("<%s%s>%s</%s>", tag, attrPrefix(p.AttrString()), inner, tag)
}
