package mdv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScriptStyle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantScript  string
		wantAttrs   string
		wantStyles  []string
		wantNoTags  bool
		wantPresent string
	}{
		{
			name:        "no blocks",
			body:        "# Title\n\ntext\n",
			wantNoTags:  true,
			wantPresent: "text",
		},
		{
			name:        "setup script with lang",
			body:        "<script setup lang=\"ts\">\nconst a = 1\n</script>\n\n# Title\n",
			wantScript:  "\nconst a = 1\n",
			wantAttrs:   `lang="ts"`,
			wantNoTags:  true,
			wantPresent: "# Title",
		},
		{
			name:       "styles in order",
			body:       "<style>\n.a { color: red }\n</style>\n\ntext\n\n<style scoped>\n.b {}\n</style>\n",
			wantStyles: []string{"<style>\n.a { color: red }\n</style>", "<style scoped>\n.b {}\n</style>"},
			wantNoTags: true,
		},
		{
			name:        "only the first script is taken",
			body:        "<script>one</script>\n<script>two</script>\n",
			wantScript:  "one",
			wantPresent: "<script>two</script>",
		},
		{
			name:        "tags inside code fences are ignored",
			body:        "```html\n<script>fake()</script>\n<style>.x{}</style>\n```\n",
			wantPresent: "<script>fake()</script>",
		},
		{
			name:        "tags inside inline code are ignored",
			body:        "Use `<script>x()</script>` and ``<style>.a{}</style>``\n",
			wantPresent: "``<style>.a{}</style>``",
		},
		{
			name:        "tags inside indented code are ignored",
			body:        "text\n\n    <script>fake()</script>\n    <style>.x{}</style>\n",
			wantPresent: "    <script>fake()</script>",
		},
		{
			name:        "inline mention before the real script",
			body:        "Mention `<script>` first.\n\n<script setup>\nconst a = 1\n</script>\n",
			wantScript:  "\nconst a = 1\n",
			wantPresent: "Mention `<script>` first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ExtractScriptStyle(tt.body)

			assert.Equal(t, tt.wantScript, s.Script)
			assert.Equal(t, tt.wantAttrs, s.ScriptAttrs)
			assert.Equal(t, tt.wantStyles, s.Styles)

			// blanking keeps the line layout
			require.Len(t, s.Body, len(tt.body))
			assert.Equal(t, strings.Count(tt.body, "\n"), strings.Count(s.Body, "\n"))

			if tt.wantNoTags {
				assert.NotContains(t, s.Body, "<script")
				assert.NotContains(t, s.Body, "<style")
			}
			if tt.wantPresent != "" {
				assert.Contains(t, s.Body, tt.wantPresent)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "backtick fence",
			in:   "a\n```\nb\n```\nc",
			want: "a\n   \n \n   \nc",
		},
		{
			name: "tilde fence with info",
			in:   "~~~go\nx\n~~~\n",
			want: "     \n \n   \n",
		},
		{
			name: "unclosed fence runs to the end",
			in:   "a\n```\nb\n",
			want: "a\n   \n \n",
		},
		{
			name: "shorter closer does not close",
			in:   "````\n```\n````\nz",
			want: "    \n   \n    \nz",
		},
		{
			name: "no fences",
			in:   "plain `code` text",
			want: "plain `code` text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestStripCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "inline span", in: "a `b` c", want: "a     c"},
		{name: "longer run holds a shorter one", in: "x ``a ` b`` y", want: "x           y"},
		{name: "unmatched run stays", in: "a ` b", want: "a ` b"},
		{name: "escaped backtick opens nothing", in: "\\`a` b`", want: "\\`a    "},
		{name: "span crosses a line break", in: "a `b\nc` d", want: "a   \n   d"},
		{name: "span stops at a blank line", in: "a `b\n\nc` d", want: "a `b\n\nc` d"},
		{name: "indented block", in: "p\n\n    code\n\tmore\nq", want: "p\n\n        \n     \nq"},
		{name: "indented paragraph continuation is prose", in: "p\n    not code `x`", want: "p\n    not code    "},
		{name: "fences are blanked too", in: "```\n`x`\n```\n", want: "   \n   \n   \n"},
		{name: "raw script is left alone", in: "<script>\nconst s = `x`\n\n    y()\n</script>", want: "<script>\nconst s = `x`\n\n    y()\n</script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.in))
		})
	}
}

func TestStripCodeUnmatchedRuns(t *testing.T) {
	in := "`` " + strings.Repeat("`a` ", 1000)
	want := "`` " + strings.Repeat("    ", 1000)
	assert.Equal(t, want, StripCode(in))
}

func TestExtractScriptLine(t *testing.T) {
	s := ExtractScriptStyle("# Title\n\ntext\n\n<script setup>\nconst a = 1\n</script>\n")
	assert.Equal(t, 5, s.ScriptLine)

	assert.Zero(t, ExtractScriptStyle("no script\n").ScriptLine)
}
