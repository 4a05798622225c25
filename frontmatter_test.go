package mdv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantMeta Meta
		wantBody string
		wantLine int
	}{
		{
			name:     "no frontmatter",
			src:      "# Title\n\nbody\n",
			wantMeta: Meta{},
			wantBody: "# Title\n\nbody\n",
		},
		{
			name:     "simple frontmatter",
			src:      "---\ntitle: Hello\n---\n# Title\n",
			wantMeta: Meta{"title": "Hello"},
			wantBody: "# Title\n",
			wantLine: 3,
		},
		{
			name:     "nested values",
			src:      "---\ntitle: Hello\ntags:\n  - a\n  - b\norder: 2\n---\nbody",
			wantMeta: Meta{"title": "Hello", "tags": []any{"a", "b"}, "order": 2},
			wantBody: "body",
			wantLine: 7,
		},
		{
			name:     "empty block",
			src:      "---\n---\nbody\n",
			wantMeta: Meta{},
			wantBody: "body\n",
			wantLine: 2,
		},
		{
			name:     "crlf line endings",
			src:      "---\r\ntitle: Hello\r\n---\r\nbody",
			wantMeta: Meta{"title": "Hello"},
			wantBody: "body",
			wantLine: 3,
		},
		{
			name:     "never closed",
			src:      "---\ntitle: Hello\n# Title\n",
			wantMeta: Meta{},
			wantBody: "---\ntitle: Hello\n# Title\n",
		},
		{
			name:     "delimiter not on first line",
			src:      "intro\n---\ntitle: Hello\n---\n",
			wantMeta: Meta{},
			wantBody: "intro\n---\ntitle: Hello\n---\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, err := ParseFrontmatter(tt.src)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMeta, fm.Meta)
			assert.Equal(t, tt.wantBody, fm.Body)
			assert.Equal(t, tt.wantLine, fm.BodyLine)
		})
	}
}

func TestParseFrontmatterMalformedYAML(t *testing.T) {
	src := "---\ntitle: [unclosed\n---\nbody\n"

	_, err := ParseFrontmatter(src)
	require.Error(t, err)

	var fmErr *FrontmatterError
	require.True(t, errors.As(err, &fmErr))
	assert.Contains(t, err.Error(), "malformed frontmatter")
	assert.Contains(t, err.Error(), "line")
}

func TestParseFrontmatterErrorLocation(t *testing.T) {
	src := "---\ntitle: ok\nbad: [\n---\nbody\n"

	_, err := ParseFrontmatter(src)
	require.Error(t, err)

	var fmErr *FrontmatterError
	require.ErrorAs(t, err, &fmErr)
	// the decoder reports line 2 of the block, the opening delimiter makes it line 3
	assert.Equal(t, 3, fmErr.Line)
	assert.Contains(t, fmErr.Context, "> 3 | bad: [")
	assert.Contains(t, fmErr.Context, "  1 | ---")
	assert.Contains(t, err.Error(), "malformed frontmatter at line 3")
	assert.Contains(t, err.Error(), fmErr.Context)
}

func TestFrontmatterErrorWithoutLine(t *testing.T) {
	fmErr := newFrontmatterError("---\nx\n---\n", errors.New("boom"), 3)
	assert.Zero(t, fmErr.Line)
	assert.Empty(t, fmErr.Context)
	assert.Equal(t, "malformed frontmatter: boom", fmErr.Error())
}
