package lsp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwtly10/mdv"
	"github.com/jwtly10/mdv/internal/scriptcheck"
	"github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plainHighlighter = mdv.HighlighterFunc(func(_ context.Context, code, lang string) (string, error) {
	return "<pre>" + lang + "</pre>", nil
})

func newTestService(t *testing.T, opts DocumentServiceOptions) *DocumentService {
	t.Helper()
	dir := t.TempDir()
	if opts.SrcRoot == "" {
		opts.SrcRoot = filepath.Join(dir, "src")
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(dir, ".mdv")
	}
	s, err := NewDocumentService(mdv.NewCompiler(plainHighlighter, mdv.Options{}), opts)
	require.NoError(t, err)
	return s
}

func TestDocumentServiceOptions(t *testing.T) {
	tests := []struct {
		name        string
		opts        DocumentServiceOptions
		expectError bool
	}{
		{name: "valid", opts: DocumentServiceOptions{SrcRoot: "src", CacheDir: ".mdv"}},
		{name: "missing source root", opts: DocumentServiceOptions{CacheDir: ".mdv"}, expectError: true},
		{name: "missing cache", opts: DocumentServiceOptions{SrcRoot: "src"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCompileOpenDocument(t *testing.T) {
	s := newTestService(t, DocumentServiceOptions{})
	uri := s.PathToURI(filepath.Join(s.opts.SrcRoot, "guide", "intro.v.md"))

	_, err := s.Compile(context.Background(), uri)
	require.Error(t, err)

	s.Update(uri, "---\ntitle: Intro\n---\n# Intro\n")
	res, err := s.Compile(context.Background(), uri)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "<h1>Intro</h1>")
	assert.Contains(t, res.Content, "metaPath: 'guide/intro.mdv.json'")
	assert.Equal(t, mdv.Meta{"title": "Intro"}, res.Meta)

	s.Close(uri)
	_, ok := s.Text(uri)
	assert.False(t, ok)
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		check    bool
		wantLine []int
	}{
		{name: "clean", text: "# Fine\n"},
		{name: "unclosed container", text: "# T\n\n[\n\nnever closed\n", wantLine: []int{2}},
		{name: "frontmatter offset", text: "---\na: 1\n---\n]\n", wantLine: []int{3}},
		{name: "bad frontmatter", text: "---\ntitle: ok\nbad: [\n---\nbody\n", wantLine: []int{2}},
		{name: "script error", text: "# T\n\n<script setup>\nconst a = ;\n</script>\n", check: true, wantLine: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, DocumentServiceOptions{CheckScript: tt.check})
			uri := s.PathToURI(filepath.Join(s.opts.SrcRoot, "doc.v.md"))
			s.Update(uri, tt.text)

			diags := s.Diagnose(context.Background(), uri)
			require.NotNil(t, diags)
			require.Len(t, diags, len(tt.wantLine))
			for i, line := range tt.wantLine {
				assert.Equal(t, line, diags[i].Range.Start.Line)
				assert.EqualValues(t, lsp.Error, diags[i].Severity)
				assert.Equal(t, "mdv", diags[i].Source)
			}
		})
	}
}

func TestDiagnostics(t *testing.T) {
	script := &scriptcheck.Error{Issues: []scriptcheck.Issue{
		{Line: 4, Column: 10, Text: "Unexpected \";\""},
		{Line: 6, Column: 0, Text: "Expected \"}\""},
	}}
	diags := Diagnostics(script)
	require.Len(t, diags, 2)
	assert.Equal(t, lsp.Position{Line: 3, Character: 10}, diags[0].Range.Start)
	assert.Equal(t, "Unexpected \";\"", diags[0].Message)
	assert.Equal(t, 5, diags[1].Range.Start.Line)

	hl := Diagnostics(&mdv.HighlightError{Key: "shiki_0", Lang: "go", Err: errors.New("boom")})
	require.Len(t, hl, 1)
	assert.EqualValues(t, lsp.Warning, hl[0].Severity)

	other := Diagnostics(errors.New("disk full"))
	require.Len(t, other, 1)
	assert.Equal(t, 0, other[0].Range.Start.Line)
	assert.Equal(t, "disk full", other[0].Message)
}

func TestSave(t *testing.T) {
	s := newTestService(t, DocumentServiceOptions{WriteOnSave: true})
	path := filepath.Join(s.opts.SrcRoot, "page.v.md")
	require.NoError(t, os.MkdirAll(s.opts.SrcRoot, 0755))
	require.NoError(t, os.WriteFile(path, []byte("# Page\n"), 0644))

	out, err := s.Save(context.Background(), s.PathToURI(path))
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.FileExists(t, filepath.Join(s.opts.CacheDir, "page.vue"))

	outside := filepath.Join(t.TempDir(), "elsewhere.v.md")
	out, err = s.Save(context.Background(), s.PathToURI(outside))
	require.NoError(t, err)
	assert.True(t, out.Skipped)
}

func TestSaveDisabled(t *testing.T) {
	s := newTestService(t, DocumentServiceOptions{})
	out, err := s.Save(context.Background(), s.PathToURI(filepath.Join(s.opts.SrcRoot, "page.v.md")))
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.NoDirExists(t, s.opts.CacheDir)
}

func TestURIToPath(t *testing.T) {
	s := newTestService(t, DocumentServiceOptions{})

	path, err := s.URIToPath("file:///home/me/docs/a%20b.v.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/home/me/docs/a b.v.md"), path)

	_, err = s.URIToPath("untitled:Untitled-1")
	assert.Error(t, err)
}
