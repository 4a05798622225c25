package transformer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwtly10/mdv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plainHighlighter = mdv.HighlighterFunc(func(_ context.Context, code, lang string) (string, error) {
	return "<pre>" + lang + "</pre>", nil
})

func newTestTransformer(td *testDir, check bool) *Transformer {
	return NewTransformer(mdv.NewCompiler(plainHighlighter, mdv.Options{}), TransformOptions{
		SrcRoot:     td.src(),
		CacheDir:    td.cache(),
		CheckScript: check,
	})
}

func TestTransformWritesArtifacts(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/docs/intro.v.md", "---\ntitle: Intro\n---\n# Intro\n\n```go\nx := 1\n```\n")

	out, err := newTestTransformer(td, false).Transform(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, out.Skipped)

	assert.Equal(t, filepath.Join(td.cache(), "docs", "intro.vue"), out.Artifacts.Vue)

	vue := td.readFile(out.Artifacts.Vue)
	assert.Contains(t, vue, "<h1>Intro</h1>")
	assert.Contains(t, vue, `highlight-path="../docs/intro.shiki.js"`)
	assert.Contains(t, vue, "import $meta from './intro.mdv.json';")
	assert.Contains(t, vue, "metaPath: 'docs/intro.mdv.json'")

	assert.Equal(t, "{\n  \"title\": \"Intro\"\n}", td.readFile(out.Artifacts.Meta))
	assert.Equal(t, `export default {"shiki_0":"<pre>go</pre>"}`, td.readFile(out.Artifacts.Highlight))
}

func TestTransformWithoutHighlightsSkipsModule(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/plain.v.md", "# Plain\n")
	out, err := newTestTransformer(td, false).Transform(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "{}", td.readFile(out.Artifacts.Meta))
	assert.NoFileExists(t, out.Artifacts.Highlight)
}

func TestTransformSkipsUnchangedSources(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/a.v.md", "# A\n")
	tr := newTestTransformer(td, false)

	first, err := tr.Transform(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := tr.Transform(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	// a new modification time recompiles
	td.createFile("src/a.v.md", "# B\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(src, later, later))

	third, err := tr.Transform(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Contains(t, td.readFile(third.Artifacts.Vue), "<h1>B</h1>")
}

func TestTransformCompileErrorWritesNothing(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/broken.v.md", "[\n\nnever closed\n")
	out, err := newTestTransformer(td, false).Transform(context.Background(), src)
	require.Error(t, err)

	var perr *mdv.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.NoFileExists(t, out.Artifacts.Vue)
}

func TestTransformChecksScript(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/bad.v.md", "<script setup>\nconst a = ;\n</script>\n\n# Bad\n")

	_, err := newTestTransformer(td, true).Transform(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script errors")

	_, err = newTestTransformer(td, false).Transform(context.Background(), src)
	require.NoError(t, err)
}

func TestRemove(t *testing.T) {
	td := newTestDir(t)
	defer td.cleanup()

	src := td.createFile("src/code.v.md", "```sh\nls\n```\n")
	tr := newTestTransformer(td, false)

	out, err := tr.Transform(context.Background(), src)
	require.NoError(t, err)

	removed, err := tr.Remove(src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{out.Artifacts.Vue, out.Artifacts.Meta, out.Artifacts.Highlight}, removed)

	// nothing left, nothing to report
	removed, err = tr.Remove(src)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestHighlightModule(t *testing.T) {
	module, err := HighlightModule(map[string]string{"shiki_1": "<b>&</b>", "shiki_0": "a"})
	require.NoError(t, err)
	assert.Equal(t, `export default {"shiki_0":"a","shiki_1":"<b>&</b>"}`, module)
}
