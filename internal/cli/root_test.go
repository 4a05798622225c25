package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mdv dev\n", out)
}

func TestCompileCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	src := filepath.Join(dir, "src", "page.v.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("---\ntitle: Page\n---\n# Hello\n"), 0644))

	out, err := runCmd(t, "compile", src)
	require.NoError(t, err)
	assert.Contains(t, out, "<template>\n<h1>Hello</h1>\n</template>\n")
	assert.Contains(t, out, "import $meta from './page.mdv.json';")

	// nothing is written
	assert.NoDirExists(t, filepath.Join(dir, ".mdv"))
}

func TestCompileCommandOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	src := filepath.Join(dir, "elsewhere", "note.v.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("# Note\n"), 0644))

	out, err := runCmd(t, "compile", src)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Note</h1>")
}

func TestCompileCommandReportsErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	src := filepath.Join(dir, "broken.v.md")
	require.NoError(t, os.WriteFile(src, []byte("[\n\nnever closed\n"), 0644))

	_, err := runCmd(t, "compile", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclosed container")
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "a.v.md"), []byte("# A\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdv.yaml"), []byte("src_root: docs\ncache_dir: out\n"), 0644))

	out, err := runCmd(t, "build", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "compiled a.v.md -> a.vue")
	assert.Contains(t, out, "1 compiled, 0 unchanged, 0 removed")
	assert.FileExists(t, filepath.Join(dir, "out", "a.vue"))
}
