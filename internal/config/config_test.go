package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwtly10/mdv"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mdv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, DefaultSrcRoot), cfg.SrcRoot)
	assert.Equal(t, filepath.Join(wd, DefaultCacheDir), cfg.CacheDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, mdv.DefaultTheme, cfg.Theme)
	assert.Equal(t, mdv.DefaultCodeBlockComponent, cfg.CodeBlockComponent)
	assert.False(t, cfg.SkipCleanup)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
src_root: docs
cache_dir: build/.mdv
skip_cleanup: true
workers: 8
theme: dracula
script_setup_props: lang="ts"
custom_components:
  blockquote: ../ui/note.vue
  h1: ../ui/title.vue
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.SrcRoot)
	assert.Equal(t, filepath.Join(dir, "build", ".mdv"), cfg.CacheDir)
	assert.True(t, cfg.SkipCleanup)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "dracula", cfg.Theme)
	assert.Equal(t, path, cfg.File)

	opts := cfg.CompileOptions()
	assert.Equal(t, `lang="ts"`, opts.ScriptSetupProps)
	assert.Equal(t, map[string]string{"blockquote": "../ui/note.vue", "h1": "../ui/title.vue"}, opts.CustomComponents)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "theme: dracula\nworkers: 8\ncache_dir: from-file\n")

	t.Setenv("MDV_THEME", "monokai")
	t.Setenv("MDV_CACHE_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cache-dir", "", "")
	flags.Int("workers", 0, "")
	flags.Bool("skip-cleanup", false, "")
	require.NoError(t, flags.Parse([]string{"--cache-dir", "from-flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	// env beats file
	assert.Equal(t, "monokai", cfg.Theme)
	// flag beats env
	assert.Equal(t, filepath.Join(dir, "from-flag"), cfg.CacheDir)
	// unset flags do not clobber
	assert.Equal(t, 8, cfg.Workers)
	assert.False(t, cfg.SkipCleanup)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadClampsWorkers(t *testing.T) {
	cfg, err := Load(writeConfig(t, "workers: 0\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}
