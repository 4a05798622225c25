package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jwtly10/mdv"
	"github.com/jwtly10/mdv/internal/scriptcheck"
)

type TransformOptions struct {
	// Directory the documents live in
	SrcRoot string
	// Directory receiving the artifacts
	CacheDir string
	// Run the script block through esbuild before compiling
	CheckScript bool
}

func (t *TransformOptions) Pretty() string {
	return fmt.Sprintf("src=%s cache=%s check_script=%s", t.SrcRoot, t.CacheDir, boolToText(t.CheckScript))
}

func boolToText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Transformer compiles documents into the cache directory, one .vue, .mdv.json and optional
// .shiki.js per document. It is safe for concurrent use.
type Transformer struct {
	compiler *mdv.Compiler
	opts     TransformOptions

	mu sync.Mutex
	// modification time of each source at its last successful compile
	compiled map[string]time.Time
}

// NewTransformer creates a new Transformer instance with the specified options [TransformOptions]
func NewTransformer(compiler *mdv.Compiler, opts TransformOptions) *Transformer {
	return &Transformer{
		compiler: compiler,
		opts:     opts,
		compiled: make(map[string]time.Time),
	}
}

// Output describes one transformed document
type Output struct {
	Source    string
	Artifacts mdv.Artifacts
	// True when the source was unchanged since its last compile and nothing was written
	Skipped  bool
	Duration time.Duration
}

// Transform compiles the document at srcPath and writes its artifacts
func (t *Transformer) Transform(ctx context.Context, srcPath string) (Output, error) {
	start := time.Now()
	out := Output{Source: srcPath}

	slog.Debug("transforming document", "path", srcPath)

	info, err := os.Stat(srcPath)
	if err != nil {
		return out, fmt.Errorf("stat source: %w", err)
	}

	artifacts, err := mdv.ResolveArtifacts(t.opts.SrcRoot, t.opts.CacheDir, srcPath)
	if err != nil {
		return out, err
	}
	out.Artifacts = artifacts

	if t.upToDate(srcPath, info.ModTime()) {
		slog.Debug("document unchanged, skipping", "path", srcPath)
		out.Skipped = true
		return out, nil
	}

	content, err := os.ReadFile(srcPath)
	if err != nil {
		return out, fmt.Errorf("reading source: %w", err)
	}

	if t.opts.CheckScript {
		if err := scriptcheck.Check(string(content)); err != nil {
			return out, err
		}
	}

	paths, err := mdv.CompilePaths(t.opts.CacheDir, artifacts)
	if err != nil {
		return out, err
	}

	res, err := t.compiler.Compile(ctx, string(content), paths)
	if err != nil {
		return out, err
	}

	if err := writeArtifacts(artifacts, res); err != nil {
		return out, err
	}

	t.mu.Lock()
	t.compiled[srcPath] = info.ModTime()
	t.mu.Unlock()

	out.Duration = time.Since(start)
	slog.Debug("document transformed", "path", srcPath, "vue", artifacts.Vue, "duration", out.Duration)
	return out, nil
}

func (t *Transformer) upToDate(srcPath string, modTime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.compiled[srcPath]
	return ok && last.Equal(modTime)
}

// Forget drops the recorded modification time so the next Transform recompiles
func (t *Transformer) Forget(srcPath string) {
	t.mu.Lock()
	delete(t.compiled, srcPath)
	t.mu.Unlock()
}

// Remove deletes the artifacts of a document and returns the files that existed
func (t *Transformer) Remove(srcPath string) ([]string, error) {
	t.Forget(srcPath)

	artifacts, err := mdv.ResolveArtifacts(t.opts.SrcRoot, t.opts.CacheDir, srcPath)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, f := range []string{artifacts.Vue, artifacts.Meta, artifacts.Highlight} {
		err := os.Remove(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("removing %s: %w", f, err)
		}
		slog.Debug("removed cache file", "path", f)
		removed = append(removed, f)
	}
	return removed, nil
}

func writeArtifacts(a mdv.Artifacts, res *mdv.Result) error {
	if err := os.MkdirAll(filepath.Dir(a.Vue), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(a.Vue, []byte(res.Content), 0644); err != nil {
		return fmt.Errorf("writing component: %w", err)
	}

	meta, err := json.MarshalIndent(res.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta: %w", err)
	}
	if err := os.WriteFile(a.Meta, meta, 0644); err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	if len(res.Highlights) == 0 {
		// a stale module from an earlier version of the document
		if err := os.Remove(a.Highlight); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale highlights: %w", err)
		}
		return nil
	}

	module, err := HighlightModule(res.Highlights)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.Highlight, []byte(module), 0644); err != nil {
		return fmt.Errorf("writing highlights: %w", err)
	}
	return nil
}

// HighlightModule renders the highlight map as an ES module: `export default {...}`
func HighlightModule(highlights map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(highlights); err != nil {
		return "", fmt.Errorf("encoding highlights: %w", err)
	}
	return "export default " + strings.TrimRight(buf.String(), "\n"), nil
}
