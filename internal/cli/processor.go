package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/jwtly10/mdv"
	"github.com/jwtly10/mdv/internal/config"
	"github.com/jwtly10/mdv/internal/transformer"
	"golang.org/x/sync/errgroup"
)

const (
	fileExtension = mdv.SourceExt
	// Directory of hand written components, mirrored into the cache
	componentsDir        = "components"
	globalComponentsFile = "mdv-global-components.d.ts"
)

type ProcessResult struct {
	Path   string
	Output transformer.Output
	Error  error
}

type BuildResult struct {
	Compiled []transformer.Output
	Skipped  int
	Failed   []ProcessResult
	// Cache files deleted because their source document is gone
	Removed []string
	// Path of the written global components declaration
	Declarations string
	Duration     time.Duration
}

type Processor struct {
	transformer *transformer.Transformer
	cfg         *config.Config
}

func NewProcessor(cfg *config.Config, tr *transformer.Transformer) *Processor {
	return &Processor{
		transformer: tr,
		cfg:         cfg,
	}
}

// Build compiles every document under the source root into the cache directory.
//
// A failing document does not stop the others; failures are collected in the result and
// reported as a single error.
func (p *Processor) Build(ctx context.Context) (*BuildResult, error) {
	startTime := time.Now()
	res := &BuildResult{}

	slog.Debug("starting build", "config", p.cfg.Pretty())

	if err := os.MkdirAll(p.cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	if !p.cfg.SkipCleanup {
		removed, err := p.cleanOrphans()
		if err != nil {
			return nil, err
		}
		res.Removed = removed
	}

	if err := p.copyComponents(); err != nil {
		return nil, err
	}

	files, err := p.findFiles(p.cfg.SrcRoot)
	if err != nil {
		return nil, err
	}
	slog.Debug("found files to process", "count", len(files), "duration", time.Since(startTime))

	results := make([]ProcessResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			results[i] = p.ProcessFile(gctx, path)
			// cancellation is the only reason to stop the other workers
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		switch {
		case r.Error != nil:
			slog.Debug("failed to process file", "path", r.Path, "error", r.Error)
			res.Failed = append(res.Failed, r)
		case r.Output.Skipped:
			res.Skipped++
		default:
			res.Compiled = append(res.Compiled, r.Output)
		}
	}

	decl, err := p.writeGlobalComponents(files)
	if err != nil {
		return nil, err
	}
	res.Declarations = decl
	res.Duration = time.Since(startTime)

	if len(res.Failed) > 0 {
		return res, fmt.Errorf("encountered %d errors during compilation. Please rerun with --debug to see trace", len(res.Failed))
	}

	slog.Debug("build completed", "duration", res.Duration, "compiled", len(res.Compiled), "skipped", res.Skipped)
	return res, nil
}

// ProcessFile compiles a single document
func (p *Processor) ProcessFile(ctx context.Context, path string) ProcessResult {
	var result ProcessResult

	absPath, err := filepath.Abs(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve absolute path: %w", err)
		return result
	}
	result.Path = absPath

	if !strings.HasSuffix(absPath, fileExtension) {
		result.Error = fmt.Errorf("invalid file extension, expected %s", fileExtension)
		return result
	}

	out, err := p.transformer.Transform(ctx, absPath)
	result.Output = out
	result.Error = err
	return result
}

// findFiles walks the directory tree starting at root and returns the documents in it, sorted.
//
// Patterns from a .gitignore at the root are honored, and .git is never entered.
func (p *Processor) findFiles(root string) ([]string, error) {
	var files []string
	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		for _, p := range strings.Split(string(data), "\n") {
			if p = strings.TrimSpace(p); p != "" && !strings.HasPrefix(p, "#") {
				patterns = append(patterns, gitignore.ParsePattern(p, nil))
			}
		}
	}

	matcher := gitignore.NewMatcher(patterns)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if matcher.Match(strings.Split(relPath, string(os.PathSeparator)), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && strings.HasSuffix(path, fileExtension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	if len(files) == 0 {
		slog.Info("no documents found", "root", root, "extension", fileExtension)
	}

	slices.Sort(files)
	return files, nil
}

// cleanOrphans removes cached components whose source document no longer exists
func (p *Processor) cleanOrphans() ([]string, error) {
	var removed []string
	components := filepath.Join(p.cfg.CacheDir, componentsDir)

	err := filepath.WalkDir(p.cfg.CacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == components {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".vue" {
			return nil
		}

		src, err := mdv.SourcePath(p.cfg.SrcRoot, p.cfg.CacheDir, path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(src); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		slog.Debug("removing orphaned component", "vue", path, "source", src)
		files, err := p.transformer.Remove(src)
		removed = append(removed, files...)
		return err
	})
	if err != nil {
		return removed, fmt.Errorf("cleaning cache: %w", err)
	}
	return removed, nil
}

// copyComponents mirrors <src>/components into <cache>/components so that the compiled documents
// can import them relative to the cache
func (p *Processor) copyComponents() error {
	src := filepath.Join(p.cfg.SrcRoot, componentsDir)
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("accessing components: %w", err)
	}
	if !info.IsDir() {
		return nil
	}

	dst := filepath.Join(p.cfg.CacheDir, componentsDir)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clearing cached components: %w", err)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	s, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer s.Close()

	d, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer d.Close()

	if _, err := io.Copy(d, s); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	return d.Sync()
}

// writeGlobalComponents declares every document as a global Vue component
func (p *Processor) writeGlobalComponents(files []string) (string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(p.cfg.SrcRoot, f)
		if err != nil {
			return "", err
		}
		paths = append(paths, "./"+filepath.ToSlash(rel))
	}

	out := filepath.Join(p.cfg.CacheDir, globalComponentsFile)
	if err := os.WriteFile(out, []byte(mdv.GlobalComponentsModule(paths)), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", globalComponentsFile, err)
	}
	slog.Debug("wrote global components", "path", out, "count", len(paths))
	return out, nil
}
