package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jwtly10/mdv"
	"github.com/jwtly10/mdv/internal/scriptcheck"
	"github.com/jwtly10/mdv/internal/transformer"
	"github.com/sourcegraph/go-lsp"
)

const diagnosticSource = "mdv"

type DocumentServiceOptions struct {
	SrcRoot  string
	CacheDir string
	// Syntax check script blocks with esbuild on every change
	CheckScript bool
	// Write the cache artifacts when a document is saved
	WriteOnSave bool
}

func (o DocumentServiceOptions) Validate() error {
	if o.SrcRoot == "" {
		return fmt.Errorf("source root directory is required")
	}
	if o.CacheDir == "" {
		return fmt.Errorf("cache directory is required")
	}
	return nil
}

// DocumentService keeps the text of open documents and compiles them on demand
type DocumentService struct {
	compiler    *mdv.Compiler
	transformer *transformer.Transformer
	opts        DocumentServiceOptions

	mu   sync.RWMutex
	docs map[lsp.DocumentURI]string
}

func NewDocumentService(compiler *mdv.Compiler, opts DocumentServiceOptions) (*DocumentService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document service options: %w", err)
	}

	return &DocumentService{
		compiler: compiler,
		transformer: transformer.NewTransformer(compiler, transformer.TransformOptions{
			SrcRoot:     opts.SrcRoot,
			CacheDir:    opts.CacheDir,
			CheckScript: opts.CheckScript,
		}),
		opts: opts,
		docs: make(map[lsp.DocumentURI]string),
	}, nil
}

func (s *DocumentService) Update(uri lsp.DocumentURI, text string) {
	s.mu.Lock()
	s.docs[uri] = text
	s.mu.Unlock()
}

func (s *DocumentService) Close(uri lsp.DocumentURI) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

func (s *DocumentService) Text(uri lsp.DocumentURI) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.docs[uri]
	return text, ok
}

// Compile compiles the open document in memory. Paths inside the component are computed as if
// the document were built into the cache.
func (s *DocumentService) Compile(ctx context.Context, uri lsp.DocumentURI) (*mdv.Result, error) {
	text, ok := s.Text(uri)
	if !ok {
		return nil, fmt.Errorf("document %s is not open", uri)
	}

	fsPath, err := s.URIToPath(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid document URI: %w", err)
	}

	if s.opts.CheckScript {
		if err := scriptcheck.Check(text); err != nil {
			return nil, err
		}
	}

	artifacts, err := mdv.ResolveArtifacts(s.opts.SrcRoot, s.opts.CacheDir, fsPath)
	if err != nil {
		// outside the source root, resolve against the document's own directory
		artifacts, err = mdv.ResolveArtifacts(filepath.Dir(fsPath), s.opts.CacheDir, fsPath)
		if err != nil {
			return nil, err
		}
	}
	paths, err := mdv.CompilePaths(s.opts.CacheDir, artifacts)
	if err != nil {
		return nil, err
	}

	return s.compiler.Compile(ctx, text, paths)
}

// Diagnose compiles the document and converts the failure, if any, into diagnostics
func (s *DocumentService) Diagnose(ctx context.Context, uri lsp.DocumentURI) []lsp.Diagnostic {
	_, err := s.Compile(ctx, uri)
	if err != nil {
		slog.Debug("document has errors", "uri", uri, "error", err)
	}
	return Diagnostics(err)
}

// Save writes the artifacts of a saved document that lives under the source root
func (s *DocumentService) Save(ctx context.Context, uri lsp.DocumentURI) (transformer.Output, error) {
	fsPath, err := s.URIToPath(uri)
	if err != nil {
		return transformer.Output{}, fmt.Errorf("invalid document URI: %w", err)
	}
	if !s.opts.WriteOnSave || !strings.HasSuffix(fsPath, mdv.SourceExt) {
		return transformer.Output{Source: fsPath, Skipped: true}, nil
	}
	if _, err := mdv.ResolveArtifacts(s.opts.SrcRoot, s.opts.CacheDir, fsPath); err != nil {
		slog.Debug("saved document is outside the source root", "path", fsPath)
		return transformer.Output{Source: fsPath, Skipped: true}, nil
	}
	return s.transformer.Transform(ctx, fsPath)
}

// Diagnostics maps a compile error onto the lines it concerns. A nil error yields an empty,
// non-nil slice so that publishing it clears earlier diagnostics.
func Diagnostics(err error) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	if err == nil {
		return diags
	}

	var (
		parseErr  *mdv.ParseError
		fmErr     *mdv.FrontmatterError
		scriptErr *scriptcheck.Error
		hlErr     *mdv.HighlightError
	)

	switch {
	case errors.As(err, &parseErr):
		diags = append(diags, diagnostic(parseErr.Line-1, 0, lsp.Error, string(parseErr.Kind)))
	case errors.As(err, &fmErr):
		diags = append(diags, diagnostic(fmErr.Line-1, 0, lsp.Error, "invalid frontmatter: "+fmErr.Err.Error()))
	case errors.As(err, &scriptErr):
		for _, issue := range scriptErr.Issues {
			diags = append(diags, diagnostic(issue.Line-1, issue.Column, lsp.Error, issue.Text))
		}
	case errors.As(err, &hlErr):
		diags = append(diags, diagnostic(0, 0, lsp.Warning, hlErr.Error()))
	default:
		diags = append(diags, diagnostic(0, 0, lsp.Error, err.Error()))
	}
	return diags
}

// diagnostic covers the given line from column to the end of the line
func diagnostic(line, column int, severity lsp.DiagnosticSeverity, msg string) lsp.Diagnostic {
	if line < 0 {
		line = 0
	}
	return lsp.Diagnostic{
		Range: lsp.Range{
			Start: lsp.Position{Line: line, Character: column},
			End:   lsp.Position{Line: line + 1, Character: 0},
		},
		Severity: severity,
		Source:   diagnosticSource,
		Message:  msg,
	}
}

// URIToPath converts an LSP URI to a filesystem path
func (s *DocumentService) URIToPath(uri lsp.DocumentURI) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", err
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("unsupported URI scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// PathToURI converts a filesystem path to an LSP URI
func (s *DocumentService) PathToURI(path string) lsp.DocumentURI {
	return lsp.DocumentURI("file://" + filepath.ToSlash(path))
}
