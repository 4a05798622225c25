package mdv

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// SourceExt is the extension of MDV documents
	SourceExt = ".v.md"

	metaExt      = ".mdv.json"
	highlightExt = ".shiki.js"
)

// Artifacts are the files produced for one source document inside the cache directory
type Artifacts struct {
	Vue       string
	Meta      string
	Highlight string
}

// ResolveArtifacts maps a document under srcRoot to its artifact files under cacheDir
// (src/docs/intro.v.md -> .mdv/docs/intro.vue, intro.mdv.json, intro.shiki.js)
func ResolveArtifacts(srcRoot, cacheDir, srcPath string) (Artifacts, error) {
	rel, err := filepath.Rel(srcRoot, srcPath)
	if err != nil {
		return Artifacts{}, fmt.Errorf("resolving %s against %s: %w", srcPath, srcRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Artifacts{}, fmt.Errorf("%s is outside the source root %s", srcPath, srcRoot)
	}

	base := filepath.Join(cacheDir, strings.TrimSuffix(rel, SourceExt))
	return Artifacts{
		Vue:       base + ".vue",
		Meta:      base + metaExt,
		Highlight: base + highlightExt,
	}, nil
}

// SourcePath is the inverse of ResolveArtifacts for a cached component
func SourcePath(srcRoot, cacheDir, vuePath string) (string, error) {
	rel, err := filepath.Rel(cacheDir, vuePath)
	if err != nil {
		return "", fmt.Errorf("resolving %s against %s: %w", vuePath, cacheDir, err)
	}
	return filepath.Join(srcRoot, strings.TrimSuffix(rel, ".vue")+SourceExt), nil
}

// CompilePaths derives the paths referenced from generated code: the metadata file relative to
// the cache root, and the highlight module relative to the cache components directory, where the
// CodeBlock component resolves it.
func CompilePaths(cacheDir string, a Artifacts) (Paths, error) {
	meta, err := filepath.Rel(cacheDir, a.Meta)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving meta path: %w", err)
	}
	highlight, err := filepath.Rel(filepath.Join(cacheDir, "components"), a.Highlight)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving highlight path: %w", err)
	}
	return Paths{
		MetaPath:      filepath.ToSlash(meta),
		HighlightPath: filepath.ToSlash(highlight),
	}, nil
}

func MustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
