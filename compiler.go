package mdv

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Compiler turns MDV documents into Vue single-file components.
//
// A Compiler holds no per-document state and may be shared between goroutines.
type Compiler struct {
	tokenizer   *Tokenizer
	highlighter Highlighter
	opts        Options
}

// NewCompiler creates a compiler. A nil highlighter defaults to chroma with DefaultTheme.
func NewCompiler(highlighter Highlighter, opts Options) *Compiler {
	if highlighter == nil {
		highlighter = NewChromaHighlighter(DefaultTheme)
	}
	if opts.CodeBlockComponent == "" {
		opts.CodeBlockComponent = DefaultCodeBlockComponent
	}
	return &Compiler{
		tokenizer:   NewTokenizer(),
		highlighter: highlighter,
		opts:        opts,
	}
}

// Compile compiles one document. paths are only referenced from the generated script.
func (c *Compiler) Compile(ctx context.Context, src string, paths Paths) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fm, err := ParseFrontmatter(src)
	if err != nil {
		return nil, fmt.Errorf("extracting frontmatter: %w", err)
	}

	sections := ExtractScriptStyle(fm.Body)
	tokens := c.tokenizer.Tokenize([]byte(sections.Body))

	if err := ValidateContainers(tokens, src, fm.BodyLine); err != nil {
		return nil, fmt.Errorf("validating containers: %w", err)
	}

	state := &compileState{
		src:           src,
		lineOffset:    fm.BodyLine,
		components:    c.opts.CustomComponents,
		highlightPath: paths.HighlightPath,
	}
	root, err := newBuilder(state, tokens).build()
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}

	highlights, err := c.highlight(ctx, state.jobs)
	if err != nil {
		return nil, err
	}

	NewTransformer().Transform(root)
	template := Serialize(root)

	slog.Debug("compiled document",
		"nodes", len(root.Children),
		"codeBlocks", len(highlights),
		"tables", len(root.HeaderScripts),
		"styles", len(sections.Styles))

	return &Result{
		Content:    c.assemble(template, root, sections, fm.Meta, highlights, state.imports, paths),
		Meta:       fm.Meta,
		Highlights: highlights,
	}, nil
}

// highlight runs the queued jobs concurrently. Keys were assigned in source order while building,
// results are stored by job index.
func (c *Compiler) highlight(ctx context.Context, jobs []highlightJob) (map[string]string, error) {
	out := make([]string, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			html, err := c.highlighter.Highlight(gctx, job.Code, job.Lang)
			if err != nil {
				return &HighlightError{Key: job.Key, Lang: job.Lang, Err: err}
			}
			out[i] = html
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	highlights := make(map[string]string, len(jobs))
	for i, job := range jobs {
		highlights[job.Key] = out[i]
	}
	return highlights, nil
}

func (c *Compiler) assemble(template string, root *Root, sections Sections, meta Meta, highlights map[string]string, imports []string, paths Paths) string {
	var b strings.Builder
	b.WriteString("<template>\n")
	b.WriteString(template)
	b.WriteString("</template>\n")

	if script := c.script(root, sections, meta, highlights, imports, paths); script != "" {
		b.WriteString("\n")
		b.WriteString(script)
	}

	for _, style := range sections.Styles {
		b.WriteString("\n")
		b.WriteString(style)
		b.WriteString("\n")
	}
	return b.String()
}

func (c *Compiler) script(root *Root, sections Sections, meta Meta, highlights map[string]string, imports []string, paths Paths) string {
	provide := len(meta) > 0 || len(highlights) > 0
	userImports, userCode := splitImports(sections.Script)

	var lines []string
	if provide {
		lines = append(lines,
			fmt.Sprintf("import $meta from './%s';", path.Base(paths.MetaPath)),
			"import { provide as __mdvProvide } from 'vue';",
		)
	}
	if len(highlights) > 0 {
		lines = append(lines, fmt.Sprintf("import CodeBlock from '%s';", c.opts.CodeBlockComponent))
	}
	lines = append(lines, imports...)
	lines = append(lines, userImports...)
	lines = append(lines, root.HeaderScripts...)
	if provide {
		lines = append(lines, fmt.Sprintf("__mdvProvide('meta', { ...$meta, metaPath: '%s' });", paths.MetaPath))
	}

	if len(lines) == 0 && userCode == "" {
		return ""
	}

	attrs := sections.ScriptAttrs
	if c.opts.ScriptSetupProps != "" {
		attrs = c.opts.ScriptSetupProps
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<script setup%s>\n", attrPrefix(attrs))
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if userCode != "" {
		if len(lines) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(userCode)
		b.WriteString("\n")
	}
	b.WriteString("</script>\n")
	return b.String()
}

var importEnd = regexp.MustCompile(`(\bfrom\s*['"][^'"]*['"]|^import\s*['"][^'"]*['"])\s*;?\s*$`)

// splitImports separates the import statements of a script from the rest of its code. Multi-line
// imports are kept together.
func splitImports(script string) (imports []string, code string) {
	var rest []string
	var pending []string

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)

		if pending != nil {
			pending = append(pending, line)
			if importEnd.MatchString(strings.Join(pending, " ")) {
				imports = append(imports, strings.Join(pending, "\n"))
				pending = nil
			}
			continue
		}

		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "import{") {
			if importEnd.MatchString(trimmed) {
				imports = append(imports, trimmed)
			} else {
				pending = []string{trimmed}
			}
			continue
		}

		rest = append(rest, line)
	}

	// an import that never terminated is left to the code, where the script compiler can report it
	rest = append(rest, pending...)

	return imports, strings.Trim(strings.Join(rest, "\n"), "\n")
}
