package mdv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter turns a code block into pre-rendered markup
type Highlighter interface {
	Highlight(ctx context.Context, code, lang string) (string, error)
}

// HighlighterFunc adapts a function to the Highlighter interface
type HighlighterFunc func(ctx context.Context, code, lang string) (string, error)

func (f HighlighterFunc) Highlight(ctx context.Context, code, lang string) (string, error) {
	return f(ctx, code, lang)
}

const DefaultTheme = "github-dark"

// ChromaHighlighter renders code with chroma. It is safe for concurrent use.
type ChromaHighlighter struct {
	style     *chroma.Style
	formatter *html.Formatter
}

// NewChromaHighlighter resolves the theme once. An unknown theme falls back to chroma's default style.
func NewChromaHighlighter(theme string) *ChromaHighlighter {
	if theme == "" {
		theme = DefaultTheme
	}
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}
	return &ChromaHighlighter{
		style:     style,
		formatter: html.New(html.WithClasses(false), html.TabWidth(2)),
	}
}

func (h *ChromaHighlighter) Highlight(ctx context.Context, code, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		slog.Debug("no lexer for language, using plain text", "lang", lang)
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenising %q: %w", lang, err)
	}

	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, iterator); err != nil {
		return "", fmt.Errorf("formatting %q: %w", lang, err)
	}
	return b.String(), nil
}
