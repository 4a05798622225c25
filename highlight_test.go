package mdv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromaHighlighter(t *testing.T) {
	h := NewChromaHighlighter("")

	tests := []struct {
		name string
		code string
		lang string
	}{
		{name: "known language", code: "package main\n\nfunc main() {}\n", lang: "go"},
		{name: "unknown language falls back", code: "just some text\n", lang: "not-a-language"},
		{name: "no language", code: "plain\n", lang: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Highlight(context.Background(), tt.code, tt.lang)
			require.NoError(t, err)
			assert.Contains(t, out, "<pre")
		})
	}
}

func TestChromaHighlighterUnknownTheme(t *testing.T) {
	out, err := NewChromaHighlighter("no-such-theme").Highlight(context.Background(), "x := 1", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "<pre")
}

func TestChromaHighlighterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChromaHighlighter("").Highlight(ctx, "x", "go")
	require.ErrorIs(t, err, context.Canceled)
}
