package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("#10B981")
	colorYellow = lipgloss.Color("#F59E0B")
	colorRed    = lipgloss.Color("#EF4444")
	colorGray   = lipgloss.Color("#6B7280")
)

// Reporter prints build progress. Colors are dropped when w is not a terminal.
type Reporter struct {
	w    io.Writer
	root string

	ok    lipgloss.Style
	skip  lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
}

// NewReporter creates a Reporter printing paths relative to root
func NewReporter(w io.Writer, root string) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:     w,
		root:  root,
		ok:    r.NewStyle().Foreground(colorGreen).Bold(true),
		skip:  r.NewStyle().Foreground(colorYellow),
		fail:  r.NewStyle().Foreground(colorRed).Bold(true),
		muted: r.NewStyle().Foreground(colorGray),
	}
}

func (r *Reporter) rel(path string) string {
	if r.root == "" {
		return path
	}
	if rel, err := filepath.Rel(r.root, path); err == nil {
		return rel
	}
	return path
}

func (r *Reporter) Compiled(src, out string, d time.Duration) {
	fmt.Fprintf(r.w, "%s %s %s %s\n",
		r.ok.Render("compiled"), r.rel(src), r.muted.Render("->"), out)
	if d > 0 {
		fmt.Fprintf(r.w, "  %s\n", r.muted.Render(d.Round(time.Microsecond).String()))
	}
}

func (r *Reporter) Skipped(src string) {
	fmt.Fprintf(r.w, "%s %s\n", r.skip.Render("unchanged"), r.rel(src))
}

func (r *Reporter) Removed(path string) {
	fmt.Fprintf(r.w, "%s %s\n", r.skip.Render("removed"), path)
}

func (r *Reporter) Failed(src string, err error) {
	fmt.Fprintf(r.w, "%s %s\n%v\n", r.fail.Render("error"), r.rel(src), err)
}

// Summary prints the totals of a build
func (r *Reporter) Summary(res *BuildResult) {
	line := fmt.Sprintf("%d compiled, %d unchanged, %d removed", len(res.Compiled), res.Skipped, len(res.Removed))
	if len(res.Failed) > 0 {
		fmt.Fprintf(r.w, "%s %s\n", r.fail.Render(fmt.Sprintf("%d failed,", len(res.Failed))), line)
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", r.ok.Render("done"), r.muted.Render(line+" in "+res.Duration.Round(time.Millisecond).String()))
}
