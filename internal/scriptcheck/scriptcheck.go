// Package scriptcheck syntax checks the script block of a document with esbuild, reporting
// problems against document line numbers.
package scriptcheck

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/jwtly10/mdv"
)

type Issue struct {
	// 1-based line in the document
	Line int
	// 0-based byte column within the line
	Column int
	Text   string
}

func (i Issue) String() string {
	return fmt.Sprintf("%d:%d: %s", i.Line, i.Column, i.Text)
}

// Error lists every problem esbuild found in a script block
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		parts = append(parts, i.String())
	}
	return "script errors:\n" + strings.Join(parts, "\n")
}

// Check parses the script block of src. A document without a script block always passes.
func Check(src string) error {
	fm, err := mdv.ParseFrontmatter(src)
	if err != nil {
		return fmt.Errorf("extracting frontmatter: %w", err)
	}

	sections := mdv.ExtractScriptStyle(fm.Body)
	if strings.TrimSpace(sections.Script) == "" {
		return nil
	}

	loader := api.LoaderJS
	if lang, ok := mdv.LookupAttr(sections.ScriptAttrs, "lang"); ok && (lang == "ts" || lang == "tsx") {
		loader = api.LoaderTS
	}

	result := api.Transform(sections.Script, api.TransformOptions{
		Loader:   loader,
		Format:   api.FormatESModule,
		LogLevel: api.LogLevelSilent,
	})

	if len(result.Errors) == 0 {
		slog.Debug("script block ok", "lines", strings.Count(sections.Script, "\n")+1)
		return nil
	}

	offset := fm.BodyLine + sections.ScriptLine - 1
	issues := make([]Issue, 0, len(result.Errors))
	for _, msg := range result.Errors {
		issue := Issue{Text: msg.Text}
		if msg.Location != nil {
			issue.Line = offset + msg.Location.Line
			issue.Column = msg.Location.Column
		}
		issues = append(issues, issue)
	}
	return &Error{Issues: issues}
}
