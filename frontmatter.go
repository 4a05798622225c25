package mdv

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// yamlLinePattern finds the block-relative line yaml.v3 puts in its messages
var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// Frontmatter is the result of splitting a document into metadata and body
type Frontmatter struct {
	Meta Meta
	Body string
	// Number of source lines consumed by the frontmatter block, delimiters included
	BodyLine int
}

// FrontmatterError is returned when the frontmatter block is not valid YAML
type FrontmatterError struct {
	Err error
	// 1-based line in the original document, 0 when the decoder did not report one
	Line int
	// Source excerpt around Line, with the offending line marked
	Context string
}

func (e *FrontmatterError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "malformed frontmatter at line %d: %v", e.Line, e.Err)
	} else {
		fmt.Fprintf(&b, "malformed frontmatter: %v", e.Err)
	}
	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
	}
	return b.String()
}

func (e *FrontmatterError) Unwrap() error { return e.Err }

// ParseFrontmatter splits a leading `---` delimited YAML block from the document body.
//
// A document that does not start with the delimiter, or never closes it, has no frontmatter:
// the meta is empty and the body is the input unchanged.
func ParseFrontmatter(src string) (Frontmatter, error) {
	none := Frontmatter{Meta: Meta{}, Body: src}

	if !strings.HasPrefix(src, frontmatterDelimiter+"\n") && !strings.HasPrefix(src, frontmatterDelimiter+"\r\n") {
		return none, nil
	}

	lines := strings.Split(src, "\n")
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == frontmatterDelimiter {
			closing = i
			break
		}
	}
	if closing == -1 {
		slog.Debug("frontmatter delimiter never closed, treating as body")
		return none, nil
	}

	raw := strings.Join(lines[1:closing], "\n")

	meta := Meta{}
	if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
		return Frontmatter{}, newFrontmatterError(src, err, closing+1)
	}
	if meta == nil {
		// an empty block decodes to a nil map
		meta = Meta{}
	}

	slog.Debug("parsed frontmatter", "keys", len(meta), "lines", closing+1)

	return Frontmatter{
		Meta:     meta,
		Body:     strings.Join(lines[closing+1:], "\n"),
		BodyLine: closing + 1,
	}, nil
}

// newFrontmatterError locates err in the document. yaml.v3 counts lines from the start of the
// block, so the opening delimiter shifts them by one. last bounds the line to the closing delimiter.
func newFrontmatterError(src string, err error, last int) *FrontmatterError {
	fmErr := &FrontmatterError{Err: err}
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmErr
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return fmErr
	}
	fmErr.Line = min(n+1, last)
	fmErr.Context = sourceContext(src, fmErr.Line)
	return fmErr
}
