package mdv

// Result is the output bundle of a single compile
type Result struct {
	// The compiled single-file component text (template + script + styles)
	Content string
	// Frontmatter values, passed through unchanged
	Meta Meta
	// Pre-rendered highlighted code, keyed by the generated fragment key (shiki_<n>)
	Highlights map[string]string
}

// Meta is the frontmatter-derived mapping of a document
type Meta map[string]any

// Paths are the locations of the side-channel artifacts of a document.
//
// The compiler never reads or writes them, it only references them from generated code.
type Paths struct {
	// The persisted metadata JSON, relative to the compiled component
	MetaPath string
	// The module exporting the highlight fragment map, as seen by the CodeBlock component
	HighlightPath string
}

// Options controls how a Compiler assembles its output
type Options struct {
	// Maps a markdown tag (h1, p, blockquote...) to a component file that replaces it
	CustomComponents map[string]string
	// Overrides the attributes of the generated <script setup> block, e.g. `lang="ts"`
	ScriptSetupProps string
	// Import path of the component rendering fenced code placeholders
	CodeBlockComponent string
	// Upper bound of concurrent highlight calls per compile, <= 0 means one per code block
	Concurrency int
}

const DefaultCodeBlockComponent = "../../src/components/code-block.vue"

// Sections is what ExtractScriptStyle found in a document body
type Sections struct {
	// Inner text of the script block
	Script string
	// Attributes of the script block, without the `setup` marker
	ScriptAttrs string
	// 1-based body line on which the script text starts, 0 without a script
	ScriptLine int
	// Raw style blocks, tags included, in document order
	Styles []string
	// The body with script and style blocks blanked out, line numbers preserved
	Body string
}
