package mdv

// NodeKind discriminates the variants of Node
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindHTML
	KindTable
	KindContainer
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindHTML:
		return "html"
	case KindTable:
		return "table"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Node is one element of the intermediate tree.
//
// The set of implementations is closed: *Root, *HTML, *Table and *Container.
type Node interface {
	Kind() NodeKind
	// Value is the resolved markup of the node, empty until it has been resolved
	Value() string
	node()
}

// Root is the top of a document tree
type Root struct {
	Children []Node
	// Generated header array declarations of dynamic tables, consumed by output assembly
	HeaderScripts []string
}

func (*Root) Kind() NodeKind { return KindRoot }
func (*Root) Value() string  { return "" }
func (*Root) node()          {}

// HTML is a markup fragment
type HTML struct {
	Markup string
}

func (*HTML) Kind() NodeKind  { return KindHTML }
func (n *HTML) Value() string { return n.Markup }
func (*HTML) node()           {}

// Table is a dynamic table bound to a data source
type Table struct {
	// Column labels in order
	Headers []string
	// The raw `{...:data-source...}` annotation
	PropsLine string
	// Content of the first body cell, rendered when the data source is empty
	Placeholder string
	Markup      string
}

func (*Table) Kind() NodeKind  { return KindTable }
func (n *Table) Value() string { return n.Markup }
func (*Table) node()           {}

// Container is a `[` ... `]{...}` block whose content was compiled on its own
type Container struct {
	// Effective element or component name
	Tag string
	// Resolved attribute string
	Props    string
	Children []Node
	// Source line of the opening marker
	Line   int
	Markup string
}

func (*Container) Kind() NodeKind  { return KindContainer }
func (n *Container) Value() string { return n.Markup }
func (*Container) node()           {}

// DefaultContainerTag is used when a container closer does not name a component or slot
const DefaultContainerTag = "div"

// DefaultInlineTag wraps inline bracket content when the annotation does not name a component
const DefaultInlineTag = "span"
