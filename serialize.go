package mdv

import "strings"

// Serialize renders the resolved markup of a tree, one node per line.
//
// A node with a resolved value is emitted as a unit, its children are already part of it. The
// root has no value of its own and is always descended.
func Serialize(root *Root) string {
	if root == nil {
		return ""
	}
	return serializeNodes(root.Children)
}

func serializeNodes(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	if v := n.Value(); v != "" {
		b.WriteString(v)
		b.WriteString("\n")
		return
	}

	switch node := n.(type) {
	case *Root:
		for _, c := range node.Children {
			writeNode(b, c)
		}
	case *Container:
		for _, c := range node.Children {
			writeNode(b, c)
		}
	}
}
