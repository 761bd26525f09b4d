// Package render turns a topology document into a rendered diagram.
//
// The transformation is a pre-order walk of the document tree: every element
// becomes one drawing node labeled with a table of its attributes, and every
// parent-child relation becomes one directed edge. Layout and rasterization
// are delegated to graphviz.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/clusterkit/topoviz/pkg/topology"
)

// maxAttrLen is the longest attribute value shown in a label before
// truncation to truncLen characters plus an ellipsis.
const (
	maxAttrLen = 30
	truncLen   = 27
)

// idAttrs maps an element tag to the attribute that identifies instances of
// that element within a dump.
var idAttrs = map[string]string{
	topology.TagCPU:    "numaid",
	topology.TagPCI:    "busid",
	topology.TagGPU:    "dev",
	topology.TagNVLink: "target",
	topology.TagNet:    "name",
	topology.TagNIC:    "name",
	topology.TagGraph:  "id",
}

// ToDOT converts a topology tree to Graphviz DOT for rendering.
// A document with N elements yields N drawing nodes and N-1 directed edges.
//
// Identical tag+identifier pairs at different tree positions collapse into a
// single drawing node; dump identifiers are unique in practice.
func ToDOT(root *topology.Node, s Style) string {
	var buf bytes.Buffer
	buf.WriteString("digraph topology {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", s.RankDir)
	fmt.Fprintf(&buf, "  splines=%s;\n", s.Splines)
	fmt.Fprintf(&buf, "  nodesep=%s;\n", s.NodeSep)
	fmt.Fprintf(&buf, "  ranksep=%s;\n", s.RankSep)
	fmt.Fprintf(&buf, "  concentrate=%t;\n", s.Concentrate)
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", s.Background)
	fmt.Fprintf(&buf, "  fontname=%q;\n", s.FontName)
	fmt.Fprintf(&buf, "  node [shape=box, style=\"rounded,filled\", fontname=%q, margin=0.2];\n", s.FontName)
	fmt.Fprintf(&buf, "  edge [fontname=%q, color=%q];\n", s.FontName, s.EdgeColor)
	buf.WriteString("\n")

	writeNode(&buf, root, "", s)

	buf.WriteString("}\n")
	return buf.String()
}

// writeNode emits the DOT statements for n and recurses into its children,
// passing n's drawing-node name as the parent.
func writeNode(buf *bytes.Buffer, n *topology.Node, parent string, s Style) {
	name := NodeName(n)

	fmt.Fprintf(buf, "  %q [label=%s, fillcolor=%q, penwidth=1.5];\n",
		name, label(n, s), s.Color(n.Tag))

	if parent != "" {
		fmt.Fprintf(buf, "  %q -> %q [penwidth=1.5, arrowsize=0.7];\n", parent, name)
	}

	for _, c := range n.Children {
		writeNode(buf, c, name, s)
	}
}

// Identifier returns the sanitized identifying value for n, or "" when the
// element type has no identifying attribute or the attribute is absent.
// Colons are replaced with underscores so PCI bus IDs stay valid in DOT
// node names.
func Identifier(n *topology.Node) string {
	key, ok := idAttrs[n.Tag]
	if !ok {
		return ""
	}
	v, ok := n.Attr(key)
	if !ok {
		return ""
	}
	return strings.ReplaceAll(v, ":", "_")
}

// NodeName returns the drawing-node name for n: "{tag}_{identifier}", or
// just "{tag}" when there is no identifier.
func NodeName(n *topology.Node) string {
	if id := Identifier(n); id != "" {
		return n.Tag + "_" + id
	}
	return n.Tag
}

// Title returns the display title for n: the tag upper-cased for gpu/cpu and
// capitalized otherwise, with the identifier appended when present.
func Title(n *topology.Node) string {
	title := capitalize(n.Tag)
	if n.Tag == topology.TagGPU || n.Tag == topology.TagCPU {
		title = strings.ToUpper(n.Tag)
	}
	if id := Identifier(n); id != "" {
		title += " " + id
	}
	return title
}

// label builds the HTML-like DOT label: a bold title row over one row per
// attribute. Elements without attributes get a plain bold title.
func label(n *topology.Node, s Style) string {
	title := escape(Title(n))
	if len(n.Attrs) == 0 {
		return fmt.Sprintf("<<B>%s</B>>", title)
	}

	var b strings.Builder
	b.WriteString("<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">")
	fmt.Fprintf(&b, "<TR><TD BGCOLOR=%q><B>%s</B></TD></TR>", s.Color(n.Tag), title)
	for _, a := range n.Attrs {
		fmt.Fprintf(&b,
			`<TR><TD ALIGN="LEFT"><FONT POINT-SIZE="10">%s</FONT></TD><TD ALIGN="LEFT"><FONT POINT-SIZE="10">%s</FONT></TD></TR>`,
			escape(a.Key), escape(Truncate(a.Value)))
	}
	b.WriteString("</TABLE>>")
	return b.String()
}

// Truncate shortens attribute values longer than 30 characters to 27
// characters plus an ellipsis.
func Truncate(v string) string {
	r := []rune(v)
	if len(r) <= maxAttrLen {
		return v
	}
	return string(r[:truncLen]) + "..."
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return htmlEscaper.Replace(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
