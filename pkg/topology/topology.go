// Package topology models interconnect topology dump documents.
//
// A topology document is a tree of typed, attributed XML elements describing
// accelerator interconnect hardware: devices (gpu, cpu, nic), buses (pci),
// and links (nvlink, net). NCCL emits such documents when NCCL_TOPO_DUMP_FILE
// is set; the topoviz dump command produces a compatible file.
//
// Element tags and attribute keys are not constrained by this package: the
// dump format has grown over library versions and unknown elements must
// survive a parse/render round trip. Attribute and child order is preserved
// exactly as written.
package topology

import (
	"encoding/xml"
	"io"
	"os"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// Well-known element tags found in topology dumps.
const (
	TagSystem  = "system"
	TagGraph   = "graph"
	TagChannel = "channel"
	TagGPU     = "gpu"
	TagCPU     = "cpu"
	TagPCI     = "pci"
	TagNVLink  = "nvlink"
	TagNet     = "net"
	TagNIC     = "nic"
)

// Attr is a single key/value attribute of a topology node.
type Attr struct {
	Key   string
	Value string
}

// Node is one element of a topology document: a tag, its attributes in
// document order, and its child elements in document order.
type Node struct {
	Tag      string
	Attrs    []Attr
	Children []*Node
}

// UnmarshalXML decodes an element and its subtree into n.
// It implements xml.Unmarshaler so that attribute order is kept, which the
// encoding/xml struct mapping would otherwise lose.
func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Tag = start.Name.Local
	for _, a := range start.Attr {
		n.Attrs = append(n.Attrs, Attr{Key: a.Name.Local, Value: a.Value})
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &Node{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		case xml.EndElement:
			return nil
		}
	}
}

// Attr returns the value of the attribute with the given key and whether it
// is present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Walk visits n and every descendant in pre-order (parents before children,
// siblings in document order).
func (n *Node) Walk(fn func(node *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(node *Node, depth int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree rooted at n, including n.
// A tree with Count() == N has exactly N-1 parent-child edges.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) { count++ })
	return count
}

// Parse reads a topology document from r and returns its root node.
func Parse(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, errors.New(errors.ErrCodeInvalidInput, "topology document has no root element")
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse topology document")
		}
		if start, ok := tok.(xml.StartElement); ok {
			root := &Node{}
			if err := root.UnmarshalXML(d, start); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse topology document")
			}
			return root, nil
		}
	}
}

// ParseFile reads and parses the topology document at path.
func ParseFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "topology file not found: %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	return Parse(f)
}
