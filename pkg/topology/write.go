package topology

import (
	"encoding/xml"
	"io"
	"os"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// MarshalXML encodes n and its subtree, preserving attribute and child order.
func (n *Node) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Tag}}
	for _, a := range n.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Key}, Value: a.Value})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.MarshalXML(e, xml.StartElement{}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Write encodes the document rooted at n to w, indented two spaces.
func (n *Node) Write(w io.Writer) error {
	e := xml.NewEncoder(w)
	e.Indent("", "  ")
	if err := e.Encode(n); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode topology document")
	}
	return e.Close()
}

// WriteFile writes the document rooted at n to path, creating or truncating
// the file.
func (n *Node) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", path)
	}
	if err := n.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
