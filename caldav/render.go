package caldav

import (
	"encoding/xml"
)

// node is an element of a rendered request tree. Filters, time ranges and
// text matches implement it; encodeNode walks the tree.
type node interface {
	xmlName() xml.Name
	xmlAttrs() []xml.Attr
	xmlText() string
	xmlChildren() []node
}

type emptyNode xml.Name

func (n emptyNode) xmlName() xml.Name    { return xml.Name(n) }
func (n emptyNode) xmlAttrs() []xml.Attr { return nil }
func (n emptyNode) xmlText() string      { return "" }
func (n emptyNode) xmlChildren() []node  { return nil }

func encodeNode(e *xml.Encoder, n node) error {
	start := xml.StartElement{Name: n.xmlName(), Attr: n.xmlAttrs()}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if text := n.xmlText(); text != "" {
		if err := e.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	for _, child := range n.xmlChildren() {
		if err := encodeNode(e, child); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// nodeElement embeds a node tree in a struct marshalled by encoding/xml.
type nodeElement struct {
	n node
}

func (el nodeElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return encodeNode(e, el.n)
}

var _ xml.Marshaler = nodeElement{}
