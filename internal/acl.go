package internal

import (
	"encoding/xml"
)

// Privileges from RFC 3744 section 3 that a calendar client acts upon.
var (
	Read         = xml.Name{Namespace, "read"}
	Write        = xml.Name{Namespace, "write"}
	WriteContent = xml.Name{Namespace, "write-content"}
	Bind         = xml.Name{Namespace, "bind"}
	Unbind       = xml.Name{Namespace, "unbind"}
	All          = xml.Name{Namespace, "all"}
)

func NewPrivilege(name xml.Name) Privilege {
	return Privilege{
		Raw: NewRawXMLElement(name, nil, nil),
	}
}

type Privilege struct {
	XMLName xml.Name     `xml:"DAV: privilege"`
	Raw     *RawXMLValue `xml:",any"`
}

func (p Privilege) Is(target xml.Name) bool {
	if p.Raw == nil {
		return false
	}
	got, ok := p.Raw.XMLName()
	return ok && got == target
}

// https://tools.ietf.org/html/rfc3744#section-5.4
type CurrentUserPrivilegeSet struct {
	XMLName    xml.Name    `xml:"DAV: current-user-privilege-set"`
	Privileges []Privilege `xml:"privilege"`
}

// Has reports whether the set grants the privilege, either directly or through
// one of its aggregates (DAV:all, DAV:write).
func (s *CurrentUserPrivilegeSet) Has(name xml.Name) bool {
	for _, p := range s.Privileges {
		switch {
		case p.Is(name), p.Is(All):
			return true
		case p.Is(Write) && (name == WriteContent || name == Bind || name == Unbind):
			return true
		}
	}
	return false
}
