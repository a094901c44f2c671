package xml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Name is a namespace-qualified XML name.
type Name struct {
	Space string
	Local string
}

// String returns the name in Clark notation, e.g. "{DAV:}displayname".
func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// ParseName reads a name in Clark notation ("{DAV:}displayname"), with one of
// the standard prefixes ("C:calendar-data"), or bare, in which case the DAV
// namespace is assumed.
func ParseName(s string) (Name, error) {
	if rest, ok := strings.CutPrefix(s, "{"); ok {
		space, local, found := strings.Cut(rest, "}")
		if !found || space == "" || local == "" {
			return Name{}, fmt.Errorf("malformed name %q", s)
		}
		return Name{space, local}, nil
	}
	if prefix, local, found := strings.Cut(s, ":"); found {
		for space, p := range prefixes {
			if strings.EqualFold(p, prefix) && local != "" {
				return Name{space, local}, nil
			}
		}
		return Name{}, fmt.Errorf("unknown prefix in %q", s)
	}
	if s == "" {
		return Name{}, fmt.Errorf("empty name")
	}
	return Name{DAV, s}, nil
}

// Common WebDAV and CalDAV names
var (
	PropfindName       = Name{DAV, "propfind"}
	PropName           = Name{DAV, "prop"}
	PropertyUpdateName = Name{DAV, "propertyupdate"}
	SetName            = Name{DAV, "set"}
	MultistatusName    = Name{DAV, "multistatus"}
	ResponseName       = Name{DAV, "response"}
	PropstatName       = Name{DAV, "propstat"}
	HrefName           = Name{DAV, "href"}
	StatusName         = Name{DAV, "status"}

	ResourceTypeName         = Name{DAV, "resourcetype"}
	CollectionName           = Name{DAV, "collection"}
	DisplayNameName          = Name{DAV, "displayname"}
	GetETagName              = Name{DAV, "getetag"}
	CurrentUserPrincipalName = Name{DAV, "current-user-principal"}

	MkcalendarName                    = Name{CalDAV, "mkcalendar"}
	CalendarName                      = Name{CalDAV, "calendar"}
	CalendarHomeSetName               = Name{CalDAV, "calendar-home-set"}
	CalendarDataName                  = Name{CalDAV, "calendar-data"}
	CalendarDescriptionName           = Name{CalDAV, "calendar-description"}
	SupportedCalendarComponentSetName = Name{CalDAV, "supported-calendar-component-set"}
	CompName                          = Name{CalDAV, "comp"}
	CalendarQueryName                 = Name{CalDAV, "calendar-query"}
	FilterName                        = Name{CalDAV, "filter"}
	CompFilterName                    = Name{CalDAV, "comp-filter"}
	PropFilterName                    = Name{CalDAV, "prop-filter"}
	TextMatchName                     = Name{CalDAV, "text-match"}
	TimeRangeName                     = Name{CalDAV, "time-range"}
	IsNotDefinedName                  = Name{CalDAV, "is-not-defined"}
	ExpandName                        = Name{CalDAV, "expand"}

	CalendarColorName = Name{AppleICal, "calendar-color"}
	GetCTagName       = Name{CalendarServer, "getctag"}
)

// Property is a generic XML element used to compose request bodies.
type Property struct {
	Name        Name
	TextContent string
	Children    []Property
	Attributes  []etree.Attr
}

// NewProperty creates a property with optional children.
func NewProperty(name Name, children ...Property) Property {
	return Property{Name: name, Children: children}
}

// TextProperty creates a property holding only text.
func TextProperty(name Name, text string) Property {
	return Property{Name: name, TextContent: text}
}

// WithAttr returns a copy of p with an extra attribute.
func (p Property) WithAttr(key, value string) Property {
	attrs := make([]etree.Attr, len(p.Attributes), len(p.Attributes)+1)
	copy(attrs, p.Attributes)
	p.Attributes = append(attrs, etree.Attr{Key: key, Value: value})
	return p
}

// Add returns a copy of p with more children appended.
func (p Property) Add(children ...Property) Property {
	c := make([]Property, 0, len(p.Children)+len(children))
	c = append(c, p.Children...)
	p.Children = append(c, children...)
	return p
}

// ToElement converts a Property to an etree.Element
func (p *Property) ToElement() *etree.Element {
	elem := etree.NewElement(p.Name.Local)
	if prefix := Prefix(p.Name.Space); prefix != "" {
		elem.Space = prefix
	} else if p.Name.Space != "" {
		elem.CreateAttr("xmlns", p.Name.Space)
	}
	if p.TextContent != "" {
		elem.SetText(p.TextContent)
	}
	for _, attr := range p.Attributes {
		elem.CreateAttr(attr.Key, attr.Value)
	}
	for i := range p.Children {
		elem.AddChild(p.Children[i].ToElement())
	}
	return elem
}

// Marshal serializes root into a UTF-8 document with an XML declaration and
// the standard namespace prefixes declared on the root element.
func Marshal(root Property) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.AddChild(root.ToElement())
	AddNamespaces(doc)

	body, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", root.Name, err)
	}
	return body, nil
}
