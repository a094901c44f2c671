package xml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Parse reads an XML document.
func Parse(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("empty document")
	}
	return doc, nil
}

// Is reports whether elem has the given local name and, when name.Space is
// set, the given namespace URI.
func Is(elem *etree.Element, name Name) bool {
	if elem == nil || elem.Tag != name.Local {
		return false
	}
	return name.Space == "" || elem.NamespaceURI() == name.Space
}

// Clark returns the element name in Clark notation.
func Clark(elem *etree.Element) string {
	return Name{Space: elem.NamespaceURI(), Local: elem.Tag}.String()
}

// Child returns the first direct child of elem matching name.
func Child(elem *etree.Element, name Name) *etree.Element {
	for _, c := range elem.ChildElements() {
		if Is(c, name) {
			return c
		}
	}
	return nil
}

// Children returns all direct children of elem matching name.
func Children(elem *etree.Element, name Name) []*etree.Element {
	var out []*etree.Element
	for _, c := range elem.ChildElements() {
		if Is(c, name) {
			out = append(out, c)
		}
	}
	return out
}

// FindFirst returns the first descendant of elem, in document order,
// matching name. elem itself is not considered.
func FindFirst(elem *etree.Element, name Name) *etree.Element {
	for _, c := range elem.ChildElements() {
		if Is(c, name) {
			return c
		}
		if found := FindFirst(c, name); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of elem matching name, in document order.
func FindAll(elem *etree.Element, name Name) []*etree.Element {
	var out []*etree.Element
	for _, c := range elem.ChildElements() {
		if Is(c, name) {
			out = append(out, c)
		}
		out = append(out, FindAll(c, name)...)
	}
	return out
}

// FirstElement returns the first descendant element of elem, or nil.
func FirstElement(elem *etree.Element) *etree.Element {
	if children := elem.ChildElements(); len(children) > 0 {
		return children[0]
	}
	return nil
}

// Text returns the trimmed text content of elem.
func Text(elem *etree.Element) string {
	return strings.TrimSpace(elem.Text())
}

// Responses returns the <D:response> elements of a multistatus document.
func Responses(doc *etree.Document) []*etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	if Is(root, ResponseName) {
		return []*etree.Element{root}
	}
	return FindAll(root, ResponseName)
}

// ParseStatus extracts the numeric code from a status line such as
// "HTTP/1.1 200 OK".
func ParseStatus(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed status line %q: %w", line, err)
	}
	return code, nil
}
