package xml

import "github.com/beevik/etree"

// Namespace definitions for CalDAV and WebDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
	// CalendarServer is the Calendar Server namespace (used by some implementations)
	CalendarServer = "http://calendarserver.org/ns/"
	// AppleICal is Apple's iCal namespace, home of calendar-color
	AppleICal = "http://apple.com/ns/ical/"
)

// prefixes maps each known namespace to the prefix used when encoding.
var prefixes = map[string]string{
	DAV:            "D",
	CalDAV:         "C",
	CalendarServer: "CS",
	AppleICal:      "IC",
}

// Prefix returns the encoding prefix for a namespace, or "" if unknown.
func Prefix(space string) string {
	return prefixes[space]
}

// AddNamespaces declares the standard prefixes on the document root.
func AddNamespaces(doc *etree.Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	root.CreateAttr("xmlns:D", DAV)
	root.CreateAttr("xmlns:C", CalDAV)
	root.CreateAttr("xmlns:CS", CalendarServer)
	root.CreateAttr("xmlns:IC", AppleICal)
}
