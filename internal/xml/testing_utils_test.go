package xml

import (
	"regexp"
	"strings"
)

// normalizeXML removes whitespace differences and the XML declaration for test comparisons
func normalizeXML(s string) string {
	s = regexp.MustCompile(`<\?xml[^>]*\?>`).ReplaceAllString(s, "")
	s = regexp.MustCompile(`>\s+<`).ReplaceAllString(s, "><")
	s = regexp.MustCompile(`\s+/>`).ReplaceAllString(s, "/>")
	return strings.TrimSpace(s)
}

const declaredNamespaces = `xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/" xmlns:IC="http://apple.com/ns/ical/"`
