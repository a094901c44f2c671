// Package icalfix repairs known irregularities in calendar text returned by
// CalDAV servers so that it can be decoded.
package icalfix

import (
	"regexp"
	"strings"
)

var (
	// COMPLETED must be a DATE-TIME; some clients store a bare DATE.
	completedDate = regexp.MustCompile(`(?m)^COMPLETED:(\d{8})[ \t]*$`)
	// CREATED timestamps in year 0000/0001 predate the epoch.
	createdZero = regexp.MustCompile(`(?m)^CREATED:0000\d{4}T\d{6}Z[ \t]*$`)
	// Backslash-escaped quotes are not iCalendar escapes.
	escapedQuote = regexp.MustCompile(`\\+(['"])`)
)

// Fix normalizes line endings to CRLF, drops blank lines, terminates the last
// line and rewrites the known bad values above.
func Fix(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = completedDate.ReplaceAllString(text, "COMPLETED:${1}T120000Z")
	text = createdZero.ReplaceAllString(text, "CREATED:19700101T000000Z")
	text = escapedQuote.ReplaceAllString(text, "$1")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\r\n") + "\r\n"
}
