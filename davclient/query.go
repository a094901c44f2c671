package davclient

import (
	"sort"
	"time"

	"github.com/cyp0633/caldavobj/internal/httpclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
)

// executeCalendarQuery sends a calendar-query REPORT (Depth 1) and returns one
// object per href, with calendar data attached when the server sent it.
func (c *Calendar) executeCalendarQuery(kind ObjectKind, filter davxml.CompFilter, expand *davxml.TimeRange) ([]*CalendarObject, error) {
	props, _, err := c.report(filter, expand)
	if err != nil {
		return nil, err
	}

	hrefs := sortedHrefs(props)
	objects := make([]*CalendarObject, 0, len(hrefs))
	for _, href := range hrefs {
		obj, err := c.objectFromReport(kind, href, props[href])
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (c *Calendar) report(filter davxml.CompFilter, expand *davxml.TimeRange) (Properties, *httpclient.Response, error) {
	if c.URL == nil {
		return nil, nil, usageError("calendar has no URL")
	}
	body := davxml.CalendarQuery(davxml.CalendarDataProp(expand), davxml.InCalendar(filter))
	resp, err := c.query(request{method: httpclient.MethodReport, xml: &body, depth: 1})
	if err != nil {
		return nil, resp, err
	}
	props, err := c.handlePropResponse(resp, []davxml.Name{davxml.CalendarDataName}, selector{})
	if err != nil {
		return nil, resp, err
	}
	return props, resp, nil
}

func (c *Calendar) objectFromReport(kind ObjectKind, href string, values PropValues) (*CalendarObject, error) {
	u, err := c.URL.Join(href)
	if err != nil {
		return nil, err
	}
	obj := c.object(kind, u)
	if data, ok := values[davxml.CalendarDataName].Get(); ok && data != "" {
		if err := obj.SetData(data); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func sortedHrefs(props Properties) []string {
	hrefs := make([]string, 0, len(props))
	for href := range props {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)
	return hrefs
}

// DateSearch returns the events overlapping [start, end) with recurrences
// expanded by the server. A zero end leaves the range open, and recurrences
// are then returned unexpanded.
func (c *Calendar) DateSearch(start, end time.Time) ([]*CalendarObject, error) {
	return c.Objects(ObjectEvent).TimeRange(start, end).Expand().Do()
}

// Todos returns the to-dos that are neither completed nor cancelled.
func (c *Calendar) Todos() ([]*CalendarObject, error) {
	return c.Objects(ObjectTodo).
		NotDefined("COMPLETED").
		NotStatus("CANCELLED", "COMPLETED").
		Do()
}

// EventByUID finds the event whose UID is uid. It fails with a NotFound
// error when nothing matches.
func (c *Calendar) EventByUID(uid string) (*CalendarObject, error) {
	filter := davxml.CompFilter{
		Name: ObjectEvent.Component(),
		Props: []davxml.PropFilter{{
			Name:        "UID",
			TextMatches: []davxml.TextMatch{{Text: uid}},
		}},
	}
	props, resp, err := c.report(filter, nil)
	if err != nil {
		return nil, err
	}

	// text-match is a substring match, so confirm the UID when data is present
	var matches []*CalendarObject
	for _, href := range sortedHrefs(props) {
		obj, err := c.objectFromReport(ObjectEvent, href, props[href])
		if err != nil {
			return nil, err
		}
		if got, ok := obj.data.UID(); ok && got != uid {
			continue
		}
		matches = append(matches, obj)
	}

	if len(matches) == 0 {
		return nil, &Error{Kind: KindNotFound, Method: httpclient.MethodReport, URL: c.URL.String(),
			Status: resp.StatusCode, Raw: resp.Raw, Msg: "no event with UID " + uid}
	}
	if len(matches) > 1 {
		c.client.logger.Warn("several events share a UID; using the first",
			"uid", uid, "count", len(matches), "url", matches[0].URL.String())
	}

	obj := matches[0]
	obj.ID = uid
	return obj, nil
}

// Event is EventByUID.
func (c *Calendar) Event(uid string) (*CalendarObject, error) {
	return c.EventByUID(uid)
}
