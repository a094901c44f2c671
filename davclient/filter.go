package davclient

import (
	"fmt"
	"strconv"
	"time"

	davxml "github.com/cyp0633/caldavobj/internal/xml"
)

// ObjectFilter builds a calendar-query for events or to-dos. Property
// filters are combined with AND in the order they were added.
type ObjectFilter interface {
	TimeRange(start, end time.Time) ObjectFilter
	// Expand asks the server to expand recurrences over the time range.
	Expand() ObjectFilter
	Priority(priority int) ObjectFilter
	Categories(categories ...string) ObjectFilter
	Status(status string) ObjectFilter
	NotStatus(statuses ...string) ObjectFilter
	NotDefined(property string) ObjectFilter
	Summary(summary string) ObjectFilter
	Description(desc string) ObjectFilter
	Location(location string) ObjectFilter
	Organizer(organizer string) ObjectFilter
	UID(uid string) ObjectFilter
	Limit(limit int) ObjectFilter
	Do() ([]*CalendarObject, error)
}

// calendarQuerier is an interface for the calendar query operations needed by objectFilter
type calendarQuerier interface {
	executeCalendarQuery(kind ObjectKind, filter davxml.CompFilter, expand *davxml.TimeRange) ([]*CalendarObject, error)
}

type objectFilter struct {
	client    calendarQuerier
	kind      ObjectKind
	timeRange *davxml.TimeRange
	expand    bool
	props     []davxml.PropFilter
	limit     int
	err       error
}

// Objects starts a query for objects of the given kind.
func (c *Calendar) Objects(kind ObjectKind) ObjectFilter {
	return &objectFilter{client: c, kind: kind}
}

func (f *objectFilter) TimeRange(start, end time.Time) ObjectFilter {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		f.err = fmt.Errorf("time range end %s before start %s", end, start)
	}
	f.timeRange = &davxml.TimeRange{Start: start, End: end}
	return f
}

func (f *objectFilter) Expand() ObjectFilter {
	f.expand = true
	return f
}

func (f *objectFilter) match(property, text string) ObjectFilter {
	f.props = append(f.props, davxml.PropFilter{
		Name:        property,
		TextMatches: []davxml.TextMatch{{Text: text}},
	})
	return f
}

func (f *objectFilter) Priority(priority int) ObjectFilter {
	return f.match("PRIORITY", strconv.Itoa(priority))
}

func (f *objectFilter) Categories(categories ...string) ObjectFilter {
	for _, c := range categories {
		f.match("CATEGORIES", c)
	}
	return f
}

func (f *objectFilter) Status(status string) ObjectFilter {
	return f.match("STATUS", status)
}

func (f *objectFilter) NotStatus(statuses ...string) ObjectFilter {
	pf := davxml.PropFilter{Name: "STATUS"}
	for _, s := range statuses {
		pf.TextMatches = append(pf.TextMatches, davxml.TextMatch{Text: s, Negate: true})
	}
	f.props = append(f.props, pf)
	return f
}

func (f *objectFilter) NotDefined(property string) ObjectFilter {
	f.props = append(f.props, davxml.PropFilter{Name: property, IsNotDefined: true})
	return f
}

func (f *objectFilter) Summary(summary string) ObjectFilter {
	return f.match("SUMMARY", summary)
}

func (f *objectFilter) Description(desc string) ObjectFilter {
	return f.match("DESCRIPTION", desc)
}

func (f *objectFilter) Location(location string) ObjectFilter {
	return f.match("LOCATION", location)
}

func (f *objectFilter) Organizer(organizer string) ObjectFilter {
	return f.match("ORGANIZER", organizer)
}

func (f *objectFilter) UID(uid string) ObjectFilter {
	return f.match("UID", uid)
}

func (f *objectFilter) Limit(limit int) ObjectFilter {
	f.limit = limit
	return f
}

// buildCompFilter converts the filter to the inner comp-filter
func (f *objectFilter) buildCompFilter() davxml.CompFilter {
	return davxml.CompFilter{
		Name:      f.kind.Component(),
		TimeRange: f.timeRange,
		Props:     f.props,
	}
}

// Do executes the filter and returns the matching objects
func (f *objectFilter) Do() ([]*CalendarObject, error) {
	if f.err != nil {
		return nil, f.err
	}

	var expand *davxml.TimeRange
	if f.expand {
		if f.timeRange == nil {
			return nil, usageError("expand requires a time range")
		}
		// expand needs both bounds; an open range is searched unexpanded
		if !f.timeRange.Start.IsZero() && !f.timeRange.End.IsZero() {
			expand = f.timeRange
		}
	}

	objects, err := f.client.executeCalendarQuery(f.kind, f.buildCompFilter(), expand)
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar query: %w", err)
	}

	if f.limit > 0 && len(objects) > f.limit {
		objects = objects[:f.limit]
	}
	return objects, nil
}
