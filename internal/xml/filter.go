package xml

import "time"

// TimeFormat is the UTC date-time form used by time-range and expand.
const TimeFormat = "20060102T150405Z"

// TimeRange bounds a comp-filter or an expand request. Zero times are omitted.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (tr TimeRange) attrs(p Property) Property {
	if !tr.Start.IsZero() {
		p = p.WithAttr("start", tr.Start.UTC().Format(TimeFormat))
	}
	if !tr.End.IsZero() {
		p = p.WithAttr("end", tr.End.UTC().Format(TimeFormat))
	}
	return p
}

// TextMatch is a CalDAV text-match.
type TextMatch struct {
	Text   string
	Negate bool
}

// PropFilter selects components by one of their properties.
type PropFilter struct {
	Name         string
	IsNotDefined bool
	TextMatches  []TextMatch
}

// CompFilter selects components by name, time range, properties and
// nested components.
type CompFilter struct {
	Name         string
	IsNotDefined bool
	TimeRange    *TimeRange
	Props        []PropFilter
	Comps        []CompFilter
}

// ToProperty encodes the filter as a comp-filter element.
func (f CompFilter) ToProperty() Property {
	elem := NewProperty(CompFilterName).WithAttr("name", f.Name)
	if f.IsNotDefined {
		return elem.Add(NewProperty(IsNotDefinedName))
	}
	if f.TimeRange != nil {
		elem = elem.Add(f.TimeRange.attrs(NewProperty(TimeRangeName)))
	}
	for _, pf := range f.Props {
		elem = elem.Add(pf.ToProperty())
	}
	for _, cf := range f.Comps {
		elem = elem.Add(cf.ToProperty())
	}
	return elem
}

// ToProperty encodes the filter as a prop-filter element.
func (f PropFilter) ToProperty() Property {
	elem := NewProperty(PropFilterName).WithAttr("name", f.Name)
	if f.IsNotDefined {
		return elem.Add(NewProperty(IsNotDefinedName))
	}
	for _, tm := range f.TextMatches {
		m := TextProperty(TextMatchName, tm.Text)
		if tm.Negate {
			m = m.WithAttr("negate-condition", "yes")
		}
		elem = elem.Add(m)
	}
	return elem
}

// CalendarDataProp builds <D:prop><C:calendar-data/></D:prop>, expanding
// recurrences over expand when it is non-nil.
func CalendarDataProp(expand *TimeRange) Property {
	data := NewProperty(CalendarDataName)
	if expand != nil {
		data = data.Add(expand.attrs(NewProperty(ExpandName)))
	}
	return NewProperty(PropName, data)
}

// InCalendar wraps a component filter in the mandatory VCALENDAR comp-filter.
func InCalendar(f CompFilter) CompFilter {
	return CompFilter{Name: "VCALENDAR", Comps: []CompFilter{f}}
}
