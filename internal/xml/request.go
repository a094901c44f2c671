package xml

// Propfind builds <D:propfind><D:prop>...</D:prop></D:propfind> asking for the
// given properties.
func Propfind(props ...Name) Property {
	prop := NewProperty(PropName)
	for _, name := range props {
		prop.Children = append(prop.Children, NewProperty(name))
	}
	return NewProperty(PropfindName, prop)
}

// PropertyUpdate builds a PROPPATCH body setting the given properties.
func PropertyUpdate(props ...Property) Property {
	return NewProperty(PropertyUpdateName,
		NewProperty(SetName,
			NewProperty(PropName, props...)))
}

// DisplayName builds a <D:displayname> property.
func DisplayName(name string) Property {
	return TextProperty(DisplayNameName, name)
}

// CalendarResourceType builds <D:resourcetype><D:collection/><C:calendar/></D:resourcetype>.
func CalendarResourceType() Property {
	return NewProperty(ResourceTypeName,
		NewProperty(CollectionName),
		NewProperty(CalendarName))
}

// SupportedComponentSet builds a supported-calendar-component-set listing comps.
func SupportedComponentSet(comps ...string) Property {
	set := NewProperty(SupportedCalendarComponentSetName)
	for _, comp := range comps {
		set.Children = append(set.Children, NewProperty(CompName).WithAttr("name", comp))
	}
	return set
}

// Mkcalendar builds an MKCALENDAR body. The display name and component set are
// omitted when empty.
func Mkcalendar(displayName string, comps []string) Property {
	prop := NewProperty(PropName, CalendarResourceType())
	if displayName != "" {
		prop = prop.Add(DisplayName(displayName))
	}
	if len(comps) > 0 {
		prop = prop.Add(SupportedComponentSet(comps...))
	}
	return NewProperty(MkcalendarName, NewProperty(SetName, prop))
}

// CalendarQuery builds a calendar-query REPORT body.
func CalendarQuery(prop Property, filter CompFilter) Property {
	return NewProperty(CalendarQueryName,
		prop,
		NewProperty(FilterName, filter.ToProperty()))
}
