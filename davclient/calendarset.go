package davclient

import (
	davxml "github.com/cyp0633/caldavobj/internal/xml"
)

// CalendarSet is a collection of calendars, usually a calendar-home-set.
type CalendarSet struct {
	Resource
}

// Calendars lists the member collections whose resource type is calendar.
func (s *CalendarSet) Calendars() ([]*Calendar, error) {
	members, err := s.Children(&davxml.CalendarName)
	if err != nil {
		return nil, err
	}
	calendars := make([]*Calendar, 0, len(members))
	for _, m := range members {
		calendars = append(calendars, &Calendar{Resource: Resource{
			URL:    m.URL,
			ID:     m.URL.LastSegment(),
			client: s.client,
			parent: &s.Resource,
		}})
	}
	return calendars, nil
}

// NewCalendar returns an unbound calendar under this set. Nothing is sent
// until Save.
func (s *CalendarSet) NewCalendar(name, id string, components ...string) *Calendar {
	return &Calendar{
		Resource: Resource{
			ID:     id,
			Name:   name,
			client: s.client,
			parent: &s.Resource,
		},
		SupportedComponents: components,
	}
}

// MakeCalendar creates a calendar on the server. An empty id is generated.
func (s *CalendarSet) MakeCalendar(name, id string, components ...string) (*Calendar, error) {
	cal := s.NewCalendar(name, id, components...)
	if err := cal.Save(); err != nil {
		return nil, err
	}
	return cal, nil
}

// Calendar returns a bound handle to the calendar with the given id without
// contacting the server.
func (s *CalendarSet) Calendar(name, id string) (*Calendar, error) {
	if id == "" {
		return nil, usageError("calendar id is required")
	}
	if s.URL == nil {
		return nil, usageError("calendar set has no URL")
	}
	return &Calendar{Resource: Resource{
		URL:    s.URL.Child(id).EnsureTrailingSlash(),
		ID:     id,
		Name:   name,
		client: s.client,
		parent: &s.Resource,
	}}, nil
}
