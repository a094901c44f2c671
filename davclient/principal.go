package davclient

import (
	"github.com/cyp0633/caldavobj/davurl"
	"github.com/cyp0633/caldavobj/internal/httpclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
	"github.com/samber/mo"
)

// Principal is the authenticated user's entry point to the object model.
type Principal struct {
	Resource

	calendarHomeSet mo.Option[*CalendarSet]
}

// CalendarHomeSet returns the resolved home set, if ResolveCalendarHomeSet or
// SetCalendarHomeSet has been called.
func (p *Principal) CalendarHomeSet() mo.Option[*CalendarSet] {
	return p.calendarHomeSet
}

// ResolveCalendarHomeSet looks up calendar-home-set once and caches it.
// If the home set lives on another host the whole session is repointed there.
func (p *Principal) ResolveCalendarHomeSet() (*CalendarSet, error) {
	if set, ok := p.calendarHomeSet.Get(); ok {
		return set, nil
	}

	values, err := p.GetProperties(davxml.CalendarHomeSetName)
	if err != nil {
		return nil, err
	}
	href, ok := values[davxml.CalendarHomeSetName].Get()
	if !ok || href == "" {
		return nil, &Error{Kind: KindNotFound, Method: httpclient.MethodPropfind, URL: p.URL.String(),
			Msg: "principal has no calendar-home-set"}
	}
	return p.SetCalendarHomeSet(href)
}

// SetCalendarHomeSet binds the home set to href without asking the server.
func (p *Principal) SetCalendarHomeSet(href string) (*CalendarSet, error) {
	ref, err := davurl.Parse(href)
	if err != nil {
		return nil, err
	}

	c := p.client
	if ref.Hostname() != "" && ref.Hostname() != c.URL().Hostname() {
		c.repointHost(ref)
	}

	set := &CalendarSet{Resource: Resource{
		URL:    c.URL().JoinURL(ref),
		client: c,
		parent: &p.Resource,
	}}
	p.calendarHomeSet = mo.Some(set)
	c.logger.Debug("calendar-home-set", "url", set.URL.String())
	return set, nil
}

func (p *Principal) homeSet() (*CalendarSet, error) {
	set, ok := p.calendarHomeSet.Get()
	if !ok {
		return nil, usageError("calendar-home-set not resolved; call ResolveCalendarHomeSet first")
	}
	return set, nil
}

// Calendars lists the calendars in the resolved home set.
func (p *Principal) Calendars() ([]*Calendar, error) {
	set, err := p.homeSet()
	if err != nil {
		return nil, err
	}
	return set.Calendars()
}

// MakeCalendar creates a calendar in the resolved home set.
func (p *Principal) MakeCalendar(name, id string, components ...string) (*Calendar, error) {
	set, err := p.homeSet()
	if err != nil {
		return nil, err
	}
	return set.MakeCalendar(name, id, components...)
}

// Calendar returns a handle to an existing calendar in the resolved home set.
func (p *Principal) Calendar(name, id string) (*Calendar, error) {
	set, err := p.homeSet()
	if err != nil {
		return nil, err
	}
	return set.Calendar(name, id)
}
