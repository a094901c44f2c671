package davclient

import (
	"errors"
	"net/http"

	"github.com/cyp0633/caldavobj/davurl"
	"github.com/cyp0633/caldavobj/internal/httpclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// Calendar is a calendar collection holding events and to-dos.
type Calendar struct {
	Resource

	// SupportedComponents restricts the component types at creation time,
	// e.g. "VEVENT" and "VTODO". Refresh fills it from the server.
	SupportedComponents []string
}

// Save creates the calendar if it is unbound. Saving a bound calendar is a
// no-op; use SetProperties to change an existing one.
func (c *Calendar) Save() error {
	if c.URL != nil {
		return nil
	}
	if err := c.create(); err != nil {
		return err
	}
	c.URL = c.URL.EnsureTrailingSlash()
	return nil
}

func (c *Calendar) create() error {
	if c.parent == nil || c.parent.URL == nil {
		return usageError("calendar has no parent collection")
	}
	if c.ID == "" {
		c.ID = newID()
	}

	target := c.parent.URL.Child(c.ID)
	body := davxml.Mkcalendar(c.Name, c.SupportedComponents)
	if _, err := c.query(request{
		method:   httpclient.MethodMkcalendar,
		url:      target,
		xml:      &body,
		expected: http.StatusCreated,
	}); err != nil {
		return err
	}
	c.URL = target
	c.client.logger.Debug("created calendar", "url", target.String())

	if c.Name == "" {
		return nil
	}

	// some servers ignore the displayname sent with MKCALENDAR
	if err := c.SetProperties(davxml.DisplayName(c.Name)); err != nil {
		if delErr := c.Delete(); delErr != nil {
			c.client.logger.Warn("failed to remove calendar after rename failure",
				"url", target.String(), "error", delErr)
		}
		c.URL = nil
		return err
	}

	c.adoptNameURL()
	return nil
}

// adoptNameURL probes <parent>/<name>. Some servers (Zimbra) file the new
// calendar under its display name rather than the requested id.
func (c *Calendar) adoptNameURL() {
	if c.Name == c.ID {
		return
	}
	probe := c.parent.URL.Child(c.Name)
	_, err := c.query(request{method: http.MethodGet, url: probe})
	if IsNotFound(err) {
		return
	}
	var e *Error
	if err != nil && !errors.As(err, &e) {
		c.client.logger.Debug("name probe failed", "url", probe.String(), "error", err)
		return
	}
	c.client.logger.Warn("server filed calendar under its display name",
		"requested", c.URL.String(), "adopted", probe.String())
	c.URL = probe
}

func newID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Refresh reads the display name and supported components from the server.
func (c *Calendar) Refresh() error {
	values, resp, err := c.getProperties(davxml.DisplayNameName, davxml.SupportedCalendarComponentSetName)
	if err != nil {
		return err
	}
	if name, ok := values[davxml.DisplayNameName].Get(); ok {
		c.Name = name
	}

	doc, err := resp.Tree()
	if err != nil {
		return err
	}
	var comps []string
	for _, set := range davxml.FindAll(doc.Root(), davxml.SupportedCalendarComponentSetName) {
		for _, comp := range davxml.Children(set, davxml.CompName) {
			if name := comp.SelectAttrValue("name", ""); name != "" {
				comps = append(comps, name)
			}
		}
	}
	if len(comps) > 0 {
		c.SupportedComponents = comps
	}
	return nil
}

// Events lists every member of the calendar as an event without loading data.
func (c *Calendar) Events() ([]*CalendarObject, error) {
	members, err := c.Children(nil)
	if err != nil {
		return nil, err
	}
	objects := make([]*CalendarObject, 0, len(members))
	for _, m := range members {
		objects = append(objects, c.object(ObjectEvent, m.URL))
	}
	return objects, nil
}

// EventByURL loads the event at ref, resolved against the calendar URL.
func (c *Calendar) EventByURL(ref string) (*CalendarObject, error) {
	if c.URL == nil {
		return nil, usageError("calendar has no URL")
	}
	u, err := c.URL.Join(ref)
	if err != nil {
		return nil, err
	}
	obj := c.object(ObjectEvent, u)
	if err := obj.Load(); err != nil {
		return nil, err
	}
	return obj, nil
}

// NewObject returns an unbound object of the given kind holding text.
func (c *Calendar) NewObject(kind ObjectKind, text string) (*CalendarObject, error) {
	obj := &CalendarObject{Resource: Resource{client: c.client, parent: &c.Resource}, Kind: kind}
	if text != "" {
		if err := obj.SetData(text); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// NewEvent is NewObject for events.
func (c *Calendar) NewEvent(text string) (*CalendarObject, error) {
	return c.NewObject(ObjectEvent, text)
}

// NewTodo is NewObject for to-dos.
func (c *Calendar) NewTodo(text string) (*CalendarObject, error) {
	return c.NewObject(ObjectTodo, text)
}

// AddEvent wraps event in a VCALENDAR and saves it to this calendar. A UID is
// generated when the event has none, and a DTSTAMP of now.
func (c *Calendar) AddEvent(event *ical.Event) (*CalendarObject, error) {
	return c.addComponent(ObjectEvent, event.Component)
}

// AddTodo is AddEvent for to-dos.
func (c *Calendar) AddTodo(todo *ical.Component) (*CalendarObject, error) {
	return c.addComponent(ObjectTodo, todo)
}

func (c *Calendar) addComponent(kind ObjectKind, comp *ical.Component) (*CalendarObject, error) {
	if comp == nil {
		return nil, usageError("nil component")
	}
	if comp.Props.Get(ical.PropUID) == nil {
		comp.Props.SetText(ical.PropUID, uuid.New().String())
	}

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, comp)

	obj, err := c.NewObject(kind, "")
	if err != nil {
		return nil, err
	}
	if err := obj.SetInstance(cal); err != nil {
		return nil, err
	}
	if err := obj.Save(); err != nil {
		return nil, err
	}
	return obj, nil
}

const productID = "-//github.com/cyp0633/caldavobj//NONSGML v1.0//EN"

func (c *Calendar) object(kind ObjectKind, u *davurl.URL) *CalendarObject {
	return &CalendarObject{
		Resource: Resource{URL: u, client: c.client, parent: &c.Resource},
		Kind:     kind,
	}
}
