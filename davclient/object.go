package davclient

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/cyp0633/caldavobj/internal/icalfix"
	"github.com/emersion/go-ical"
)

// ObjectKind tells events and to-dos apart.
type ObjectKind int

const (
	ObjectEvent ObjectKind = iota
	ObjectTodo
)

// Component returns the iCalendar component name of the kind.
func (k ObjectKind) Component() string {
	if k == ObjectTodo {
		return ical.CompToDo
	}
	return ical.CompEvent
}

func (k ObjectKind) String() string {
	if k == ObjectTodo {
		return "todo"
	}
	return "event"
}

// uidComponents are searched in order when deriving an object id.
var uidComponents = []string{ical.CompEvent, ical.CompToDo, ical.CompJournal, ical.CompFreeBusy}

// Data holds one calendar object both as text and as a parsed calendar. The
// two forms are always produced together so they cannot drift apart.
type Data struct {
	text     string
	calendar *ical.Calendar
}

// ParseData repairs common server defects in text and parses it.
func ParseData(text string) (Data, error) {
	fixed := icalfix.Fix(text)
	cal, err := ical.NewDecoder(strings.NewReader(fixed)).Decode()
	if err != nil {
		return Data{}, &Error{Kind: KindParse, Msg: "invalid calendar data", Err: err}
	}
	return Data{text: fixed, calendar: cal}, nil
}

// stampedComponents carry a DTSTAMP.
var stampedComponents = map[string]bool{
	ical.CompEvent:    true,
	ical.CompToDo:     true,
	ical.CompJournal:  true,
	ical.CompFreeBusy: true,
}

// complete adds the properties the encoder requires but the decoder lets
// through: PRODID and VERSION on the calendar, DTSTAMP on its components.
func complete(cal *ical.Calendar) {
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, productID)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	now := time.Now().UTC()
	for _, comp := range cal.Children {
		if stampedComponents[comp.Name] && comp.Props.Get(ical.PropDateTimeStamp) == nil {
			comp.Props.SetDateTime(ical.PropDateTimeStamp, now)
		}
	}
}

// EncodeData serializes cal, filling in PRODID, VERSION and DTSTAMP when
// they are missing.
func EncodeData(cal *ical.Calendar) (Data, error) {
	if cal == nil {
		return Data{}, usageError("nil calendar")
	}
	complete(cal)
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return Data{}, &Error{Kind: KindParse, Msg: "failed to encode calendar", Err: err}
	}
	return Data{text: buf.String(), calendar: cal}, nil
}

// Text returns the serialized form.
func (d Data) Text() string { return d.text }

// Calendar returns the parsed form.
func (d Data) Calendar() *ical.Calendar { return d.calendar }

// IsZero reports whether no data has been set.
func (d Data) IsZero() bool { return d.calendar == nil }

// UID returns the UID of the first VEVENT, VTODO, VJOURNAL or VFREEBUSY.
func (d Data) UID() (string, bool) {
	if d.calendar == nil {
		return "", false
	}
	for _, name := range uidComponents {
		for _, child := range d.calendar.Children {
			if child.Name != name {
				continue
			}
			if prop := child.Props.Get(ical.PropUID); prop != nil && prop.Value != "" {
				return prop.Value, true
			}
		}
	}
	return "", false
}

// CalendarObject is a single event or to-do inside a calendar.
type CalendarObject struct {
	Resource

	Kind ObjectKind
	data Data
}

// Data returns the object as iCalendar text, empty if nothing is loaded.
func (o *CalendarObject) Data() string {
	return o.data.Text()
}

// SetData replaces the object content with text.
func (o *CalendarObject) SetData(text string) error {
	d, err := ParseData(text)
	if err != nil {
		return err
	}
	o.data = d
	return nil
}

// Instance returns the parsed calendar, nil if nothing is loaded.
func (o *CalendarObject) Instance() *ical.Calendar {
	return o.data.Calendar()
}

// SetInstance replaces the object content with cal.
func (o *CalendarObject) SetInstance(cal *ical.Calendar) error {
	d, err := EncodeData(cal)
	if err != nil {
		return err
	}
	o.data = d
	return nil
}

// Representation returns both forms of the content.
func (o *CalendarObject) Representation() Data {
	return o.data
}

// Load fetches the object content. The id is filled from the UID when unset.
func (o *CalendarObject) Load() error {
	resp, err := o.query(request{method: http.MethodGet})
	if err != nil {
		return err
	}
	if err := o.SetData(string(resp.Raw)); err != nil {
		return err
	}
	if o.ID == "" {
		if uid, ok := o.data.UID(); ok {
			o.ID = uid
		}
	}
	return nil
}
