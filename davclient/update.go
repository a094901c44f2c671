package davclient

import (
	"net/http"
	"strings"

	"github.com/cyp0633/caldavobj/davurl"
)

const calendarContentType = `text/calendar; charset="utf-8"`

// Save stores the object with PUT. An unbound object is placed at
// <calendar>/<id>.ics; a bound one is overwritten in place.
func (o *CalendarObject) Save() error {
	if o.data.IsZero() {
		return usageError("no calendar data to save")
	}
	return o.create(o.URL)
}

func (o *CalendarObject) create(target *davurl.URL) error {
	id := o.ID
	if id == "" && target != nil && strings.HasSuffix(target.Path(), ".ics") {
		id = strings.TrimSuffix(target.LastSegment(), ".ics")
	}
	if id == "" {
		uid, ok := o.data.UID()
		if !ok {
			return usageError("calendar object has no id, .ics path or UID")
		}
		id = uid
	}

	if target == nil {
		if o.parent == nil || o.parent.URL == nil {
			return usageError("calendar object has no parent calendar")
		}
		target = o.parent.URL.Child(id + ".ics")
	}

	resp, err := o.query(request{
		method:      http.MethodPut,
		url:         target,
		data:        []byte(o.data.Text()),
		contentType: calendarContentType,
	})
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusNoContent:
	case http.StatusFound:
		loc := resp.Location()
		if loc == "" {
			return &Error{Kind: KindPut, Method: http.MethodPut, URL: target.String(), Status: resp.StatusCode,
				Raw: resp.Raw, Msg: "redirect without Location"}
		}
		moved, err := target.Join(loc)
		if err != nil {
			return err
		}
		o.client.logger.Debug("server moved calendar object", "requested", target.String(), "location", moved.String())
		target = moved
	default:
		return &Error{Kind: KindPut, Method: http.MethodPut, URL: target.String(), Status: resp.StatusCode, Raw: resp.Raw}
	}

	o.URL = target
	o.ID = id
	return nil
}
