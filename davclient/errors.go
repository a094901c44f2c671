package davclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cyp0633/caldavobj/internal/httpclient"
)

// ErrorKind classifies failures so callers can branch without matching on
// error strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound is an HTTP 404 or an empty search result.
	KindNotFound
	KindPropfind
	KindPropset
	KindMkcalendar
	KindReport
	KindPut
	KindGet
	KindDelete
	// KindPathMismatch means a PROPFIND succeeded but no response href
	// matched the requested resource.
	KindPathMismatch
	// KindParse means calendar data could not be decoded or encoded.
	KindParse
	// KindUsage means the operation was called on a resource missing what it
	// needs, such as a URL, a parent, or calendar data.
	KindUsage
)

var kindNames = map[ErrorKind]string{
	KindUnknown:      "unknown",
	KindNotFound:     "not found",
	KindPropfind:     "propfind",
	KindPropset:      "propset",
	KindMkcalendar:   "mkcalendar",
	KindReport:       "report",
	KindPut:          "put",
	KindGet:          "get",
	KindDelete:       "delete",
	KindPathMismatch: "path mismatch",
	KindParse:        "parse",
	KindUsage:        "usage",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned for every protocol-level failure. Raw carries the
// response body, when there was one, for diagnostics.
type Error struct {
	Kind   ErrorKind
	Method string
	URL    string
	Status int
	Msg    string
	Raw    []byte
	Err    error
}

func (e *Error) Error() string {
	msg := "caldav: " + e.Kind.String()
	if e.Method != "" {
		msg += ": " + e.Method
		if e.URL != "" {
			msg += " " + e.URL
		}
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// kindForMethod maps a request verb to the error kind of its failures.
func kindForMethod(method string) ErrorKind {
	switch method {
	case httpclient.MethodPropfind:
		return KindPropfind
	case httpclient.MethodProppatch:
		return KindPropset
	case httpclient.MethodMkcalendar:
		return KindMkcalendar
	case httpclient.MethodReport:
		return KindReport
	case http.MethodPut:
		return KindPut
	case http.MethodGet:
		return KindGet
	case http.MethodDelete:
		return KindDelete
	default:
		return KindUnknown
	}
}

func usageError(format string, args ...any) *Error {
	return &Error{Kind: KindUsage, Msg: fmt.Sprintf(format, args...)}
}
