package davclient

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/cyp0633/caldavobj/davurl"
	"github.com/cyp0633/caldavobj/internal/httpclient"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	if os.Getenv("CALDAV_TEST_DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockHTTPClient implements httpclient.HttpClientWrapper with testify/mock.
type mockHTTPClient struct {
	mock.Mock
}

func respArgs(args mock.Arguments) (*httpclient.Response, error) {
	resp, _ := args.Get(0).(*httpclient.Response)
	return resp, args.Error(1)
}

func (m *mockHTTPClient) DoPROPFIND(url string, depth int, body []byte) (*httpclient.Response, error) {
	return respArgs(m.Called(url, depth, body))
}

func (m *mockHTTPClient) DoPROPPATCH(url string, body []byte) (*httpclient.Response, error) {
	return respArgs(m.Called(url, body))
}

func (m *mockHTTPClient) DoMKCALENDAR(url string, body []byte) (*httpclient.Response, error) {
	return respArgs(m.Called(url, body))
}

func (m *mockHTTPClient) DoREPORT(url string, depth int, body []byte) (*httpclient.Response, error) {
	return respArgs(m.Called(url, depth, body))
}

func (m *mockHTTPClient) DoGET(url string) (*httpclient.Response, error) {
	return respArgs(m.Called(url))
}

func (m *mockHTTPClient) DoPUT(url string, data []byte, contentType string) (*httpclient.Response, error) {
	return respArgs(m.Called(url, data, contentType))
}

func (m *mockHTTPClient) DoDELETE(url string) (*httpclient.Response, error) {
	return respArgs(m.Called(url))
}

const testBase = "https://dav.example.com/dav/"

func newMockClient() (*Client, *mockHTTPClient) {
	m := &mockHTTPClient{}
	return newClient(m, davurl.MustParse(testBase), testLogger()), m
}

func response(code int, body string) *httpclient.Response {
	return &httpclient.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     http.Header{},
		Raw:        []byte(body),
	}
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

func multistatus(responses ...string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:ic="http://apple.com/ns/ical/">` +
		strings.Join(responses, "") +
		`</d:multistatus>`
}

// propstat renders one <d:propstat>.
func propstat(code int, props string) string {
	return `<d:propstat><d:prop>` + props + `</d:prop><d:status>` + statusLine(code) + `</d:status></d:propstat>`
}

// davResponse renders one <d:response> with the given propstats.
func davResponse(href string, propstats ...string) string {
	return `<d:response><d:href>` + href + `</d:href>` + strings.Join(propstats, "") + `</d:response>`
}

func escapeText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func calendarData(ics string) string {
	return `<c:calendar-data>` + escapeText(ics) + `</c:calendar-data>`
}

func eventICS(uid, summary string) string {
	return "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:" + uid + "\r\n" +
		"DTSTAMP:20240101T000000Z\r\n" +
		"DTSTART:20240102T100000Z\r\n" +
		"DTEND:20240102T110000Z\r\n" +
		"SUMMARY:" + summary + "\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
}

func todoICS(uid, extra string) string {
	return "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VTODO\r\n" +
		"UID:" + uid + "\r\n" +
		"DTSTAMP:20240101T000000Z\r\n" +
		"SUMMARY:todo " + uid + "\r\n" +
		extra +
		"END:VTODO\r\n" +
		"END:VCALENDAR\r\n"
}

// fakeServer is an in-memory CalDAV server covering the requests the object
// model sends. Paths are unescaped.
type fakeServer struct {
	mu sync.Mutex

	principal string
	home      string
	// calendars maps a collection path (with trailing slash) to its display name.
	calendars map[string]string
	objects   map[string]string
	requests  []string
	// reject maps "METHOD path" to a forced status.
	reject map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		principal: "/dav/principals/alice/",
		home:      "/dav/calendars/alice/",
		calendars: map[string]string{},
		objects:   map[string]string{},
		reject:    map[string]int{},
	}
}

func startServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func (s *fakeServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	return startServer(t, s)
}

func (s *fakeServer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	s.requests = append(s.requests, r.Method+" "+path)

	if code, ok := s.reject[r.Method+" "+path]; ok {
		w.WriteHeader(code)
		return
	}

	switch r.Method {
	case "PROPFIND":
		s.propfind(w, path, r.Header.Get("Depth"), string(body))
	case "PROPPATCH":
		collection := withSlash(path)
		if _, ok := s.calendars[collection]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if m := regexp.MustCompile(`<D:displayname>(.*?)</D:displayname>`).FindStringSubmatch(string(body)); m != nil {
			s.calendars[collection] = m[1]
		}
		writeMultistatus(w, davResponse(path, propstat(http.StatusOK, `<d:displayname/>`)))
	case "MKCALENDAR":
		collection := withSlash(path)
		if _, ok := s.calendars[collection]; ok {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.calendars[collection] = ""
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		_, exists := s.objects[path]
		s.objects[path] = string(body)
		if exists {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		data, ok := s.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(data))
	case http.MethodDelete:
		if _, ok := s.objects[path]; ok {
			delete(s.objects, path)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if _, ok := s.calendars[withSlash(path)]; ok {
			delete(s.calendars, withSlash(path))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case "REPORT":
		s.report(w, withSlash(path), string(body))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

func writeMultistatus(w http.ResponseWriter, responses ...string) {
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusMultiStatus)
	w.Write([]byte(multistatus(responses...)))
}

func (s *fakeServer) propfind(w http.ResponseWriter, path, depth, body string) {
	switch {
	case strings.Contains(body, "current-user-principal"):
		writeMultistatus(w, davResponse(path, propstat(http.StatusOK,
			`<d:current-user-principal><d:href>`+s.principal+`</d:href></d:current-user-principal>`)))
	case strings.Contains(body, "calendar-home-set"):
		writeMultistatus(w, davResponse(path, propstat(http.StatusOK,
			`<c:calendar-home-set><d:href>`+s.home+`</d:href></c:calendar-home-set>`)))
	case path == s.home && depth == "1":
		responses := []string{davResponse(s.home, propstat(http.StatusOK,
			`<d:resourcetype><d:collection/></d:resourcetype><d:displayname>home</d:displayname>`))}
		for _, p := range sortedKeys(s.calendars) {
			responses = append(responses, davResponse(p, propstat(http.StatusOK,
				`<d:resourcetype><d:collection/><c:calendar/></d:resourcetype>`+
					`<d:displayname>`+escapeText(s.calendars[p])+`</d:displayname>`+
					`<ic:calendar-color>#FF0000</ic:calendar-color>`)))
		}
		writeMultistatus(w, responses...)
	case depth == "1":
		collection := withSlash(path)
		if _, ok := s.calendars[collection]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		responses := []string{davResponse(collection, propstat(http.StatusOK,
			`<d:resourcetype><d:collection/><c:calendar/></d:resourcetype>`))}
		for _, p := range sortedKeys(s.objects) {
			if strings.HasPrefix(p, collection) {
				responses = append(responses, davResponse(p, propstat(http.StatusOK, `<d:resourcetype/>`)))
			}
		}
		writeMultistatus(w, responses...)
	default:
		name, ok := s.calendars[withSlash(path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeMultistatus(w, davResponse(withSlash(path), propstat(http.StatusOK,
			`<d:displayname>`+escapeText(name)+`</d:displayname>`+
				`<c:supported-calendar-component-set><c:comp name="VEVENT"/><c:comp name="VTODO"/></c:supported-calendar-component-set>`)))
	}
}

var uidMatch = regexp.MustCompile(`name="UID"><C:text-match>(.*?)</C:text-match>`)

// report answers calendar-query with every object of the requested component
// type; UID text-matches are applied as substring matches and pending to-do
// queries drop completed ones.
func (s *fakeServer) report(w http.ResponseWriter, collection, body string) {
	if _, ok := s.calendars[collection]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	component := "VEVENT"
	if strings.Contains(body, `name="VTODO"`) {
		component = "VTODO"
	}
	var uid string
	if m := uidMatch.FindStringSubmatch(body); m != nil {
		uid = m[1]
	}

	var responses []string
	for _, p := range sortedKeys(s.objects) {
		data := s.objects[p]
		if !strings.HasPrefix(p, collection) || !strings.Contains(data, "BEGIN:"+component) {
			continue
		}
		if uid != "" && !strings.Contains(data, "UID:"+uid) {
			continue
		}
		if component == "VTODO" && (strings.Contains(data, "COMPLETED:") || strings.Contains(data, "STATUS:CANCELLED")) {
			continue
		}
		responses = append(responses, davResponse(p, propstat(http.StatusOK, calendarData(data))))
	}
	writeMultistatus(w, responses...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
