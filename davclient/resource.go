package davclient

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/beevik/etree"
	"github.com/cyp0633/caldavobj/davurl"
	"github.com/cyp0633/caldavobj/internal/httpclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
	"github.com/samber/mo"
)

// PropValues maps a requested property to its value. Properties the server
// did not return are None.
type PropValues map[davxml.Name]mo.Option[string]

// Properties maps a response href to its property values.
type Properties map[string]PropValues

// Resource is the common part of every node in the object model. A resource
// with a nil URL is unbound: it exists only locally until saved.
type Resource struct {
	URL  *davurl.URL
	ID   string
	Name string

	client *Client
	parent *Resource
}

// Client returns the session this resource was created through.
func (r *Resource) Client() *Client {
	return r.client
}

// Parent returns the owning resource, or nil for a root.
func (r *Resource) Parent() *Resource {
	return r.parent
}

// CanonicalURL returns the URL without credentials and trailing slash.
func (r *Resource) CanonicalURL() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Unauthenticated().StripTrailingSlash().String()
}

func (r *Resource) String() string {
	if r.URL == nil {
		return "(unbound)"
	}
	return r.URL.Unauthenticated().String()
}

// request describes one call to query. Exactly one of xml and data is used
// as the body.
type request struct {
	method      string
	url         *davurl.URL
	xml         *davxml.Property
	data        []byte
	contentType string
	depth       int
	// expected, when non-zero, is the only acceptable status.
	expected int
}

// query sends a single request for this resource. A 404 becomes a NotFound
// error. Any other status of 400 or above, or a status different from
// req.expected, becomes an error of the verb's kind.
func (r *Resource) query(req request) (*httpclient.Response, error) {
	target := req.url
	if target == nil {
		target = r.URL
	}
	if target == nil {
		return nil, usageError("%s on a resource without URL", req.method)
	}
	if r.client == nil {
		return nil, usageError("%s on a resource without client", req.method)
	}

	var body []byte
	if req.xml != nil {
		b, err := davxml.Marshal(*req.xml)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", req.method, err)
		}
		body = b
	}

	hc := r.client.httpClient
	u := target.String()
	var (
		resp *httpclient.Response
		err  error
	)
	switch req.method {
	case httpclient.MethodPropfind:
		resp, err = hc.DoPROPFIND(u, req.depth, body)
	case httpclient.MethodProppatch:
		resp, err = hc.DoPROPPATCH(u, body)
	case httpclient.MethodMkcalendar:
		resp, err = hc.DoMKCALENDAR(u, body)
	case httpclient.MethodReport:
		resp, err = hc.DoREPORT(u, req.depth, body)
	case http.MethodGet:
		resp, err = hc.DoGET(u)
	case http.MethodPut:
		resp, err = hc.DoPUT(u, req.data, req.contentType)
	case http.MethodDelete:
		resp, err = hc.DoDELETE(u)
	default:
		return nil, usageError("unsupported method %s", req.method)
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return resp, &Error{Kind: KindNotFound, Method: req.method, URL: u, Status: resp.StatusCode, Raw: resp.Raw}
	}
	if resp.StatusCode >= 400 || (req.expected != 0 && resp.StatusCode != req.expected) {
		return resp, &Error{Kind: kindForMethod(req.method), Method: req.method, URL: u, Status: resp.StatusCode, Raw: resp.Raw}
	}
	return resp, nil
}

// QueryProperties sends a PROPFIND for props at the given depth.
func (r *Resource) QueryProperties(depth int, props ...davxml.Name) (*httpclient.Response, error) {
	body := davxml.Propfind(props...)
	return r.query(request{method: httpclient.MethodPropfind, xml: &body, depth: depth})
}

// selector controls how a property that holds child elements is reduced to a
// single value.
type selector struct {
	// typ picks the first descendant with this name instead of the first child.
	typ *davxml.Name
	// tag returns the Clark name of the picked element instead of its text.
	tag bool
}

// handlePropResponse turns a multistatus body into per-href property values.
//
// A response is successful when any of its propstats carries 200; values are
// only read from those propstats. A response whose statuses are all 404 is
// skipped. Anything else is a ReportError.
func (r *Resource) handlePropResponse(resp *httpclient.Response, props []davxml.Name, sel selector) (Properties, error) {
	doc, err := resp.Tree()
	if err != nil {
		return nil, &Error{Kind: KindReport, Status: resp.StatusCode, Raw: resp.Raw, Msg: "unparseable multistatus", Err: err}
	}

	result := Properties{}
	for _, elem := range davxml.Responses(doc) {
		hrefElem := davxml.Child(elem, davxml.HrefName)
		if hrefElem == nil {
			return nil, &Error{Kind: KindReport, Status: resp.StatusCode, Raw: resp.Raw, Msg: "response without href"}
		}
		href := davxml.Text(hrefElem)

		ok, notFound, err := responseOutcome(elem)
		if err != nil {
			return nil, &Error{Kind: KindReport, Status: resp.StatusCode, Raw: resp.Raw, Err: err}
		}
		if len(ok) == 0 && !notFound {
			// a bare response-level 200 carries no properties
			if code, _ := responseStatus(elem); code != http.StatusOK {
				return nil, &Error{Kind: KindReport, Status: resp.StatusCode, Raw: resp.Raw,
					Msg: fmt.Sprintf("unsuccessful response for %s", href)}
			}
		}
		if len(ok) == 0 && notFound {
			r.client.logger.Debug("skipping response with status 404", "href", href)
			continue
		}

		values := PropValues{}
		for _, name := range props {
			values[name] = extractValue(ok, name, sel)
		}
		result[href] = values
	}
	return result, nil
}

// responseOutcome returns the propstats with status 200 and whether every
// status in the response is 404.
func responseOutcome(elem *etree.Element) (ok []*etree.Element, notFound bool, err error) {
	notFound = true
	seen := false
	for _, ps := range davxml.Children(elem, davxml.PropstatName) {
		statusElem := davxml.Child(ps, davxml.StatusName)
		if statusElem == nil {
			return nil, false, fmt.Errorf("propstat without status")
		}
		code, err := davxml.ParseStatus(davxml.Text(statusElem))
		if err != nil {
			return nil, false, err
		}
		seen = true
		if code == http.StatusOK {
			ok = append(ok, ps)
		}
		if code != http.StatusNotFound {
			notFound = false
		}
	}
	if code, present := responseStatus(elem); present {
		seen = true
		if code != http.StatusNotFound {
			notFound = false
		}
	}
	return ok, notFound && seen, nil
}

// responseStatus reads a status directly under <D:response>.
func responseStatus(elem *etree.Element) (int, bool) {
	statusElem := davxml.Child(elem, davxml.StatusName)
	if statusElem == nil {
		return 0, false
	}
	code, err := davxml.ParseStatus(davxml.Text(statusElem))
	if err != nil {
		return 0, false
	}
	return code, true
}

func extractValue(propstats []*etree.Element, name davxml.Name, sel selector) mo.Option[string] {
	for _, ps := range propstats {
		elem := davxml.FindFirst(ps, name)
		if elem == nil {
			continue
		}
		if len(elem.ChildElements()) == 0 {
			return mo.Some(davxml.Text(elem))
		}

		var picked *etree.Element
		if sel.typ != nil {
			picked = davxml.FindFirst(elem, *sel.typ)
		} else {
			picked = davxml.FirstElement(elem)
		}
		if picked == nil {
			return mo.None[string]()
		}
		if sel.tag {
			return mo.Some(davxml.Clark(picked))
		}
		return mo.Some(davxml.Text(picked))
	}
	return mo.None[string]()
}

// GetProperties fetches props for this resource alone (Depth 0).
func (r *Resource) GetProperties(props ...davxml.Name) (PropValues, error) {
	values, _, err := r.getProperties(props...)
	return values, err
}

func (r *Resource) getProperties(props ...davxml.Name) (PropValues, *httpclient.Response, error) {
	resp, err := r.QueryProperties(0, props...)
	if err != nil {
		return nil, resp, err
	}
	properties, err := r.handlePropResponse(resp, props, selector{})
	if err != nil {
		return nil, resp, err
	}
	values, ok := r.matchSelf(properties)
	if !ok {
		return nil, resp, &Error{Kind: KindPathMismatch, Method: httpclient.MethodPropfind, URL: r.URL.String(),
			Status: resp.StatusCode, Raw: resp.Raw, Msg: fmt.Sprintf("no response for path %s", r.URL.Path())}
	}
	return values, resp, nil
}

// matchSelf picks the entry of properties that describes r. Servers answer
// with escaped or unescaped paths, absolute URLs, and with or without a
// trailing slash.
func (r *Resource) matchSelf(properties Properties) (PropValues, bool) {
	candidates := map[string]bool{}
	for _, p := range []string{r.URL.EscapedPath(), r.URL.Path()} {
		stripped := p
		if len(p) > 1 && p[len(p)-1] == '/' {
			stripped = p[:len(p)-1]
		}
		candidates[p] = true
		candidates[stripped] = true
		candidates[stripped+"/"] = true
	}

	for href, values := range properties {
		if candidates[href] {
			return values, true
		}
		u, err := davurl.Parse(href)
		if err != nil {
			continue
		}
		if candidates[u.EscapedPath()] || candidates[u.Path()] {
			return values, true
		}
	}
	return nil, false
}

// SetProperties sends a PROPPATCH. Every status in the reply must be 200.
func (r *Resource) SetProperties(props ...davxml.Property) error {
	body := davxml.PropertyUpdate(props...)
	resp, err := r.query(request{method: httpclient.MethodProppatch, xml: &body})
	if err != nil {
		return err
	}
	if len(resp.Raw) == 0 {
		// without a multistatus only 200 and 204 say every property was set
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return &Error{Kind: KindPropset, Method: httpclient.MethodProppatch, URL: r.URL.String(),
			Status: resp.StatusCode, Msg: "PROPPATCH reply has no multistatus"}
	}

	doc, err := resp.Tree()
	if err != nil {
		return &Error{Kind: KindPropset, Method: httpclient.MethodProppatch, URL: r.URL.String(),
			Status: resp.StatusCode, Raw: resp.Raw, Err: err}
	}
	for _, statusElem := range davxml.FindAll(doc.Root(), davxml.StatusName) {
		code, err := davxml.ParseStatus(davxml.Text(statusElem))
		if err != nil || code != http.StatusOK {
			return &Error{Kind: KindPropset, Method: httpclient.MethodProppatch, URL: r.URL.String(),
				Status: resp.StatusCode, Raw: resp.Raw, Msg: davxml.Text(statusElem)}
		}
	}
	return nil
}

// Member is one entry of a collection listing.
type Member struct {
	URL *davurl.URL
	// ResourceType is the Clark name of the member's resource type, empty for
	// plain resources.
	ResourceType string
}

// Children lists the members of this collection. When typ is non-nil only
// members of that resource type are returned. The collection itself is
// excluded.
func (r *Resource) Children(typ *davxml.Name) ([]Member, error) {
	props := []davxml.Name{davxml.ResourceTypeName}
	resp, err := r.QueryProperties(1, props...)
	if err != nil {
		return nil, err
	}
	properties, err := r.handlePropResponse(resp, props, selector{typ: typ, tag: true})
	if err != nil {
		return nil, err
	}

	hrefs := make([]string, 0, len(properties))
	for href := range properties {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)

	var members []Member
	for _, href := range hrefs {
		rt := properties[href][davxml.ResourceTypeName].OrElse("")
		if typ != nil && rt != typ.String() {
			continue
		}
		u, err := r.URL.Join(href)
		if err != nil {
			return nil, err
		}
		if u.Equal(r.URL) {
			continue
		}
		members = append(members, Member{URL: u, ResourceType: rt})
	}
	return members, nil
}

// Delete removes the resource. An unbound resource is a no-op and a missing
// resource counts as deleted.
func (r *Resource) Delete() error {
	if r.URL == nil {
		return nil
	}
	resp, err := r.query(request{method: http.MethodDelete})
	if IsNotFound(err) {
		r.client.logger.Debug("delete target already gone", "url", r.URL.String())
		return nil
	}
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &Error{Kind: KindDelete, Method: http.MethodDelete, URL: r.URL.String(), Status: resp.StatusCode, Raw: resp.Raw}
	}
	return nil
}
