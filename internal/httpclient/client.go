package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/beevik/etree"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
)

// Extension methods not covered by net/http constants.
const (
	MethodPropfind   = "PROPFIND"
	MethodProppatch  = "PROPPATCH"
	MethodMkcalendar = "MKCALENDAR"
	MethodReport     = "REPORT"
)

const xmlContentType = `application/xml; charset="utf-8"`

// HttpClientWrapper issues single CalDAV requests. It never interprets the
// HTTP status; every response that arrives is returned to the caller. The
// error return is reserved for transport failures.
type HttpClientWrapper interface {
	DoPROPFIND(url string, depth int, body []byte) (*Response, error)
	DoPROPPATCH(url string, body []byte) (*Response, error)
	DoMKCALENDAR(url string, body []byte) (*Response, error)
	DoREPORT(url string, depth int, body []byte) (*Response, error)
	DoGET(url string) (*Response, error)
	DoPUT(url string, data []byte, contentType string) (*Response, error)
	DoDELETE(url string) (*Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Raw        []byte

	tree *etree.Document
}

// Tree parses the body as XML. The result is cached.
func (r *Response) Tree() (*etree.Document, error) {
	if r.tree != nil {
		return r.tree, nil
	}
	doc, err := davxml.Parse(r.Raw)
	if err != nil {
		return nil, err
	}
	r.tree = doc
	return doc, nil
}

// Location returns the Location header, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger
	metrics *Metrics
}

// resolveURL resolves a URL string against the base URL
func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// NewHttpClientWrapper creates a new client wrapper with logging and optional
// metrics. The http.Client is copied; redirects are only followed for GET so
// that a PUT answered with 302 reports its Location to the caller.
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger, metrics *Metrics) (HttpClientWrapper, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = noRedirectExceptGet
	return &httpClientWrapper{client: &c, baseURL: baseURL, logger: logger, metrics: metrics}, nil
}

func noRedirectExceptGet(req *http.Request, via []*http.Request) error {
	if len(via) > 0 && via[0].Method != http.MethodGet {
		return http.ErrUseLastResponse
	}
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	return nil
}

// do sends one request and reads the whole response body.
func (c *httpClientWrapper) do(method, urlStr string, body []byte, header http.Header) (*Response, error) {
	c.logger.Debug("starting request",
		"method", method,
		"url", urlStr,
		"body_length", len(body))

	resolvedURL, err := c.resolveURL(urlStr)
	if err != nil {
		c.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return nil, fmt.Errorf("failed to resolve URL %q: %w", urlStr, err)
	}
	c.logger.Debug("resolved URL", "url", resolvedURL.String())

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, resolvedURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "error", err)
		c.metrics.observe(method, "error", time.Since(started))
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug("failed to read response body", "method", method, "error", err)
		c.metrics.observe(method, "error", time.Since(started))
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}
	c.metrics.observe(method, strconv.Itoa(resp.StatusCode), time.Since(started))

	c.logger.Debug("request complete",
		"method", method,
		"status", resp.Status,
		"response_length", len(raw))

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Raw:        raw,
	}, nil
}

func xmlHeader(depth int) http.Header {
	h := http.Header{}
	h.Set("Content-Type", xmlContentType)
	if depth >= 0 {
		h.Set("Depth", strconv.Itoa(depth))
	}
	return h
}
