// Package davclient is an object model for CalDAV servers: a Principal leads
// to its CalendarSet, which lists or creates Calendars, which search for or
// store CalendarObjects (events and to-dos).
//
// Every operation is a single synchronous request. A Client is not safe for
// concurrent use when an operation may repoint its base host (resolving a
// calendar-home-set on another host); callers sharing one Client across
// goroutines must serialize such calls.
package davclient

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/cyp0633/caldavobj/davurl"
	"github.com/cyp0633/caldavobj/internal/httpclient"
	davxml "github.com/cyp0633/caldavobj/internal/xml"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for NewClient and Discover
type Config struct {
	BaseURL  string
	Username string
	Password string

	HTTPClient *http.Client
	Logger     *slog.Logger
	// Registerer receives request metrics when non-nil.
	Registerer prometheus.Registerer
	// Resolver is used by Discover for DNS SRV/TXT lookups.
	Resolver DNSResolver
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		HTTPClient: http.DefaultClient,
		Resolver:   &net.Resolver{},
	}
}

// Client is the session shared by every resource created through it. Its
// base URL is owned by the Client and only rewritten by host repointing.
type Client struct {
	httpClient httpclient.HttpClientWrapper
	url        *davurl.URL
	logger     *slog.Logger
}

// NewClient creates a session rooted at cfg.BaseURL. Credentials embedded in
// the URL are used when cfg.Username is empty.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base, err := davurl.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if !base.IsAbs() || base.Host() == "" || (base.Scheme() != "http" && base.Scheme() != "https") {
		return nil, fmt.Errorf("invalid URL %q", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	username, password := cfg.Username, cfg.Password
	if username == "" && base.User() != nil {
		username = base.User().Username()
		password, _ = base.User().Password()
	}

	hc := http.Client{}
	if cfg.HTTPClient != nil {
		hc = *cfg.HTTPClient
	}
	if username != "" {
		hc.Transport = httpclient.NewBasicAuthTransport(username, password, hc.Transport, logger)
	}

	var metrics *httpclient.Metrics
	if cfg.Registerer != nil {
		metrics, err = httpclient.NewMetrics(cfg.Registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	base = base.Unauthenticated()
	wrapper, err := httpclient.NewHttpClientWrapper(&hc, base.URL(), logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client wrapper: %w", err)
	}
	return newClient(wrapper, base, logger), nil
}

func newClient(wrapper httpclient.HttpClientWrapper, base *davurl.URL, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{httpClient: wrapper, url: base, logger: logger}
}

// URL returns the current base URL of the session.
func (c *Client) URL() *davurl.URL {
	return c.url
}

// repointHost moves the session to the scheme and host of target. Servers
// that shard principals across hosts report a calendar-home-set on another
// host; later relative hrefs must resolve there.
func (c *Client) repointHost(target *davurl.URL) {
	repointed := c.url.WithHost(target)
	c.logger.Warn("repointing session to calendar-home-set host",
		"from", c.url.String(),
		"to", repointed.String())
	c.url = repointed
}

// Principal discovers the current user's principal by asking the base URL
// for current-user-principal.
func (c *Client) Principal() (*Principal, error) {
	p := &Principal{Resource: Resource{URL: c.url, client: c}}
	values, err := p.GetProperties(davxml.CurrentUserPrincipalName)
	if err != nil {
		return nil, fmt.Errorf("failed to find current-user-principal: %w", err)
	}
	href, ok := values[davxml.CurrentUserPrincipalName].Get()
	if !ok || href == "" {
		return nil, &Error{Kind: KindNotFound, Method: httpclient.MethodPropfind, URL: c.url.String(),
			Msg: "server did not report current-user-principal"}
	}
	u, err := c.url.Join(href)
	if err != nil {
		return nil, err
	}
	p.URL = u
	c.logger.Debug("found principal", "url", u.String())
	return p, nil
}

// PrincipalAt returns the principal at ref, resolved against the base URL,
// without any request.
func (c *Client) PrincipalAt(ref string) (*Principal, error) {
	u, err := c.url.Join(ref)
	if err != nil {
		return nil, err
	}
	return &Principal{Resource: Resource{URL: u, client: c}}, nil
}

// CalendarSetAt returns the calendar set at ref without any request.
func (c *Client) CalendarSetAt(ref string) (*CalendarSet, error) {
	u, err := c.url.Join(ref)
	if err != nil {
		return nil, err
	}
	return &CalendarSet{Resource: Resource{URL: u, client: c}}, nil
}

// CalendarAt returns a bound calendar at ref without any request.
func (c *Client) CalendarAt(ref string) (*Calendar, error) {
	u, err := c.url.Join(ref)
	if err != nil {
		return nil, err
	}
	return &Calendar{Resource: Resource{URL: u, client: c}}, nil
}
