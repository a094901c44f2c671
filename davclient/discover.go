package davclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	davxml "github.com/cyp0633/caldavobj/internal/xml"
)

// CalendarInfo summarizes a calendar found by FindCalendars.
type CalendarInfo struct {
	URI   string
	Name  string
	Color string
}

// DNSResolver interface for mocking DNS lookups in tests
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (cname string, addrs []*net.SRV, err error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Discover finds the current user's principal starting from location. The
// candidates are tried in order: the location itself when it has a path,
// DNS SRV records (with TXT path hints), /.well-known/caldav, then the root.
// cfg.BaseURL is ignored.
func Discover(ctx context.Context, location string, cfg *Config) (*Principal, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	baseURL, err := url.Parse(location)
	if location == "" || err != nil || baseURL.Host == "" || (baseURL.Scheme != "http" && baseURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL")
	}

	var lastErr error
	for _, candidate := range candidateLocations(ctx, baseURL, cfg.Resolver) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := *cfg
		c.BaseURL = candidate
		client, err := NewClient(&c)
		if err != nil {
			lastErr = err
			continue
		}
		p, err := client.Principal()
		if err != nil {
			client.logger.Debug("no principal at candidate", "url", candidate, "error", err)
			lastErr = err
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("could not find current-user-principal: %w", lastErr)
}

// candidateLocations lists discovery URLs, logic from thunderbird
func candidateLocations(ctx context.Context, baseURL *url.URL, resolver DNSResolver) []string {
	var locations []string

	// 1. direct location if path is specified
	if baseURL.Path != "/" && baseURL.Path != "" {
		locations = append(locations, baseURL.String())
	}

	// 2. DNS SRV, secure first
	if resolver != nil {
		for _, prefix := range []string{"_caldavs._tcp.", "_caldav._tcp."} {
			host := prefix + baseURL.Hostname()
			_, addrs, err := resolver.LookupSRV(ctx, "", "", host)
			if err != nil {
				continue
			}

			var path string
			txts, _ := resolver.LookupTXT(ctx, host)
			for _, txt := range txts {
				if p, ok := strings.CutPrefix(txt, "path="); ok {
					path = p
					break
				}
			}

			scheme := "http"
			if prefix == "_caldavs._tcp." {
				scheme = "https"
			}
			for _, addr := range addrs {
				locations = append(locations, fmt.Sprintf("%s://%s:%d%s",
					scheme, strings.TrimSuffix(addr.Target, "."), addr.Port, path))
			}
		}
	}

	// 3. well-known URL
	root := *baseURL
	root.Path, root.RawPath = "", ""
	locations = append(locations, root.JoinPath(".well-known", "caldav").String())

	// 4. root path
	locations = append(locations, root.JoinPath("/").String())
	return locations
}

// FindCalendars discovers the principal at location and lists its calendars
// with their display names and colors.
func FindCalendars(ctx context.Context, location string, cfg *Config) ([]CalendarInfo, error) {
	p, err := Discover(ctx, location, cfg)
	if err != nil {
		return nil, err
	}
	set, err := p.ResolveCalendarHomeSet()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar-home-set: %w", err)
	}

	props := []davxml.Name{davxml.ResourceTypeName, davxml.DisplayNameName, davxml.CalendarColorName}
	resp, err := set.QueryProperties(1, props...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	properties, err := set.handlePropResponse(resp, props, selector{typ: &davxml.CalendarName, tag: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]CalendarInfo, 0)
	for _, href := range sortedHrefs(properties) {
		values := properties[href]
		if values[davxml.ResourceTypeName].OrElse("") != davxml.CalendarName.String() {
			continue
		}
		u, err := set.URL.Join(href)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, CalendarInfo{
			URI:   u.String(),
			Name:  values[davxml.DisplayNameName].OrElse(""),
			Color: values[davxml.CalendarColorName].OrElse(""),
		})
	}
	return calendars, nil
}
