package httpclient

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 4096

// BasicAuthTransport implements http.RoundTripper and adds Basic Auth
// authentication to outgoing requests. Bodies are logged at Debug level;
// headers are logged before credentials are attached.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport creates a new BasicAuthTransport with the given
// credentials and optional underlying transport. If transport is nil,
// http.DefaultTransport will be used.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip implements the http.RoundTripper interface. The request is cloned
// before credentials are attached.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" {
		return nil, errors.New("basic auth username cannot be empty")
	}
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}

	authed := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		bodyBytes, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		authed.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		authed.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
		t.Logger.Debug("outgoing request",
			"method", req.Method,
			"url", req.URL.String(),
			"headers", req.Header,
			"body", truncate(bodyBytes))
	} else {
		t.Logger.Debug("outgoing request",
			"method", req.Method,
			"url", req.URL.String(),
			"headers", req.Header)
	}
	authed.SetBasicAuth(t.Username, t.Password)

	resp, err := t.Transport.RoundTrip(authed)
	if err != nil || resp == nil {
		return resp, err
	}

	if resp.Body != nil {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		t.Logger.Debug("incoming response",
			"status", resp.Status,
			"headers", resp.Header,
			"body", truncate(bodyBytes))
	}

	return resp, nil
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
