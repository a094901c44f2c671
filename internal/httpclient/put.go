package httpclient

import "net/http"

// DoPUT uploads data. A 302 answer is returned as is; its Location names the
// URL the server chose for the object.
func (c *httpClientWrapper) DoPUT(urlStr string, data []byte, contentType string) (*Response, error) {
	c.logger.Debug("PUT", "url", urlStr, "data_length", len(data))
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return c.do(http.MethodPut, urlStr, data, h)
}
