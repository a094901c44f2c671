package httpclient

import "net/http"

// DoDELETE sends a DELETE request
func (c *httpClientWrapper) DoDELETE(urlStr string) (*Response, error) {
	c.logger.Debug("DELETE", "url", urlStr)
	return c.do(http.MethodDelete, urlStr, nil, nil)
}
