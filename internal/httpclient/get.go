package httpclient

import "net/http"

// DoGET fetches a resource.
func (c *httpClientWrapper) DoGET(urlStr string) (*Response, error) {
	c.logger.Debug("GET", "url", urlStr)
	return c.do(http.MethodGet, urlStr, nil, nil)
}
