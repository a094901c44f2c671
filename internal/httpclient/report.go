package httpclient

// DoREPORT executes a CalDAV REPORT request
func (c *httpClientWrapper) DoREPORT(urlStr string, depth int, body []byte) (*Response, error) {
	c.logger.Debug("REPORT", "url", urlStr, "depth", depth)
	return c.do(MethodReport, urlStr, body, xmlHeader(depth))
}
