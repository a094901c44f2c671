package httpclient

// DoMKCALENDAR creates a calendar collection at urlStr.
func (c *httpClientWrapper) DoMKCALENDAR(urlStr string, body []byte) (*Response, error) {
	c.logger.Debug("MKCALENDAR", "url", urlStr)
	return c.do(MethodMkcalendar, urlStr, body, xmlHeader(-1))
}
