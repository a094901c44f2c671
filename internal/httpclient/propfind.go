package httpclient

// DoPROPFIND sends a PROPFIND with the given Depth. An empty body asks the
// server for all properties.
func (c *httpClientWrapper) DoPROPFIND(urlStr string, depth int, body []byte) (*Response, error) {
	c.logger.Debug("PROPFIND", "url", urlStr, "depth", depth)
	return c.do(MethodPropfind, urlStr, body, xmlHeader(depth))
}

// DoPROPPATCH sends a PROPPATCH propertyupdate body.
func (c *httpClientWrapper) DoPROPPATCH(urlStr string, body []byte) (*Response, error) {
	c.logger.Debug("PROPPATCH", "url", urlStr)
	return c.do(MethodProppatch, urlStr, body, xmlHeader(-1))
}
