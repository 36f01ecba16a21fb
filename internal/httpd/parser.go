package httpd

import (
	"bytes"
	"net/url"
	"strings"
)

// Parse turns a raw request buffer into a Request. It fails with an
// ArgumentError when the request line has fewer than two tokens or when a
// non-empty header-like line contains neither ':' nor '='.
func Parse(raw []byte) (*Request, error) {
	headerLines, body := splitHeadersAndBody(raw)
	if len(headerLines) == 0 {
		return nil, Argumentf("cannot process the request: it is empty")
	}

	req := &Request{
		QueryParams: map[string]string{},
		FormParams:  map[string]string{},
		FormFields:  map[string]string{},
		Headers:     map[string][]string{},
		Body:        body,
		ContentType: ContentTypeHTML,
	}

	if err := parseRequestLine(headerLines[0], req); err != nil {
		return nil, err
	}

	for _, line := range headerLines[1:] {
		if err := parseHeaderLine(line, req); err != nil {
			return nil, err
		}
	}

	if ct, ok := ParseContentType(req.HeaderValue("content-type")); ok {
		req.ContentType = ct
	} else if ct, ok := ParseContentType(req.HeaderValue("accept")); ok {
		req.ContentType = ct
	}

	switch req.ContentType {
	case ContentTypeURLEncoded:
		decoded := urlDecode(strings.TrimSpace(string(body)))
		addPairs(req.FormParams, decoded)
	case ContentTypeMultipart:
		if boundary := multipartBoundary(req.HeaderValue("content-type")); boundary != "" {
			parseMultipart(body, boundary, req)
		}
	}

	return req, nil
}

// splitHeadersAndBody separates the header block (lines terminated by '\n',
// trimmed of '\r', up to the first blank line) from the raw body bytes.
func splitHeadersAndBody(raw []byte) ([]string, []byte) {
	var lines []string
	offset := 0
	for offset < len(raw) {
		nl := bytes.IndexByte(raw[offset:], '\n')
		if nl < 0 {
			line := strings.TrimRight(string(raw[offset:]), "\r")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
			offset = len(raw)
			break
		}
		line := strings.TrimRight(string(raw[offset:offset+nl]), "\r")
		offset += nl + 1
		if strings.TrimSpace(line) == "" {
			return lines, raw[offset:]
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseRequestLine(line string, req *Request) error {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Argumentf("cannot process the request: the URL is missing or incorrect")
	}

	method, ok := ParseMethod(tokens[0])
	if !ok {
		return Argumentf("incorrect request method: %s", tokens[0])
	}
	req.Method = method

	target := tokens[1]
	if q := strings.Index(target, "?"); q >= 0 {
		addPairs(req.QueryParams, target[q+1:])
		target = target[:q]
	}

	segments := strings.Split(target, "/")
	// segments[0] is empty for a leading slash; [1] is the version prefix,
	// [2] the route name, the rest are path parameters. Short targets such
	// as "/" or "/v1" simply leave the later fields empty and resolve to
	// the index route.
	if len(segments) > 1 {
		req.Prefix = stripQueryFragment(segments[1])
	}
	if len(segments) > 2 {
		req.Path = stripQueryFragment(segments[2])
	}
	if len(segments) > 3 {
		for _, seg := range segments[3:] {
			seg = strings.TrimSpace(stripQueryFragment(seg))
			if seg == "" {
				continue
			}
			req.PathSegments = append(req.PathSegments, urlDecode(seg))
		}
	}
	return nil
}

func parseHeaderLine(line string, req *Request) error {
	colon := strings.Index(line, ":")
	equals := strings.Index(line, "=")
	if colon < 0 && equals < 0 && len(line) > 0 {
		return Argumentf("malformed element: %s", line)
	}
	if colon < 0 {
		// key=value lines inside the header block are tolerated but carry
		// no meaning outside of a body
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(line[:colon]))
	for _, fragment := range strings.Split(line[colon+1:], ",") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		req.Headers[key] = append(req.Headers[key], fragment)
	}
	return nil
}

// addPairs parses a key=value&key2=value2 sequence into dst. Only fragments
// with exactly one '=' produce an entry; duplicate keys keep the first
// value.
func addPairs(dst map[string]string, query string) {
	for _, pair := range strings.Split(query, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			continue
		}
		key := urlDecode(parts[0])
		if key == "" {
			continue
		}
		if _, exists := dst[key]; exists {
			continue
		}
		dst[key] = urlDecode(parts[1])
	}
}

func stripQueryFragment(segment string) string {
	if q := strings.Index(segment, "?"); q >= 0 {
		return segment[:q]
	}
	return segment
}

func urlDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

func multipartBoundary(contentType string) string {
	for _, param := range strings.Split(contentType, ";") {
		param = strings.TrimSpace(param)
		if strings.HasPrefix(param, "boundary=") {
			return strings.Trim(strings.TrimPrefix(param, "boundary="), `"`)
		}
	}
	return ""
}

// parseMultipart scans the body for --boundary delimited parts. Parts with a
// Content-Type sub-header are file parts; only the first file part is
// retained. All other parts are plain form fields.
func parseMultipart(body []byte, boundary string, req *Request) {
	delimiter := []byte("--" + boundary)
	sections := bytes.Split(body, delimiter)

	for _, section := range sections {
		section = bytes.TrimPrefix(section, []byte("\r\n"))
		if len(bytes.TrimSpace(section)) == 0 || bytes.HasPrefix(bytes.TrimSpace(section), []byte("--")) {
			continue
		}

		headerEnd := bytes.Index(section, []byte("\r\n\r\n"))
		sepLen := 4
		if headerEnd < 0 {
			headerEnd = bytes.Index(section, []byte("\n\n"))
			sepLen = 2
		}
		if headerEnd < 0 {
			continue
		}

		partHeaders := string(section[:headerEnd])
		content := section[headerEnd+sepLen:]
		// strip the CRLF that precedes the next boundary
		content = bytes.TrimSuffix(content, []byte("\r\n"))

		if strings.Contains(strings.ToLower(partHeaders), "content-type") {
			if req.File.Filename != "" {
				continue
			}
			filename := extractQuoted(partHeaders, "filename")
			if filename == "" {
				continue
			}
			req.File = MultipartFile{Filename: filename, Content: content}
			continue
		}

		name := extractQuoted(partHeaders, "name")
		if name == "" {
			continue
		}
		if _, exists := req.FormFields[name]; exists {
			continue
		}
		req.FormFields[name] = strings.TrimSpace(string(content))
	}
}

// extractQuoted pulls the value of a key="..." attribute out of a part
// header block.
func extractQuoted(headers, key string) string {
	marker := key + `="`
	start := strings.Index(headers, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)
	end := strings.Index(headers[start:], `"`)
	if end < 0 {
		return ""
	}
	return headers[start : start+end]
}
