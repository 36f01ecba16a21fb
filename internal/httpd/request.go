package httpd

import "strings"

// MultipartFile is the single file attachment carried by a multipart/form-data
// request. Only the first file part of the body is retained.
type MultipartFile struct {
	Filename string
	Content  []byte
}

// Request is one parsed HTTP request. It is built once by the parser and
// never mutated afterwards; each connection worker owns its request
// exclusively.
type Request struct {
	Method      Method
	ContentType ContentType

	// Prefix is the API version segment ("v1"), Path the route name, and
	// PathSegments the remaining path components. PathSegments never include
	// the prefix or the route name.
	Prefix       string
	Path         string
	PathSegments []string

	// QueryParams and FormParams use first-wins semantics on duplicate keys.
	QueryParams map[string]string
	FormParams  map[string]string
	FormFields  map[string]string
	File        MultipartFile

	// Headers are keyed by lowercased name; values are the comma-split
	// fragments in arrival order.
	Headers map[string][]string

	Body []byte
}

// Header returns all values recorded for the given header name,
// case-insensitively.
func (r *Request) Header(name string) []string {
	return r.Headers[strings.ToLower(name)]
}

// HeaderValue returns the first value of the header, or "".
func (r *Request) HeaderValue(name string) string {
	values := r.Header(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// HasHeader reports whether the header was present on the request.
func (r *Request) HasHeader(name string) bool {
	_, ok := r.Headers[strings.ToLower(name)]
	return ok
}

// Query returns a query parameter value, or "".
func (r *Request) Query(name string) string {
	return r.QueryParams[name]
}

// Form returns a form-urlencoded parameter value, or "".
func (r *Request) Form(name string) string {
	return r.FormParams[name]
}

// Token extracts the session token from the places clients put it: the
// token query parameter, the token form field, or an Authorization: Bearer
// header.
func (r *Request) Token() string {
	if t := r.QueryParams["token"]; t != "" {
		return t
	}
	if t := r.FormParams["token"]; t != "" {
		return t
	}
	if t := r.FormFields["token"]; t != "" {
		return t
	}
	auth := r.HeaderValue("authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// WantsChunked reports whether the client advertised chunked transfer
// framing for streamed bodies.
func (r *Request) WantsChunked() bool {
	for _, v := range r.Header("transfer-encoding") {
		if strings.EqualFold(strings.TrimSpace(v), "chunked") {
			return true
		}
	}
	return false
}
