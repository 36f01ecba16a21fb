package httpd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Handlers and the parser return these; the dispatcher maps
// them to status codes before any bytes hit the socket. Failures after
// headers are sent cannot be converted and terminate the connection instead.

// ArgumentError is malformed client input (maps to 400).
type ArgumentError struct{ Message string }

func (e *ArgumentError) Error() string { return e.Message }

// Argumentf builds an ArgumentError.
func Argumentf(format string, args ...any) error {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// AuthError is a missing, invalid or expired credential. Basic-auth failures
// carry Basic=true and map to 401 with a WWW-Authenticate challenge; token
// failures map to 403.
type AuthError struct {
	Message string
	Basic   bool
}

func (e *AuthError) Error() string { return e.Message }

// NotFoundError maps to 404.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// NotFoundf builds a NotFoundError.
func NotFoundf(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// RangeError is an unsatisfiable Range header (maps to 416). FileSize is
// echoed in the Content-Range: bytes */size header.
type RangeError struct {
	Message  string
	FileSize int64
}

func (e *RangeError) Error() string { return e.Message }

// StatusFor maps an error to the response status it should produce.
func StatusFor(err error) Status {
	var (
		argErr   *ArgumentError
		authErr  *AuthError
		nfErr    *NotFoundError
		rangeErr *RangeError
	)
	switch {
	case errors.As(err, &argErr):
		return StatusBadRequest
	case errors.As(err, &authErr):
		if authErr.Basic {
			return StatusUnauthorized
		}
		return StatusForbidden
	case errors.As(err, &nfErr):
		return StatusNotFound
	case errors.As(err, &rangeErr):
		return StatusRangeNotSatisfiable
	}
	return StatusInternalServerError
}

// errorBodyType picks the error body rendering from the client's declared or
// sniffed Accept type: JSON for API clients, HTML for browsers, plain text
// otherwise.
func errorBodyType(req *Request) ContentType {
	if req == nil {
		return ContentTypePlain
	}
	for _, accept := range req.Header("accept") {
		if ct, ok := ParseContentType(accept); ok && ct == ContentTypeJSON {
			return ContentTypeJSON
		}
	}
	if req.ContentType == ContentTypeJSON {
		return ContentTypeJSON
	}
	for _, ua := range req.Header("user-agent") {
		lower := strings.ToLower(ua)
		if strings.Contains(lower, "mozilla") || strings.Contains(lower, "webkit") {
			return ContentTypeHTML
		}
	}
	return ContentTypePlain
}

// ErrorResponse renders a complete error response for the given status, with
// the body format chosen from the request.
func ErrorResponse(status Status, req *Request, message string) *Response {
	if message == "" {
		message = "Unknown error has been detected"
	}

	resp := NewResponse(status)
	switch errorBodyType(req) {
	case ContentTypeJSON:
		body, _ := json.Marshal(map[string]any{
			"message": message,
			"code":    int(status),
			"type":    status.Reason(),
		})
		resp.SetPayload(ContentTypeJSON, body)
	case ContentTypeHTML:
		title := fmt.Sprintf("%s %d - %s", status.Class(), int(status), status.Reason())
		resp.SetPayload(ContentTypeHTML, renderMessagePage(title, message))
	default:
		resp.SetPayload(ContentTypePlain, []byte(message))
	}

	if status == StatusUnauthorized {
		resp.AddHeader("WWW-Authenticate", `Basic realm="Access to the secure area of genoserve"`)
	}
	return resp
}

// ErrorResponseFrom maps err through the taxonomy and renders it. RangeError
// additionally emits the Content-Range: bytes */size header.
func ErrorResponseFrom(err error, req *Request) *Response {
	status := StatusFor(err)
	resp := ErrorResponse(status, req, err.Error())
	var rangeErr *RangeError
	if errors.As(err, &rangeErr) && rangeErr.FileSize > 0 {
		resp.AddHeader("Content-Range", fmt.Sprintf("bytes */%d", rangeErr.FileSize))
	}
	return resp
}
