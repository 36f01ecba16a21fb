package httpd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const multipartPartType = "Content-Type: application/octet-stream\r\n"

type headerField struct {
	Name  string
	Value string
}

// Response carries either an in-memory payload or a stream-from-file
// directive with optional byte ranges. Exactly one of the two holds, except
// for HEAD and error responses which carry headers only.
type Response struct {
	Status      Status
	ContentType ContentType

	payload    []byte
	hasPayload bool

	// stream directive
	IsStream     bool
	Filename     string
	FileSize     int64
	Ranges       []ByteRange
	Boundary     string
	Downloadable bool

	contentLength int64
	hasLength     bool
	headers       []headerField
}

// NewResponse creates a response with the given status and no body.
func NewResponse(status Status) *Response {
	return &Response{Status: status}
}

// SetPayload attaches an in-memory body. Content-Length follows the payload.
func (r *Response) SetPayload(ct ContentType, body []byte) {
	r.ContentType = ct
	r.payload = body
	r.hasPayload = true
	r.IsStream = false
}

// Payload returns the in-memory body and whether one is present. An absent
// payload is distinct from an empty one: HEAD and error responses emit
// Content-Length headers without any body bytes.
func (r *Response) Payload() ([]byte, bool) {
	return r.payload, r.hasPayload
}

// SetStream marks the response as streamed from the named file.
func (r *Response) SetStream(filename string, fileSize int64, ct ContentType) {
	r.IsStream = true
	r.Filename = filename
	r.FileSize = fileSize
	r.ContentType = ct
	r.payload = nil
	r.hasPayload = false
}

// SetRanges attaches the byte ranges of a partial-content response and
// switches the status to 206. Multi-range responses get a fresh part
// boundary.
func (r *Response) SetRanges(ranges []ByteRange, boundary string) {
	r.Ranges = ranges
	if len(ranges) > 0 {
		r.Status = StatusPartialContent
	}
	if len(ranges) > 1 {
		r.Boundary = boundary
	}
}

// SetHeadOnly records the real entity size for a HEAD response without
// attaching any body.
func (r *Response) SetHeadOnly(ct ContentType, size int64) {
	r.ContentType = ct
	r.contentLength = size
	r.hasLength = true
	r.payload = nil
	r.hasPayload = false
	r.IsStream = false
}

// AddHeader appends an extra header field preserving insertion order.
func (r *Response) AddHeader(name, value string) {
	r.headers = append(r.headers, headerField{Name: name, Value: value})
}

// ContentLength computes the value of the Content-Length header: the payload
// size, an explicitly recorded entity size, the summed range lengths plus
// multipart metadata, or the full file size for plain streams.
func (r *Response) ContentLength() int64 {
	switch {
	case r.hasPayload:
		return int64(len(r.payload))
	case r.hasLength:
		return r.contentLength
	case len(r.Ranges) == 1:
		return r.Ranges[0].Length()
	case len(r.Ranges) > 1:
		var total int64
		for _, br := range r.Ranges {
			total += br.Length() + r.partHeaderSize(br) + 2 // trailing CRLF per part
		}
		return total + int64(len(r.Boundary)) + 6 // closing --boundary--\r\n
	case r.IsStream:
		return r.FileSize
	}
	return 0
}

func (r *Response) partHeaderSize(br ByteRange) int64 {
	size := 2 + len(r.Boundary) + 2 // --boundary\r\n
	size += len(multipartPartType)
	size += len(r.partRangeHeader(br))
	size += 2 // blank line
	return int64(size)
}

func (r *Response) partRangeHeader(br ByteRange) string {
	return fmt.Sprintf("Content-Range: bytes %d-%d/%d\r\n", br.Start, br.End, r.FileSize)
}

// PartHeader renders the multipart/byteranges part header for one range.
func (r *Response) PartHeader(br ByteRange) []byte {
	var b strings.Builder
	b.WriteString("--" + r.Boundary + "\r\n")
	b.WriteString(multipartPartType)
	b.WriteString(r.partRangeHeader(br))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ClosingBoundary renders the terminating multipart boundary.
func (r *Response) ClosingBoundary() []byte {
	return []byte("--" + r.Boundary + "--\r\n")
}

// StatusLine renders the HTTP/1.1 status line.
func (r *Response) StatusLine() []byte {
	return []byte("HTTP/1.1 " + strconv.Itoa(int(r.Status)) + " " + r.Status.Reason() + "\r\n")
}

// HeaderBlock renders the full header block including the terminating blank
// line. chunked switches streamed responses to Transfer-Encoding framing,
// which omits Content-Length.
func (r *Response) HeaderBlock(chunked bool) []byte {
	var b strings.Builder
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123) + "\r\n")
	b.WriteString("Server: genoserve\r\n")

	ct := r.ContentType
	if ct == "" {
		ct = ContentTypeHTML
	}

	switch {
	case len(r.Ranges) > 1:
		b.WriteString("Content-Type: multipart/byteranges; boundary=" + r.Boundary + "\r\n")
		b.WriteString("Accept-Ranges: bytes\r\n")
		b.WriteString("Content-Length: " + strconv.FormatInt(r.ContentLength(), 10) + "\r\n")
	case len(r.Ranges) == 1:
		b.WriteString("Content-Type: application/octet-stream\r\n")
		b.WriteString("Accept-Ranges: bytes\r\n")
		b.WriteString(r.partRangeHeader(r.Ranges[0]))
		b.WriteString("Content-Length: " + strconv.FormatInt(r.ContentLength(), 10) + "\r\n")
	case r.IsStream && chunked:
		b.WriteString("Content-Type: " + string(ct) + "\r\n")
		b.WriteString("Transfer-Encoding: chunked\r\n")
		b.WriteString("Connection: Keep-Alive\r\n")
	default:
		b.WriteString("Content-Type: " + string(ct) + "\r\n")
		b.WriteString("Content-Length: " + strconv.FormatInt(r.ContentLength(), 10) + "\r\n")
		b.WriteString("Connection: Keep-Alive\r\n")
	}

	if r.Downloadable && r.Filename != "" {
		b.WriteString("Content-Disposition: attachment; filename=\"" + filepath.Base(r.Filename) + "\"\r\n")
	}

	for _, h := range r.headers {
		b.WriteString(h.Name + ": " + h.Value + "\r\n")
	}

	b.WriteString("\r\n")
	return []byte(b.String())
}
