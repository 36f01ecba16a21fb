// Package httpd implements the raw-socket HTTP/1.1 serving core: request
// parsing, endpoint dispatch, byte-range file responses, and streamed or
// chunked writes over plain TCP or TLS connections.
package httpd

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
	MethodHead   Method = "HEAD"
)

// ParseMethod maps a request-line token to a Method, case-insensitively.
func ParseMethod(s string) (Method, bool) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodGet:
		return MethodGet, true
	case MethodPost:
		return MethodPost, true
	case MethodPut:
		return MethodPut, true
	case MethodPatch:
		return MethodPatch, true
	case MethodDelete:
		return MethodDelete, true
	case MethodHead:
		return MethodHead, true
	}
	return "", false
}

// ContentType is one of the fixed set of MIME types the server speaks.
type ContentType string

const (
	ContentTypeHTML        ContentType = "text/html"
	ContentTypePlain       ContentType = "text/plain"
	ContentTypeJSON        ContentType = "application/json"
	ContentTypeURLEncoded  ContentType = "application/x-www-form-urlencoded"
	ContentTypeMultipart   ContentType = "multipart/form-data"
	ContentTypeOctetStream ContentType = "application/octet-stream"
	ContentTypePNG         ContentType = "image/png"
	ContentTypeJPEG        ContentType = "image/jpeg"
	ContentTypeSVG         ContentType = "image/svg+xml"
	ContentTypeICO         ContentType = "image/x-icon"
	ContentTypeCSS         ContentType = "text/css"
	ContentTypeJS          ContentType = "text/javascript"
	ContentTypeGzip        ContentType = "application/gzip"
	ContentTypePDF         ContentType = "application/pdf"
)

// ParseContentType maps a Content-Type/Accept header value to a known
// ContentType. Parameters such as boundary or charset are ignored.
func ParseContentType(s string) (ContentType, bool) {
	base := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch ContentType(base) {
	case ContentTypeHTML, ContentTypePlain, ContentTypeJSON, ContentTypeURLEncoded,
		ContentTypeMultipart, ContentTypeOctetStream, ContentTypePNG, ContentTypeJPEG,
		ContentTypeSVG, ContentTypeICO, ContentTypeCSS, ContentTypeJS,
		ContentTypeGzip, ContentTypePDF:
		return ContentType(base), true
	}
	return "", false
}

// extension table for the file types the server commonly hands out; genomic
// artifacts (BAM/VCF indexes and friends) are served as octet streams.
var extContentTypes = map[string]ContentType{
	".html": ContentTypeHTML,
	".htm":  ContentTypeHTML,
	".txt":  ContentTypePlain,
	".log":  ContentTypePlain,
	".tsv":  ContentTypePlain,
	".bed":  ContentTypePlain,
	".vcf":  ContentTypePlain,
	".json": ContentTypeJSON,
	".png":  ContentTypePNG,
	".jpg":  ContentTypeJPEG,
	".jpeg": ContentTypeJPEG,
	".svg":  ContentTypeSVG,
	".ico":  ContentTypeICO,
	".css":  ContentTypeCSS,
	".js":   ContentTypeJS,
	".gz":   ContentTypeGzip,
	".pdf":  ContentTypePDF,
	".bam":  ContentTypeOctetStream,
	".bai":  ContentTypeOctetStream,
	".csi":  ContentTypeOctetStream,
	".bcf":  ContentTypeOctetStream,
	".cram": ContentTypeOctetStream,
}

// ContentTypeByFilename resolves the response content type from the file
// extension, falling back to application/octet-stream.
func ContentTypeByFilename(name string) ContentType {
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return ContentTypeOctetStream
}

// SniffContentType detects the MIME type of raw bytes. Used for uploads,
// where the client-supplied filename is untrusted.
func SniffContentType(data []byte) ContentType {
	detected := mimetype.Detect(data)
	if ct, ok := ParseContentType(detected.String()); ok {
		return ct
	}
	return ContentTypeOctetStream
}

// Status identifies a response status from the fixed table the server emits.
type Status int

const (
	StatusOK                  Status = 200
	StatusPartialContent      Status = 206
	StatusMovedPermanently    Status = 301
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusRequestTimeout      Status = 408
	StatusRangeNotSatisfiable Status = 416
	StatusInternalServerError Status = 500
	StatusNotImplemented      Status = 501
	StatusServiceUnavailable  Status = 503
)

var reasonPhrases = map[Status]string{
	StatusOK:                  "OK",
	StatusPartialContent:      "Partial Content",
	StatusMovedPermanently:    "Moved Permanently",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusRequestTimeout:      "Request Timeout",
	StatusRangeNotSatisfiable: "Range Not Satisfiable",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusServiceUnavailable:  "Service Unavailable",
}

// Reason returns the standard reason phrase for the status.
func (s Status) Reason() string {
	if r, ok := reasonPhrases[s]; ok {
		return r
	}
	return "Unknown"
}

// Class returns the textual status class used on HTML error pages.
func (s Status) Class() string {
	switch {
	case s >= 200 && s < 300:
		return "Success"
	case s >= 300 && s < 400:
		return "Redirection"
	case s >= 400 && s < 500:
		return "Client Error"
	case s >= 500:
		return "Server Error"
	}
	return "Informational"
}
