package httpd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// maxHeaderBytes caps how much is buffered while waiting for the end of
	// the header block of a request that never announces a body.
	maxHeaderBytes = 2048
	// streamChunkSize is the unit streamed file bytes are written in.
	streamChunkSize = 10240

	readTimeout  = 60 * time.Second
	writeTimeout = 60 * time.Second
)

// Authenticator validates the credentials carried by a request before a
// protected endpoint handler runs.
type Authenticator interface {
	// ValidateToken returns an error for a missing, unknown or expired
	// session token.
	ValidateToken(token string) error
	// ValidateBasic checks HTTP basic credentials.
	ValidateBasic(username, password string) error
}

// Worker serves one connection per request: it frames and parses the raw
// request, dispatches it through the registry, and writes the response,
// streaming file bodies in fixed-size chunks.
type Worker struct {
	Registry *Registry
	Auth     Authenticator
	Log      *slog.Logger

	// OnRequest is invoked once per served request, after the status is
	// known. Used for metrics.
	OnRequest func(method Method, path string, status Status)
}

// Handle reads one request from the connection, serves it, and closes the
// connection.
func (w *Worker) Handle(conn net.Conn) {
	defer conn.Close()

	raw, err := w.readRequest(conn)
	if err != nil {
		w.Log.Debug("dropping connection", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	req, parseErr := Parse(raw)
	var resp *Response
	if parseErr != nil {
		resp = ErrorResponseFrom(parseErr, req)
	} else {
		resp = w.dispatch(req)
	}

	if w.OnRequest != nil {
		path := ""
		if req != nil {
			path = req.Path
		}
		w.OnRequest(requestMethod(req), path, resp.Status)
	}
	w.logRequest(conn, req, resp)

	chunked := req != nil && req.WantsChunked() && resp.IsStream
	if err := w.writeResponse(conn, req, resp, chunked); err != nil {
		w.Log.Debug("client disconnected during write", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

func requestMethod(req *Request) Method {
	if req == nil {
		return ""
	}
	return req.Method
}

// readRequest accumulates bytes until the blank line ending the header
// block, then reads Content-Length additional body bytes. Requests that
// never produce a blank line are cut off at maxHeaderBytes and handed to the
// parser as-is.
func (w *Worker) readRequest(conn net.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	var buf bytes.Buffer
	chunk := make([]byte, 1024)
	headerEnd := -1
	bodySep := 0

	for headerEnd < 0 {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if idx := bytes.Index(buf.Bytes(), []byte("\r\n\r\n")); idx >= 0 {
			headerEnd, bodySep = idx, 4
		} else if idx := bytes.Index(buf.Bytes(), []byte("\n\n")); idx >= 0 {
			headerEnd, bodySep = idx, 2
		}
		if err != nil {
			if headerEnd < 0 && buf.Len() == 0 {
				return nil, err
			}
			return buf.Bytes(), nil
		}
		if headerEnd < 0 && buf.Len() > maxHeaderBytes {
			return buf.Bytes(), nil
		}
	}

	want := contentLengthOf(buf.Bytes()[:headerEnd])
	for int64(buf.Len()-headerEnd-bodySep) < want {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			break
		}
	}
	return buf.Bytes(), nil
}

func contentLengthOf(headers []byte) int64 {
	for _, line := range strings.Split(string(headers), "\n") {
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(line[:colon]), "content-length") {
			continue
		}
		if v, err := strconv.ParseInt(strings.TrimSpace(strings.TrimRight(line[colon+1:], "\r")), 10, 64); err == nil {
			return v
		}
	}
	return 0
}

// dispatch resolves, validates, authenticates and runs the endpoint handler.
// Panics inside handlers become 500 responses.
func (w *Worker) dispatch(req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("handler panicked", "path", req.Path, "panic", fmt.Sprint(r))
			resp = ErrorResponse(StatusInternalServerError, req, "Unexpected error while processing the request")
		}
	}()

	ep := w.Registry.Resolve(req.Path, req.Method)
	if ep == nil {
		return ErrorResponse(StatusBadRequest, req, "This action cannot be processed")
	}

	if err := ep.Validate(req); err != nil {
		return ErrorResponseFrom(err, req)
	}

	if err := w.authorize(ep, req); err != nil {
		return ErrorResponseFrom(err, req)
	}

	resp = ep.Handler(req)
	if resp == nil {
		return ErrorResponse(StatusInternalServerError, req, "Endpoint produced no response")
	}

	// a bodiless success answered to a ranged request means the entity
	// could not provide the requested bytes
	if _, ok := resp.Payload(); !ok && !resp.IsStream && resp.Status == StatusOK &&
		req.Method != MethodHead && req.HasHeader("range") {
		return ErrorResponseFrom(&RangeError{Message: "requested range cannot be satisfied", FileSize: resp.ContentLength()}, req)
	}
	return resp
}

func (w *Worker) authorize(ep *Endpoint, req *Request) error {
	switch ep.Auth {
	case AuthToken:
		token := req.Token()
		if token == "" {
			return &AuthError{Message: "You are not authorized to access this information"}
		}
		return w.Auth.ValidateToken(token)
	case AuthBasic:
		user, pass, ok := basicCredentials(req.HeaderValue("authorization"))
		if !ok {
			return &AuthError{Message: "Basic authentication is required", Basic: true}
		}
		return w.Auth.ValidateBasic(user, pass)
	}
	return nil
}

// basicCredentials decodes an Authorization: Basic header, splitting on the
// first colon so passwords may contain colons.
func basicCredentials(header string) (user, pass string, ok bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	decoded := string(raw)
	colon := strings.Index(decoded, ":")
	if colon < 0 {
		return "", "", false
	}
	return decoded[:colon], decoded[colon+1:], true
}

// writeResponse emits the status line and headers, then the payload or the
// streamed file body. HEAD responses never carry body bytes.
func (w *Worker) writeResponse(conn net.Conn, req *Request, resp *Response, chunked bool) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	if _, err := conn.Write(resp.StatusLine()); err != nil {
		return err
	}
	if _, err := conn.Write(resp.HeaderBlock(chunked)); err != nil {
		return err
	}

	if req != nil && req.Method == MethodHead {
		return nil
	}

	if body, ok := resp.Payload(); ok {
		_, err := conn.Write(body)
		return err
	}
	if !resp.IsStream {
		return nil
	}

	out := newChunkWriter(conn, chunked)
	if err := w.streamFile(out, resp); err != nil {
		return err
	}
	return out.Close()
}

// streamFile copies the file body onto the connection in streamChunkSize
// units. Multi-range responses are framed as multipart/byteranges with a
// part header per range and a closing boundary.
func (w *Worker) streamFile(out io.Writer, resp *Response) error {
	f, err := os.Open(resp.Filename)
	if err != nil {
		return err
	}
	defer f.Close()

	ranges := resp.Ranges
	if len(ranges) == 0 {
		ranges = []ByteRange{{Start: 0, End: resp.FileSize - 1}}
	}
	multipart := resp.Boundary != ""

	for _, br := range ranges {
		if multipart {
			if _, err := out.Write(resp.PartHeader(br)); err != nil {
				return err
			}
		}
		if err := copyRange(out, f, br); err != nil {
			return err
		}
		if multipart {
			if _, err := out.Write([]byte("\r\n")); err != nil {
				return err
			}
		}
	}

	if multipart {
		if _, err := out.Write(resp.ClosingBoundary()); err != nil {
			return err
		}
	}
	return nil
}

func copyRange(out io.Writer, f *os.File, br ByteRange) error {
	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		return err
	}
	remaining := br.Length()
	buf := make([]byte, streamChunkSize)
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(f, buf[:n])
		if read == 0 {
			return err
		}
		if _, werr := out.Write(buf[:read]); werr != nil {
			return werr
		}
		remaining -= int64(read)
		if err != nil {
			return err
		}
	}
	return nil
}

// chunkWriter frames writes as HTTP/1.1 chunks (hex length, CRLF, data,
// CRLF) when enabled, and passes them through untouched otherwise. Close
// emits the zero-length terminator chunk.
type chunkWriter struct {
	conn    net.Conn
	chunked bool
}

func newChunkWriter(conn net.Conn, chunked bool) *chunkWriter {
	return &chunkWriter{conn: conn, chunked: chunked}
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if !c.chunked {
		return c.conn.Write(p)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(c.conn, "%X\r\n", len(p)); err != nil {
		return 0, err
	}
	if _, err := c.conn.Write(p); err != nil {
		return 0, err
	}
	if _, err := c.conn.Write([]byte("\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *chunkWriter) Close() error {
	if !c.chunked {
		return nil
	}
	_, err := c.conn.Write([]byte("0\r\n\r\n"))
	return err
}

func (w *Worker) logRequest(conn net.Conn, req *Request, resp *Response) {
	attrs := []any{
		"remote", conn.RemoteAddr().String(),
		"status", int(resp.Status),
	}
	if req != nil {
		attrs = append(attrs, "method", string(req.Method), "path", req.Path)
	}
	if resp.Status >= 500 {
		w.Log.Error("request failed", attrs...)
		return
	}
	w.Log.Info("request served", attrs...)
}
