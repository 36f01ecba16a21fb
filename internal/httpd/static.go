package httpd

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// inline types are rendered by browsers; everything else is delivered as a
// download with a Content-Disposition header.
var inlineTypes = map[ContentType]bool{
	ContentTypeHTML:  true,
	ContentTypePlain: true,
	ContentTypeJSON:  true,
	ContentTypePNG:   true,
	ContentTypeJPEG:  true,
	ContentTypeSVG:   true,
	ContentTypeICO:   true,
	ContentTypeCSS:   true,
	ContentTypeJS:    true,
	ContentTypePDF:   true,
}

// NewBoundary mints a part boundary for multipart/byteranges responses.
func NewBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ServeFile builds the response for a static file request: a stream
// directive for GET, headers only for HEAD, 206 with parsed byte ranges, or
// the matching error. A missing file answered to HEAD carries an explicit
// zero Content-Length and no body.
func ServeFile(path string, req *Request) (*Response, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if req.Method == MethodHead {
			resp := NewResponse(StatusNotFound)
			resp.SetHeadOnly(ContentTypeHTML, 0)
			return resp, nil
		}
		return nil, NotFoundf("file %s was not found", filepath.Base(path))
	}

	ct := ContentTypeByFilename(path)

	if req.Method == MethodHead {
		resp := NewResponse(StatusOK)
		resp.SetHeadOnly(ct, info.Size())
		return resp, nil
	}

	resp := NewResponse(StatusOK)
	resp.SetStream(path, info.Size(), ct)
	if !inlineTypes[ct] {
		resp.Downloadable = true
	}

	if rangeHeader := req.HeaderValue("range"); rangeHeader != "" {
		ranges, err := ParseRanges(rangeHeader, info.Size())
		if err != nil {
			return nil, err
		}
		resp.SetRanges(ranges, NewBoundary())
	}

	return resp, nil
}

// ServeFolder renders a directory listing for GET requests when folder
// listings are enabled. urlPath is the request location shown in the page
// heading.
func ServeFolder(dir, urlPath string, req *Request, allowListing bool) (*Response, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, NotFoundf("folder %s was not found", filepath.Base(dir))
	}
	if !allowListing {
		return nil, &AuthError{Message: "folder listings are disabled"}
	}

	if req.Method == MethodHead {
		resp := NewResponse(StatusOK)
		resp.SetHeadOnly(ContentTypeHTML, 0)
		return resp, nil
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, NotFoundf("folder %s could not be read", filepath.Base(dir))
	}

	entries := make([]FolderEntry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		fe := FolderEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if fi, err := entry.Info(); err == nil {
			fe.Size = fi.Size()
		}
		entries = append(entries, fe)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	resp := NewResponse(StatusOK)
	resp.SetPayload(ContentTypeHTML, RenderFolderListing(urlPath, entries))
	return resp, nil
}
