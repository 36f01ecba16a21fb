package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/utils"
)

// resolveBelow joins path segments below a root directory and rejects any
// result that escapes it.
func resolveBelow(root string, segments []string) (string, error) {
	path := filepath.Join(append([]string{root}, segments...)...)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", httpd.NotFoundf("file %s was not found", strings.Join(segments, "/"))
	}
	return absPath, nil
}

func (s *Service) serveBelow(root string, req *httpd.Request) *httpd.Response {
	path, err := resolveBelow(root, req.PathSegments)
	if err != nil {
		return httpd.ErrorResponseFrom(err, req)
	}

	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		resp, err := httpd.ServeFolder(path, strings.Join(req.PathSegments, "/"), req, s.cfg.AllowFolderListing)
		if err != nil {
			return httpd.ErrorResponseFrom(err, req)
		}
		return resp
	}

	resp, err := httpd.ServeFile(path, req)
	if err != nil {
		return httpd.ErrorResponseFrom(err, req)
	}
	return resp
}

// Static serves files below the public server root.
func (s *Service) Static(req *httpd.Request) *httpd.Response {
	return s.serveBelow(s.cfg.ServerRoot, req)
}

// Protected serves files below the protected subfolder of the server root.
// Basic authentication has already been checked by the dispatcher.
func (s *Service) Protected(req *httpd.Request) *httpd.Response {
	return s.serveBelow(filepath.Join(s.cfg.ServerRoot, "protected"), req)
}

// Temp serves the file behind a temporary URL token. For tokens pointing at
// a folder, the second path segment selects a file inside it.
func (s *Service) Temp(req *httpd.Request) *httpd.Response {
	token := req.PathSegments[0]
	entity := s.urls.Get(token)
	if entity.IsEmpty() || time.Since(entity.Created) > s.cfg.URLLifetime {
		return httpd.ErrorResponseFrom(
			httpd.NotFoundf("The requested resource does not exist or has expired"), req)
	}

	path := entity.FilenameWithPath
	if len(req.PathSegments) > 1 {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return httpd.ErrorResponseFrom(
				httpd.NotFoundf("%s is not a shared folder", entity.Filename), req)
		}
		resolved, rerr := resolveBelow(path, req.PathSegments[1:])
		if rerr != nil {
			return httpd.ErrorResponseFrom(rerr, req)
		}
		path = resolved
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		resp, serveErr := httpd.ServeFolder(path, token, req, s.cfg.AllowFolderListing)
		if serveErr != nil {
			return httpd.ErrorResponseFrom(serveErr, req)
		}
		return resp
	}

	resp, err := httpd.ServeFile(path, req)
	if err != nil {
		return httpd.ErrorResponseFrom(err, req)
	}
	return resp
}

// Upload stores the uploaded file in the folder behind a temporary URL.
func (s *Service) Upload(req *httpd.Request) *httpd.Response {
	entity := s.urls.Get(req.Param("dir_token"))
	if entity.IsEmpty() || time.Since(entity.Created) > s.cfg.URLLifetime {
		return httpd.ErrorResponseFrom(
			httpd.NotFoundf("The upload target does not exist or has expired"), req)
	}

	info, err := os.Stat(entity.FilenameWithPath)
	if err != nil || !info.IsDir() {
		return httpd.ErrorResponseFrom(
			httpd.Argumentf("The upload target is not a folder"), req)
	}

	if req.File.Filename == "" || len(req.File.Content) == 0 {
		return httpd.ErrorResponseFrom(
			httpd.Argumentf("The request does not contain a file to upload"), req)
	}

	name := utils.SanitizeFilename(req.File.Filename)
	target := filepath.Join(entity.FilenameWithPath, name)
	if err := os.WriteFile(target, req.File.Content, 0o644); err != nil {
		s.log.Error("storing uploaded file failed", "target", target, "error", err)
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not store the uploaded file")
	}

	s.log.Info("file uploaded", "filename", name, "size", len(req.File.Content),
		"content_type", string(httpd.SniffContentType(req.File.Content)))

	body, err := json.Marshal(map[string]string{
		"filename": name,
		"path":     target,
	})
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the upload result")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}
