package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/models"
)

const serverVersion = "1.2.0"
const apiVersion = "v1"

// Index answers the root path with a short welcome page.
func (s *Service) Index(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeHTML, httpd.RenderHelpIndex(s.registry.List()))
	return resp
}

// Info reports the server name, version and start time as JSON.
func (s *Service) Info(req *httpd.Request) *httpd.Response {
	body, err := json.Marshal(map[string]any{
		"name":        "genoserve",
		"version":     serverVersion,
		"api_version": apiVersion,
		"start_time":  s.started.Unix(),
	})
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the server information")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}

// Favicon serves the site icon from the server root.
func (s *Service) Favicon(req *httpd.Request) *httpd.Response {
	resp, err := httpd.ServeFile(filepath.Join(s.cfg.ServerRoot, "favicon.ico"), req)
	if err != nil {
		return httpd.ErrorResponseFrom(err, req)
	}
	return resp
}

// Help renders the endpoint documentation: the full index, or a single
// route, optionally narrowed to one method.
func (s *Service) Help(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse(httpd.StatusOK)

	if len(req.PathSegments) == 0 {
		resp.SetPayload(httpd.ContentTypeHTML, httpd.RenderHelpIndex(s.registry.List()))
		return resp
	}

	endpoints := s.registry.ByPath(req.PathSegments[0])
	if len(req.PathSegments) > 1 {
		if method, ok := httpd.ParseMethod(req.PathSegments[1]); ok {
			filtered := endpoints[:0]
			for _, ep := range endpoints {
				if ep.Method == method {
					filtered = append(filtered, ep)
				}
			}
			endpoints = filtered
		}
	}
	if len(endpoints) == 0 {
		return httpd.ErrorResponseFrom(
			httpd.NotFoundf("no endpoint is registered under %s", req.PathSegments[0]), req)
	}

	resp.SetPayload(httpd.ContentTypeHTML, httpd.RenderHelpEndpoint(endpoints))
	return resp
}

// CurrentClient reports the desktop client version and message maintained
// in a JSON file next to the server.
func (s *Service) CurrentClient(req *httpd.Request) *httpd.Response {
	info := models.ClientInfo{}
	if data, err := os.ReadFile(s.cfg.ClientInfoFile); err == nil {
		if err := json.Unmarshal(data, &info); err != nil {
			s.log.Warn("client info file is not valid JSON", "file", s.cfg.ClientInfoFile, "error", err)
		}
	}

	body, err := json.Marshal(info)
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the client information")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}

// Notification hands out the current service notification, if notifying
// users is enabled.
func (s *Service) Notification(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse(httpd.StatusOK)
	if !s.cfg.AllowNotifyingUsers {
		resp.SetPayload(httpd.ContentTypePlain, []byte(""))
		return resp
	}

	var message string
	if data, err := os.ReadFile(s.cfg.NotificationFile); err == nil {
		var payload struct {
			Message string `json:"message"`
			Expires int64  `json:"expires"`
		}
		if json.Unmarshal(data, &payload) == nil {
			if payload.Expires == 0 || payload.Expires > time.Now().Unix() {
				message = payload.Message
			}
		}
	}

	resp.SetPayload(httpd.ContentTypePlain, []byte(message))
	return resp
}

// Metrics renders the Prometheus collectors in the text exposition format.
func (s *Service) Metrics(req *httpd.Request) *httpd.Response {
	s.metrics.SetActiveSessions(s.sessions.Count())
	s.metrics.SetActiveURLs(s.urls.Count())

	body, err := s.metrics.Render()
	if err != nil {
		s.log.Error("rendering metrics failed", "error", err)
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not render the metrics")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypePlain, body)
	return resp
}
