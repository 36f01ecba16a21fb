// Package handlers implements the API endpoints: authentication, session
// and temporary-URL management, static and ranged file delivery, uploads,
// file-location queries and the operational pages.
package handlers

import (
	"log/slog"
	"time"

	"github.com/genoweb/genoserve/internal/config"
	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/metrics"
	"github.com/genoweb/genoserve/internal/session"
	"github.com/genoweb/genoserve/internal/store"
)

// Service owns the endpoint handlers and their dependencies.
type Service struct {
	cfg       *config.Config
	db        *store.DB
	sessions  *session.Manager
	urls      *session.URLManager
	locations *session.LocationCache
	resolver  LocationResolver
	metrics   *metrics.Metrics
	log       *slog.Logger
	registry  *httpd.Registry
	started   time.Time
}

// New wires a handler service. resolver may be nil, in which case the
// filesystem resolver rooted at the server root is used.
func New(cfg *config.Config, db *store.DB, sessions *session.Manager, urls *session.URLManager,
	m *metrics.Metrics, log *slog.Logger, resolver LocationResolver) *Service {
	if resolver == nil {
		resolver = &FilesystemResolver{}
	}
	return &Service{
		cfg:       cfg,
		db:        db,
		sessions:  sessions,
		urls:      urls,
		locations: session.NewLocationCache(10 * time.Minute),
		resolver:  resolver,
		metrics:   m,
		log:       log,
		started:   time.Now(),
	}
}

// SweepLocations evicts stale entries from the file location cache.
func (s *Service) SweepLocations() int {
	return s.locations.Sweep()
}

// ValidateToken implements httpd.Authenticator for session tokens.
func (s *Service) ValidateToken(token string) error {
	if !s.sessions.IsValid(token) {
		return &httpd.AuthError{Message: "You are not authorized to access this information"}
	}
	return nil
}

// ValidateBasic implements httpd.Authenticator for HTTP basic credentials.
func (s *Service) ValidateBasic(username, password string) error {
	if _, err := s.db.Authenticate(username, password); err != nil {
		return &httpd.AuthError{Message: "Invalid username or password", Basic: true}
	}
	return nil
}

// Register wires every endpoint into the registry.
func (s *Service) Register(reg *httpd.Registry) {
	s.registry = reg

	reg.Register(httpd.Endpoint{
		Path: "", Method: httpd.MethodGet,
		Description: "Index page",
		Handler:     s.Index,
	})
	reg.Register(httpd.Endpoint{
		Path: "info", Method: httpd.MethodGet,
		Description: "General server information",
		Handler:     s.Info,
	})
	reg.Register(httpd.Endpoint{
		Path: "favicon.ico", Method: httpd.MethodGet,
		Description: "Site icon",
		Handler:     s.Favicon,
	})
	reg.Register(httpd.Endpoint{
		Path: "help", Method: httpd.MethodGet,
		Params: map[string]httpd.ParamSpec{
			"route":  {Category: httpd.ParamPath, Optional: true, Description: "Endpoint route name"},
			"method": {Category: httpd.ParamPath, Optional: true, Description: "HTTP method"},
		},
		Description: "Endpoint documentation",
		Handler:     s.Help,
	})
	reg.Register(httpd.Endpoint{
		Path: "login", Method: httpd.MethodPost,
		Params: map[string]httpd.ParamSpec{
			"name":     {Category: httpd.ParamForm, Description: "User login"},
			"password": {Category: httpd.ParamForm, Description: "User password"},
		},
		Description: "Creates a user session and returns its token",
		Handler:     s.Login,
	})
	reg.Register(httpd.Endpoint{
		Path: "logout", Method: httpd.MethodPost,
		Params: map[string]httpd.ParamSpec{
			"token": {Category: httpd.ParamAny, Description: "Session token"},
		},
		Auth:        httpd.AuthToken,
		Description: "Ends the session identified by the token",
		Handler:     s.Logout,
	})
	reg.Register(httpd.Endpoint{
		Path: "session", Method: httpd.MethodGet,
		Params: map[string]httpd.ParamSpec{
			"token": {Category: httpd.ParamAny, Description: "Session token"},
		},
		Auth:        httpd.AuthToken,
		Description: "Information about the current session",
		Handler:     s.SessionInfo,
	})
	reg.Register(httpd.Endpoint{
		Path: "validate_credentials", Method: httpd.MethodPost,
		Params: map[string]httpd.ParamSpec{
			"name":     {Category: httpd.ParamForm, Description: "User login"},
			"password": {Category: httpd.ParamForm, Description: "User password"},
		},
		Description: "Checks a login/password pair without creating a session",
		Handler:     s.ValidateCredentials,
	})
	reg.Register(httpd.Endpoint{
		Path: "db_token", Method: httpd.MethodPost,
		Params: map[string]httpd.ParamSpec{
			"token": {Category: httpd.ParamAny, Description: "Session token"},
		},
		Auth:        httpd.AuthToken,
		Description: "Mints a token that only authorizes fetching database credentials",
		Handler:     s.DBToken,
	})
	reg.Register(httpd.Endpoint{
		Path: "db_credentials", Method: httpd.MethodGet,
		Params: map[string]httpd.ParamSpec{
			"token":  {Category: httpd.ParamAny, Description: "Database token"},
			"secret": {Category: httpd.ParamAny, Description: "Shared secret"},
		},
		Auth:        httpd.AuthToken,
		Description: "Read-only database credentials for direct client access",
		Handler:     s.DBCredentials,
	})

	for _, method := range []httpd.Method{httpd.MethodGet, httpd.MethodHead} {
		reg.Register(httpd.Endpoint{
			Path: "static", Method: method,
			Params: map[string]httpd.ParamSpec{
				"filename": {Category: httpd.ParamPath, Description: "File below the server root"},
			},
			Description: "Files below the public server root",
			Handler:     s.Static,
		})
		reg.Register(httpd.Endpoint{
			Path: "protected", Method: method,
			Params: map[string]httpd.ParamSpec{
				"filename": {Category: httpd.ParamPath, Description: "File below the protected root"},
			},
			Auth:        httpd.AuthBasic,
			Description: "Files that require basic authentication",
			Handler:     s.Protected,
		})
		reg.Register(httpd.Endpoint{
			Path: "temp", Method: method,
			Params: map[string]httpd.ParamSpec{
				"id":       {Category: httpd.ParamPath, Description: "Temporary URL token"},
				"filename": {Category: httpd.ParamPath, Optional: true, Description: "File inside a shared folder"},
			},
			Description: "Files behind temporary URLs",
			Handler:     s.Temp,
		})
	}

	reg.Register(httpd.Endpoint{
		Path: "upload", Method: httpd.MethodPost,
		Params: map[string]httpd.ParamSpec{
			"token":     {Category: httpd.ParamAny, Description: "Session token"},
			"dir_token": {Category: httpd.ParamAny, Description: "Temporary URL token of the target folder"},
		},
		Auth:        httpd.AuthToken,
		Description: "Stores an uploaded file in the folder behind a temporary URL",
		Handler:     s.Upload,
	})
	reg.Register(httpd.Endpoint{
		Path: "file_location", Method: httpd.MethodGet,
		Params: map[string]httpd.ParamSpec{
			"ps_url_id":         {Category: httpd.ParamAny, Description: "Temporary URL token of the sample folder"},
			"type":              {Category: httpd.ParamAny, Description: "Artifact type, e.g. BAM or VCF"},
			"locus":             {Category: httpd.ParamAny, Optional: true, Description: "Genomic locus filter"},
			"return_if_missing": {Category: httpd.ParamAny, Optional: true, Description: "Include locations whose files are absent"},
			"multiple_files":    {Category: httpd.ParamAny, Optional: true, Description: "Return all matches instead of the first"},
		},
		Auth:        httpd.AuthToken,
		Description: "Locations of analysis artifacts for a processed sample",
		Handler:     s.FileLocation,
	})
	reg.Register(httpd.Endpoint{
		Path: "current_client", Method: httpd.MethodGet,
		Description: "Version and message for the desktop client",
		Handler:     s.CurrentClient,
	})
	reg.Register(httpd.Endpoint{
		Path: "notification", Method: httpd.MethodGet,
		Description: "Service notification for all users",
		Handler:     s.Notification,
	})
	reg.Register(httpd.Endpoint{
		Path: "metrics", Method: httpd.MethodGet,
		Auth:        httpd.AuthBasic,
		Description: "Prometheus metrics",
		Handler:     s.Metrics,
	})
}
