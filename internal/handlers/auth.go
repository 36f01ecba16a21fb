package handlers

import (
	"encoding/json"
	"errors"

	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/store"
	"github.com/genoweb/genoserve/internal/utils"
)

// Login verifies the credentials and answers with the token of a freshly
// minted session as plain text.
func (s *Service) Login(req *httpd.Request) *httpd.Response {
	user, err := s.db.Authenticate(req.Param("name"), req.Param("password"))
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "Invalid username or password"}, req)
		}
		s.log.Error("login failed", "error", err)
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not process the login")
	}

	sess := s.sessions.Create(user.ID, user.Login, user.Name, false)
	s.log.Info("user logged in", "login", user.Login, "token", utils.MaskToken(sess.Token))

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypePlain, []byte(sess.Token))
	return resp
}

// Logout ends the session identified by the request token.
func (s *Service) Logout(req *httpd.Request) *httpd.Response {
	token := req.Token()
	sess := s.sessions.Get(token)
	if err := s.sessions.Remove(token); err != nil {
		return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "You are not logged in"}, req)
	}
	s.log.Info("user logged out", "login", sess.UserLogin, "token", utils.MaskToken(token))

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypePlain, []byte("You have been logged out"))
	return resp
}

// SessionInfo reports the session behind the request token.
func (s *Service) SessionInfo(req *httpd.Request) *httpd.Response {
	sess := s.sessions.Get(req.Token())
	if sess.IsEmpty() {
		return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "You are not authorized to access this information"}, req)
	}

	body, err := json.Marshal(map[string]any{
		"user_id":        sess.UserID,
		"user_login":     sess.UserLogin,
		"user_name":      sess.UserName,
		"login_time":     sess.LoginTime.Unix(),
		"is_db_token":    sess.IsDBToken,
		"valid_period":   int64(s.cfg.SessionDuration.Seconds()),
		"is_still_valid": s.sessions.IsValid(sess.Token),
	})
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the session")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}

// ValidateCredentials checks a login/password pair without creating a
// session.
func (s *Service) ValidateCredentials(req *httpd.Request) *httpd.Response {
	message := ""
	if _, err := s.db.Authenticate(req.Param("name"), req.Param("password")); err != nil {
		if !errors.Is(err, store.ErrInvalidCredentials) {
			s.log.Error("credential check failed", "error", err)
			return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not check the credentials")
		}
		message = "Invalid username or password"
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypePlain, []byte(message))
	return resp
}

// DBToken mints a session that only authorizes fetching database
// credentials.
func (s *Service) DBToken(req *httpd.Request) *httpd.Response {
	sess := s.sessions.Get(req.Token())
	if sess.IsEmpty() || sess.IsDBToken {
		return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "You are not authorized to access this information"}, req)
	}

	dbSession := s.sessions.Create(sess.UserID, sess.UserLogin, sess.UserName, true)
	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypePlain, []byte(dbSession.Token))
	return resp
}

// DBCredentials hands out the read-only database credentials. It requires a
// db-only token plus the shared secret configured on both sides.
func (s *Service) DBCredentials(req *httpd.Request) *httpd.Response {
	sess := s.sessions.Get(req.Token())
	if sess.IsEmpty() || !sess.IsDBToken {
		return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "You are not authorized to access this information"}, req)
	}
	if s.cfg.DBCredentialSecret == "" || req.Param("secret") != s.cfg.DBCredentialSecret {
		return httpd.ErrorResponseFrom(&httpd.AuthError{Message: "You are not authorized to access this information"}, req)
	}

	body, err := json.Marshal(map[string]string{
		"user":     s.cfg.DBCredentialsUser,
		"password": s.cfg.DBCredentialsPass,
	})
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the credentials")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}
