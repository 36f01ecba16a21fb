package models

import "time"

// Session represents an authenticated user session identified by an opaque
// token. IsDBToken marks sessions minted only to authorize fetching database
// credentials, as opposed to regular user sessions.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	UserLogin string    `json:"user_login"`
	UserName  string    `json:"user_name"`
	LoginTime time.Time `json:"login_time"`
	IsDBToken bool      `json:"is_db_token"`
}

// IsEmpty reports whether the session is the zero-valued sentinel returned
// for unknown tokens.
func (s Session) IsEmpty() bool {
	return s.Token == "" && s.UserID == 0 && s.LoginTime.IsZero()
}

// URLEntity resolves an opaque temporary-URL token to a real file on disk.
// Size, Exists and Modified are snapshotted when the entity is created; the
// file is not re-statted on lookup.
type URLEntity struct {
	Token            string    `json:"token"`
	Filename         string    `json:"filename"`
	Path             string    `json:"path"`
	FilenameWithPath string    `json:"filename_with_path"`
	FileID           string    `json:"file_id"`
	Size             int64     `json:"size"`
	Exists           bool      `json:"exists"`
	Modified         time.Time `json:"modified"`
	Created          time.Time `json:"created"`
}

// IsEmpty reports whether the entity is the zero-valued sentinel returned
// for unknown tokens.
func (u URLEntity) IsEmpty() bool {
	return u.Token == "" && u.FilenameWithPath == ""
}
