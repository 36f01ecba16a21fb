package models

import "time"

// User is an account in the server's user table. Only the password hash is
// stored; plain passwords never leave the login handler.
type User struct {
	ID           int64
	Login        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// ClientInfo describes the latest available desktop client build, broadcast
// to clients via the current_client endpoint.
type ClientInfo struct {
	Version string    `json:"version"`
	Message string    `json:"message,omitempty"`
	Date    time.Time `json:"date,omitempty"`
}
