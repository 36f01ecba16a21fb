package store

import (
	"database/sql"
	"fmt"

	"github.com/genoweb/genoserve/internal/models"
)

// ReplaceSessions overwrites the session backup table with the given
// snapshot in one transaction.
func (db *DB) ReplaceSessions(sessions []models.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting session backup: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing session backup: %w", err)
	}

	stmt, err := tx.Prepare(db.rebind(
		"INSERT INTO sessions (string_id, user_id, user_login, user_name, login_time, is_for_db_only) VALUES (?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("preparing session insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sessions {
		if _, err := stmt.Exec(s.Token, s.UserID, s.UserLogin, s.UserName, s.LoginTime, s.IsDBToken); err != nil {
			return fmt.Errorf("writing session %s: %w", s.Token, err)
		}
	}
	return tx.Commit()
}

// LoadSessions reads the full session backup, used to restore state after a
// restart.
func (db *DB) LoadSessions() ([]models.Session, error) {
	rows, err := db.Query("SELECT string_id, user_id, user_login, user_name, login_time, is_for_db_only FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("reading session backup: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.Token, &s.UserID, &s.UserLogin, &s.UserName, &s.LoginTime, &s.IsDBToken); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ReplaceURLs overwrites the temporary-URL backup table with the given
// snapshot in one transaction.
func (db *DB) ReplaceURLs(urls []models.URLEntity) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting URL backup: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM urls"); err != nil {
		return fmt.Errorf("clearing URL backup: %w", err)
	}

	stmt, err := tx.Prepare(db.rebind(
		"INSERT INTO urls (string_id, filename, path, filename_with_path, file_id, size, file_exists, modified, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("preparing URL insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		var modified sql.NullTime
		if !u.Modified.IsZero() {
			modified = sql.NullTime{Time: u.Modified, Valid: true}
		}
		if _, err := stmt.Exec(u.Token, u.Filename, u.Path, u.FilenameWithPath, u.FileID,
			u.Size, u.Exists, modified, u.Created); err != nil {
			return fmt.Errorf("writing URL %s: %w", u.Token, err)
		}
	}
	return tx.Commit()
}

// LoadURLs reads the full temporary-URL backup, used to restore state after
// a restart.
func (db *DB) LoadURLs() ([]models.URLEntity, error) {
	rows, err := db.Query("SELECT string_id, filename, path, filename_with_path, file_id, size, file_exists, modified, created FROM urls")
	if err != nil {
		return nil, fmt.Errorf("reading URL backup: %w", err)
	}
	defer rows.Close()

	var urls []models.URLEntity
	for rows.Next() {
		var (
			u        models.URLEntity
			modified sql.NullTime
		)
		if err := rows.Scan(&u.Token, &u.Filename, &u.Path, &u.FilenameWithPath, &u.FileID,
			&u.Size, &u.Exists, &modified, &u.Created); err != nil {
			return nil, fmt.Errorf("scanning URL row: %w", err)
		}
		if modified.Valid {
			u.Modified = modified.Time
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
