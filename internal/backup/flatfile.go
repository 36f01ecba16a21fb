package backup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/genoweb/genoserve/internal/models"
)

const (
	sessionsFile = "sessions.tsv"
	urlsFile     = "urls.tsv"
)

// FlatFile writes snapshots as tab-separated files in a directory. It is
// the fallback used when the database is unreachable, and a Source for
// restores.
type FlatFile struct {
	Dir string
}

// NewFlatFile creates the directory when needed.
func NewFlatFile(dir string) (*FlatFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory %s: %w", dir, err)
	}
	return &FlatFile{Dir: dir}, nil
}

// writeAtomic writes lines to a temp file and renames it into place, so a
// crash mid-write never corrupts the previous snapshot.
func (f *FlatFile) writeAtomic(name string, lines []string) error {
	path := filepath.Join(f.Dir, name)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			file.Close()
			os.Remove(tmp)
			return fmt.Errorf("writing %s: %w", tmp, err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("flushing %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (f *FlatFile) readLines(name string) ([]string, error) {
	file, err := os.Open(filepath.Join(f.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ReplaceSessions writes the session snapshot.
func (f *FlatFile) ReplaceSessions(sessions []models.Session) error {
	lines := make([]string, 0, len(sessions))
	for _, s := range sessions {
		lines = append(lines, strings.Join([]string{
			s.Token,
			strconv.FormatInt(s.UserID, 10),
			s.UserLogin,
			s.UserName,
			strconv.FormatInt(s.LoginTime.Unix(), 10),
			strconv.FormatBool(s.IsDBToken),
		}, "\t"))
	}
	return f.writeAtomic(sessionsFile, lines)
}

// LoadSessions reads the session snapshot. Malformed lines are skipped.
func (f *FlatFile) LoadSessions() ([]models.Session, error) {
	lines, err := f.readLines(sessionsFile)
	if err != nil {
		return nil, fmt.Errorf("reading session backup: %w", err)
	}

	var sessions []models.Session
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			continue
		}
		userID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		loginTime, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		sessions = append(sessions, models.Session{
			Token:     fields[0],
			UserID:    userID,
			UserLogin: fields[2],
			UserName:  fields[3],
			LoginTime: time.Unix(loginTime, 0),
			IsDBToken: fields[5] == "true",
		})
	}
	return sessions, nil
}

// ReplaceURLs writes the temporary-URL snapshot.
func (f *FlatFile) ReplaceURLs(urls []models.URLEntity) error {
	lines := make([]string, 0, len(urls))
	for _, u := range urls {
		var modified int64
		if !u.Modified.IsZero() {
			modified = u.Modified.Unix()
		}
		lines = append(lines, strings.Join([]string{
			u.Token,
			u.Filename,
			u.Path,
			u.FilenameWithPath,
			u.FileID,
			strconv.FormatInt(u.Size, 10),
			strconv.FormatBool(u.Exists),
			strconv.FormatInt(modified, 10),
			strconv.FormatInt(u.Created.Unix(), 10),
		}, "\t"))
	}
	return f.writeAtomic(urlsFile, lines)
}

// LoadURLs reads the temporary-URL snapshot. Malformed lines are skipped.
func (f *FlatFile) LoadURLs() ([]models.URLEntity, error) {
	lines, err := f.readLines(urlsFile)
	if err != nil {
		return nil, fmt.Errorf("reading URL backup: %w", err)
	}

	var urls []models.URLEntity
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 9 {
			continue
		}
		size, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			continue
		}
		modified, err := strconv.ParseInt(fields[7], 10, 64)
		if err != nil {
			continue
		}
		created, err := strconv.ParseInt(fields[8], 10, 64)
		if err != nil {
			continue
		}
		entity := models.URLEntity{
			Token:            fields[0],
			Filename:         fields[1],
			Path:             fields[2],
			FilenameWithPath: fields[3],
			FileID:           fields[4],
			Size:             size,
			Exists:           fields[6] == "true",
			Created:          time.Unix(created, 0),
		}
		if modified != 0 {
			entity.Modified = time.Unix(modified, 0)
		}
		urls = append(urls, entity)
	}
	return urls, nil
}
