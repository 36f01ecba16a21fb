package session

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genoweb/genoserve/internal/models"
)

// URLManager owns all live temporary URLs keyed by token. File metadata is
// snapshotted at registration time so that lookups never touch the disk.
type URLManager struct {
	mu       sync.RWMutex
	urls     map[string]models.URLEntity
	lifetime time.Duration
}

// NewURLManager creates a temporary-URL manager with the given entry
// lifetime.
func NewURLManager(lifetime time.Duration) *URLManager {
	return &URLManager{
		urls:     make(map[string]models.URLEntity),
		lifetime: lifetime,
	}
}

// FileID derives the stable identifier of a file from its absolute path.
func FileID(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Create registers a temporary URL for the given file and returns the new
// entity. The file's size, existence and modification time are captured
// once, here.
func (m *URLManager) Create(path string) models.URLEntity {
	entity := models.URLEntity{
		Token:            strings.ReplaceAll(uuid.NewString(), "-", ""),
		Filename:         filepath.Base(path),
		Path:             filepath.Dir(path),
		FilenameWithPath: path,
		FileID:           FileID(path),
		Created:          time.Now(),
	}
	if info, err := os.Stat(path); err == nil {
		entity.Exists = true
		entity.Size = info.Size()
		entity.Modified = info.ModTime()
	}
	m.Add(entity)
	return entity
}

// Add registers an existing entity, e.g. one restored from the backup.
func (m *URLManager) Add(entity models.URLEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[entity.Token] = entity
}

// Get returns the entity for a token, or the empty sentinel when the token
// is unknown.
func (m *URLManager) Get(token string) models.URLEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.urls[token]
}

// Find returns the live entity pointing at the given file, if any. Used to
// reuse a still-valid URL instead of minting a second token for the same
// file.
func (m *URLManager) Find(path string) models.URLEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entity := range m.urls {
		if entity.FilenameWithPath == path && time.Since(entity.Created) <= m.lifetime {
			return entity
		}
	}
	return models.URLEntity{}
}

// Remove drops a temporary URL. Removing an unknown token is an error.
func (m *URLManager) Remove(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.urls[token]; !ok {
		return fmt.Errorf("URL %s does not exist", token)
	}
	delete(m.urls, token)
	return nil
}

// IsValid reports whether a token belongs to a live, unexpired URL.
func (m *URLManager) IsValid(token string) bool {
	entity := m.Get(token)
	return !entity.IsEmpty() && time.Since(entity.Created) <= m.lifetime
}

// Count returns the number of live URLs.
func (m *URLManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.urls)
}

// All returns a snapshot of every live URL.
func (m *URLManager) All() []models.URLEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.URLEntity, 0, len(m.urls))
	for _, entity := range m.urls {
		out = append(out, entity)
	}
	return out
}

// SweepExpired removes every expired URL and returns the evicted entries
// together with the surviving ones.
func (m *URLManager) SweepExpired() (evicted, survivors []models.URLEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, entity := range m.urls {
		if time.Since(entity.Created) > m.lifetime {
			evicted = append(evicted, entity)
			delete(m.urls, token)
			continue
		}
		survivors = append(survivors, entity)
	}
	return evicted, survivors
}
