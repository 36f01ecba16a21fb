package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/genoweb/genoserve/internal/models"
)

func TestManagerCreate(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create(42, "ahmustermann", "Alex Mustermann", false)

	if len(s.Token) != 36 {
		t.Errorf("token length = %d, want 36", len(s.Token))
	}
	if strings.Count(s.Token, "-") != 4 {
		t.Errorf("token %q must contain 4 hyphens", s.Token)
	}
	if s.UserID != 42 || s.UserLogin != "ahmustermann" {
		t.Errorf("unexpected session identity: %+v", s)
	}
	if s.LoginTime.IsZero() {
		t.Error("LoginTime must be set")
	}

	got := m.Get(s.Token)
	if got.IsEmpty() || got.Token != s.Token {
		t.Errorf("Get() = %+v, want the created session", got)
	}
}

func TestManagerGetUnknownToken(t *testing.T) {
	m := NewManager(time.Hour)
	if got := m.Get("no-such-token"); !got.IsEmpty() {
		t.Errorf("Get() = %+v, want the empty sentinel", got)
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create(1, "user", "User", false)

	if err := m.Remove(s.Token); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if err := m.Remove(s.Token); err == nil {
		t.Error("removing an already removed session must fail")
	}
}

func TestManagerValidity(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	s := m.Create(1, "user", "User", false)

	if !m.IsValid(s.Token) {
		t.Error("fresh session must be valid")
	}
	if m.IsValid("unknown") {
		t.Error("unknown token must be invalid")
	}

	m.Add(models.Session{
		Token:     "expired-token",
		UserID:    2,
		LoginTime: time.Now().Add(-time.Second),
	})
	if m.IsValid("expired-token") {
		t.Error("expired session must be invalid")
	}
}

func TestManagerSweepExpired(t *testing.T) {
	m := NewManager(time.Hour)
	live := m.Create(1, "live", "Live", false)
	m.Add(models.Session{Token: "stale-1", UserID: 2, LoginTime: time.Now().Add(-2 * time.Hour)})
	m.Add(models.Session{Token: "stale-2", UserID: 3, LoginTime: time.Now().Add(-3 * time.Hour)})

	evicted, survivors := m.SweepExpired()
	if len(evicted) != 2 {
		t.Errorf("evicted %d sessions, want 2", len(evicted))
	}
	if len(survivors) != 1 || survivors[0].Token != live.Token {
		t.Errorf("survivors = %+v, want only the live session", survivors)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestURLManagerCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bam")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewURLManager(time.Hour)
	entity := m.Create(path)

	if entity.Token == "" || strings.Contains(entity.Token, "-") {
		t.Errorf("unexpected token %q", entity.Token)
	}
	if entity.Filename != "sample.bam" {
		t.Errorf("Filename = %q", entity.Filename)
	}
	if entity.Path != dir {
		t.Errorf("Path = %q, want %q", entity.Path, dir)
	}
	if !entity.Exists || entity.Size != 2048 {
		t.Errorf("snapshot = exists %v size %d, want exists with 2048 bytes", entity.Exists, entity.Size)
	}
	if entity.FileID == "" {
		t.Error("FileID must be derived at creation")
	}

	got := m.Get(entity.Token)
	if got.IsEmpty() || got.FilenameWithPath != path {
		t.Errorf("Get() = %+v", got)
	}
}

func TestURLManagerSnapshotIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.vcf")
	if err := os.WriteFile(path, []byte("before"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewURLManager(time.Hour)
	entity := m.Create(path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	got := m.Get(entity.Token)
	if !got.Exists || got.Size != 6 {
		t.Errorf("lookup must return the creation-time snapshot, got %+v", got)
	}
}

func TestURLManagerFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.bed")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewURLManager(time.Hour)
	created := m.Create(path)

	if found := m.Find(path); found.Token != created.Token {
		t.Errorf("Find() = %+v, want the registered entity", found)
	}
	if found := m.Find("/elsewhere/sample.bed"); !found.IsEmpty() {
		t.Errorf("Find() for unknown path = %+v, want sentinel", found)
	}
}

func TestURLManagerRemoveAndSweep(t *testing.T) {
	m := NewURLManager(time.Hour)
	entity := m.Create(filepath.Join(t.TempDir(), "missing.bam"))

	if err := m.Remove(entity.Token); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if err := m.Remove(entity.Token); err == nil {
		t.Error("removing an already removed URL must fail")
	}

	m.Add(models.URLEntity{Token: "stale", FilenameWithPath: "/old", Created: time.Now().Add(-2 * time.Hour)})
	live := m.Create(filepath.Join(t.TempDir(), "live.bam"))

	evicted, survivors := m.SweepExpired()
	if len(evicted) != 1 || evicted[0].Token != "stale" {
		t.Errorf("evicted = %+v", evicted)
	}
	if len(survivors) != 1 || survivors[0].Token != live.Token {
		t.Errorf("survivors = %+v", survivors)
	}
}

func TestLocationCache(t *testing.T) {
	cache := NewLocationCache(time.Hour)
	key := LocationKey{Sample: "NA12878_01", Type: "BAM"}

	if _, ok := cache.Get(key); ok {
		t.Error("empty cache must miss")
	}

	locations := []models.FileLocation{{ID: "NA12878_01", Type: "BAM", Filename: "/data/NA12878_01.bam", Exists: true}}
	cache.Put(key, locations)

	got, ok := cache.Get(key)
	if !ok || len(got) != 1 || got[0].Filename != locations[0].Filename {
		t.Errorf("Get() = %+v, %v", got, ok)
	}

	other := LocationKey{Sample: "NA12878_01", Type: "BAM", Multiple: true}
	if _, ok := cache.Get(other); ok {
		t.Error("keys with different flags must not collide")
	}
}

func TestLocationCacheSweep(t *testing.T) {
	cache := NewLocationCache(time.Nanosecond)
	cache.Put(LocationKey{Sample: "s1", Type: "BAM"}, nil)
	time.Sleep(time.Millisecond)

	if removed := cache.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
}
