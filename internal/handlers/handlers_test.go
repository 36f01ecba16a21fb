package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/genoweb/genoserve/internal/config"
	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/metrics"
	"github.com/genoweb/genoserve/internal/session"
	"github.com/genoweb/genoserve/internal/store"
)

type testEnv struct {
	svc      *Service
	cfg      *config.Config
	db       *store.DB
	sessions *session.Manager
	urls     *session.URLManager
	registry *httpd.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		ServerRoot:          t.TempDir(),
		SessionDuration:     time.Hour,
		URLLifetime:         time.Hour,
		AllowFolderListing:  true,
		AllowNotifyingUsers: true,
		DBCredentialSecret:  "shared-secret",
		DBCredentialsUser:   "dbreader",
		DBCredentialsPass:   "dbpass",
		ClientInfoFile:      filepath.Join(t.TempDir(), "ClientInfo.json"),
		NotificationFile:    filepath.Join(t.TempDir(), "Notification.json"),
	}

	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.CreateUser("ahmustermann", "Alex Mustermann", "secret", "user"); err != nil {
		t.Fatal(err)
	}

	sessions := session.NewManager(cfg.SessionDuration)
	urls := session.NewURLManager(cfg.URLLifetime)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := New(cfg, db, sessions, urls, metrics.New(), log, nil)
	registry := httpd.NewRegistry()
	svc.Register(registry)

	return &testEnv{svc: svc, cfg: cfg, db: db, sessions: sessions, urls: urls, registry: registry}
}

func request(t *testing.T, raw string) *httpd.Request {
	t.Helper()
	req, err := httpd.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return req
}

func payload(t *testing.T, resp *httpd.Response) string {
	t.Helper()
	body, ok := resp.Payload()
	if !ok {
		t.Fatal("response has no payload")
	}
	return string(body)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Login(request(t,
		"POST /v1/login HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nname=ahmustermann&password=secret"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}

	token := payload(t, resp)
	if len(token) != 36 || strings.Count(token, "-") != 4 {
		t.Errorf("token %q is not a UUID", token)
	}
	if !env.sessions.IsValid(token) {
		t.Error("login must register a valid session")
	}
}

func TestLoginBadPassword(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Login(request(t,
		"POST /v1/login HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nname=ahmustermann&password=wrong"))
	if resp.Status != httpd.StatusForbidden {
		t.Errorf("Status = %d, want 403", resp.Status)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	sess := env.sessions.Create(1, "ahmustermann", "Alex Mustermann", false)

	resp := env.svc.Logout(request(t, "POST /v1/logout?token="+sess.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if env.sessions.IsValid(sess.Token) {
		t.Error("logout must remove the session")
	}

	resp = env.svc.Logout(request(t, "POST /v1/logout?token="+sess.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusForbidden {
		t.Errorf("second logout Status = %d, want 403", resp.Status)
	}
}

func TestSessionInfo(t *testing.T) {
	env := newTestEnv(t)
	sess := env.sessions.Create(7, "ahmustermann", "Alex Mustermann", false)

	resp := env.svc.SessionInfo(request(t, "GET /v1/session?token="+sess.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(payload(t, resp)), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info["user_login"] != "ahmustermann" {
		t.Errorf("user_login = %v", info["user_login"])
	}
	if info["is_still_valid"] != true {
		t.Errorf("is_still_valid = %v, want true", info["is_still_valid"])
	}
}

func TestValidateCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.ValidateCredentials(request(t,
		"POST /v1/validate_credentials HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nname=ahmustermann&password=secret"))
	if resp.Status != httpd.StatusOK || payload(t, resp) != "" {
		t.Errorf("valid credentials: status %d payload %q, want 200 with empty message", resp.Status, payload(t, resp))
	}

	resp = env.svc.ValidateCredentials(request(t,
		"POST /v1/validate_credentials HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nname=ahmustermann&password=nope"))
	if resp.Status != httpd.StatusOK || payload(t, resp) != "Invalid username or password" {
		t.Errorf("invalid credentials: status %d payload %q", resp.Status, payload(t, resp))
	}
}

func TestDBTokenAndCredentials(t *testing.T) {
	env := newTestEnv(t)
	sess := env.sessions.Create(7, "ahmustermann", "Alex Mustermann", false)

	resp := env.svc.DBToken(request(t, "POST /v1/db_token?token="+sess.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("DBToken status = %d, want 200", resp.Status)
	}
	dbToken := payload(t, resp)
	if !env.sessions.Get(dbToken).IsDBToken {
		t.Error("minted session must be marked db-only")
	}

	// regular tokens must not unlock the credentials
	resp = env.svc.DBCredentials(request(t,
		"GET /v1/db_credentials?token="+sess.Token+"&secret=shared-secret HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusForbidden {
		t.Errorf("regular token status = %d, want 403", resp.Status)
	}

	// wrong secret
	resp = env.svc.DBCredentials(request(t,
		"GET /v1/db_credentials?token="+dbToken+"&secret=wrong HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusForbidden {
		t.Errorf("wrong secret status = %d, want 403", resp.Status)
	}

	resp = env.svc.DBCredentials(request(t,
		"GET /v1/db_credentials?token="+dbToken+"&secret=shared-secret HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("DBCredentials status = %d, want 200", resp.Status)
	}
	var creds map[string]string
	if err := json.Unmarshal([]byte(payload(t, resp)), &creds); err != nil {
		t.Fatal(err)
	}
	if creds["user"] != "dbreader" || creds["password"] != "dbpass" {
		t.Errorf("creds = %v", creds)
	}
}

func TestStaticServesFile(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.cfg.ServerRoot, "report.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := env.svc.Static(request(t, "GET /v1/static/report.txt HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK || !resp.IsStream {
		t.Errorf("status %d stream %v, want 200 stream", resp.Status, resp.IsStream)
	}
	if resp.FileSize != 5 {
		t.Errorf("FileSize = %d, want 5", resp.FileSize)
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Static(request(t, "GET /v1/static/..%2F..%2Fetc%2Fpasswd HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.Status)
	}
}

func TestStaticFolderListing(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.cfg.ServerRoot, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := env.svc.Static(request(t, "GET /v1/static HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if !strings.Contains(payload(t, resp), "a.txt") {
		t.Error("listing must include the file")
	}

	env.cfg.AllowFolderListing = false
	resp = env.svc.Static(request(t, "GET /v1/static HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusForbidden {
		t.Errorf("disabled listing Status = %d, want 403", resp.Status)
	}
}

func TestTempServesSnapshotFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "sample.bam")
	if err := os.WriteFile(path, make([]byte, 256), 0o644); err != nil {
		t.Fatal(err)
	}
	entity := env.urls.Create(path)

	resp := env.svc.Temp(request(t, "GET /v1/temp/"+entity.Token+"/sample.bam HTTP/1.1\r\n\r\n"))
	// the token points at a file, so the extra segment is rejected
	if resp.Status != httpd.StatusNotFound {
		t.Errorf("extra segment on file token Status = %d, want 404", resp.Status)
	}

	resp = env.svc.Temp(request(t, "GET /v1/temp/"+entity.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK || !resp.IsStream {
		t.Errorf("status %d stream %v, want 200 stream", resp.Status, resp.IsStream)
	}
}

func TestTempUnknownOrExpired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Temp(request(t, "GET /v1/temp/deadbeef HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusNotFound {
		t.Errorf("unknown token Status = %d, want 404", resp.Status)
	}

	path := filepath.Join(t.TempDir(), "old.bam")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	entity := env.urls.Create(path)
	env.cfg.URLLifetime = time.Nanosecond
	time.Sleep(time.Millisecond)

	resp = env.svc.Temp(request(t, "GET /v1/temp/"+entity.Token+" HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusNotFound {
		t.Errorf("expired token Status = %d, want 404", resp.Status)
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	uploadDir := t.TempDir()
	entity := env.urls.Create(uploadDir)

	boundary := "----upload"
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"dir_token\"\r\n\r\n")
	b.WriteString(entity.Token + "\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"notes.txt\"\r\n")
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	b.WriteString("uploaded content\r\n")
	b.WriteString("--" + boundary + "--\r\n")

	raw := "POST /v1/upload HTTP/1.1\r\n" +
		"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
		"\r\n" + b.String()

	resp := env.svc.Upload(request(t, raw))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", resp.Status, payload(t, resp))
	}

	stored, err := os.ReadFile(filepath.Join(uploadDir, "notes.txt"))
	if err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if string(stored) != "uploaded content" {
		t.Errorf("stored content = %q", stored)
	}
}

func TestUploadRejectsFileTarget(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "not-a-dir.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	entity := env.urls.Create(path)

	raw := "POST /v1/upload?dir_token=" + entity.Token + " HTTP/1.1\r\n\r\n"
	resp := env.svc.Upload(request(t, raw))
	if resp.Status != httpd.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.Status)
	}
}

func TestFileLocation(t *testing.T) {
	env := newTestEnv(t)
	sampleDir := filepath.Join(t.TempDir(), "NA12878_01")
	if err := os.MkdirAll(sampleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"NA12878_01.bam", "NA12878_01.vcf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(sampleDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	entity := env.urls.Create(sampleDir)

	resp := env.svc.FileLocation(request(t,
		"GET /v1/file_location?ps_url_id="+entity.Token+"&type=BAM HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}

	var locations []struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Filename string `json:"filename"`
		Exists   bool   `json:"exists"`
	}
	if err := json.Unmarshal([]byte(payload(t, resp)), &locations); err != nil {
		t.Fatal(err)
	}
	if len(locations) != 1 {
		t.Fatalf("locations = %+v, want exactly one BAM", locations)
	}
	loc := locations[0]
	if loc.ID != "NA12878_01" || loc.Type != "BAM" || !loc.Exists {
		t.Errorf("location = %+v", loc)
	}
	if !strings.HasPrefix(loc.Filename, "temp/") {
		t.Errorf("Filename = %q, want a temporary URL", loc.Filename)
	}
}

func TestFileLocationUnknownType(t *testing.T) {
	env := newTestEnv(t)
	sampleDir := t.TempDir()
	entity := env.urls.Create(sampleDir)

	resp := env.svc.FileLocation(request(t,
		"GET /v1/file_location?ps_url_id="+entity.Token+"&type=WEIRD HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.Status)
	}
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Info(request(t, "GET /v1/info HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(payload(t, resp)), &info); err != nil {
		t.Fatal(err)
	}
	if info["name"] != "genoserve" || info["api_version"] != "v1" {
		t.Errorf("info = %v", info)
	}
}

func TestHelp(t *testing.T) {
	env := newTestEnv(t)

	resp := env.svc.Help(request(t, "GET /v1/help HTTP/1.1\r\n\r\n"))
	if !strings.Contains(payload(t, resp), "login") {
		t.Error("help index must list the login endpoint")
	}

	resp = env.svc.Help(request(t, "GET /v1/help/login HTTP/1.1\r\n\r\n"))
	if !strings.Contains(payload(t, resp), "password") {
		t.Error("endpoint help must list its parameters")
	}

	resp = env.svc.Help(request(t, "GET /v1/help/unknown_route HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusNotFound {
		t.Errorf("unknown route Status = %d, want 404", resp.Status)
	}
}

func TestNotification(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.cfg.NotificationFile,
		[]byte(`{"message":"maintenance tonight"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := env.svc.Notification(request(t, "GET /v1/notification HTTP/1.1\r\n\r\n"))
	if payload(t, resp) != "maintenance tonight" {
		t.Errorf("payload = %q", payload(t, resp))
	}

	env.cfg.AllowNotifyingUsers = false
	resp = env.svc.Notification(request(t, "GET /v1/notification HTTP/1.1\r\n\r\n"))
	if payload(t, resp) != "" {
		t.Errorf("disabled notifications payload = %q, want empty", payload(t, resp))
	}
}

func TestCurrentClient(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.cfg.ClientInfoFile,
		[]byte(`{"version":"2.0.1","message":"please update"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := env.svc.CurrentClient(request(t, "GET /v1/current_client HTTP/1.1\r\n\r\n"))
	var info map[string]any
	if err := json.Unmarshal([]byte(payload(t, resp)), &info); err != nil {
		t.Fatal(err)
	}
	if info["version"] != "2.0.1" {
		t.Errorf("version = %v", info["version"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.Create(1, "a", "A", false)

	resp := env.svc.Metrics(request(t, "GET /v1/metrics HTTP/1.1\r\n\r\n"))
	if resp.Status != httpd.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if !strings.Contains(payload(t, resp), "genoserve_active_sessions 1") {
		t.Error("metrics must report the session gauge")
	}
}

func TestAuthenticatorMapping(t *testing.T) {
	env := newTestEnv(t)
	sess := env.sessions.Create(1, "ahmustermann", "Alex Mustermann", false)

	if err := env.svc.ValidateToken(sess.Token); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := env.svc.ValidateToken("bogus"); err == nil {
		t.Error("bogus token accepted")
	}
	if err := env.svc.ValidateBasic("ahmustermann", "secret"); err != nil {
		t.Errorf("valid basic credentials rejected: %v", err)
	}
	err := env.svc.ValidateBasic("ahmustermann", "wrong")
	if err == nil {
		t.Fatal("wrong password accepted")
	}
	if httpd.StatusFor(err) != httpd.StatusUnauthorized {
		t.Errorf("basic failure status = %d, want 401", httpd.StatusFor(err))
	}
}
