package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServerHost          string
	HTTPSPort           string
	HTTPPort            string // optional second plaintext listener, never a TLS fallback
	SSLCertificate      string
	SSLKey              string
	SSLCertificateChain string
	ServerRoot          string
	SessionDuration     time.Duration
	URLLifetime         time.Duration
	AllowFolderListing  bool
	AllowNotifyingUsers bool
	DBDriver            string // "sqlite" or "postgres"
	DBPath              string
	DBDSN               string
	LogDir              string
	AdminUsername       string
	AdminPassword       string
	DBCredentialSecret  string // shared secret for the db_credentials exchange
	DBCredentialsUser   string
	DBCredentialsPass   string
	ClientInfoFile      string
	NotificationFile    string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		ServerHost:          getEnv("SERVER_HOST", "localhost"),
		HTTPSPort:           getEnv("HTTPS_PORT", "8443"),
		HTTPPort:            getEnv("HTTP_PORT", ""),
		SSLCertificate:      getEnv("SSL_CERTIFICATE", ""),
		SSLKey:              getEnv("SSL_KEY", ""),
		SSLCertificateChain: getEnv("SSL_CERTIFICATE_CHAIN", ""),
		ServerRoot:          getEnv("SERVER_ROOT", "./assets"),
		SessionDuration:     time.Duration(getEnvInt("SESSION_DURATION", 86400)) * time.Second,
		URLLifetime:         time.Duration(getEnvInt("URL_LIFETIME", 600)) * time.Second,
		AllowFolderListing:  getEnvBool("ALLOW_FOLDER_LISTING", false),
		AllowNotifyingUsers: getEnvBool("ALLOW_NOTIFYING_USERS", false),
		DBDriver:            getEnv("DB_DRIVER", "sqlite"),
		DBPath:              getEnv("DB_PATH", "./genoserve.db"),
		DBDSN:               getEnv("DB_DSN", ""),
		LogDir:              getEnv("LOG_DIR", ""),
		AdminUsername:       getEnv("ADMIN_USERNAME", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		DBCredentialSecret:  getEnv("DB_CREDENTIAL_SECRET", ""),
		DBCredentialsUser:   getEnv("DB_CREDENTIALS_USER", ""),
		DBCredentialsPass:   getEnv("DB_CREDENTIALS_PASS", ""),
		ClientInfoFile:      getEnv("CLIENT_INFO_FILE", "./ClientInfo.json"),
		NotificationFile:    getEnv("NOTIFICATION_FILE", "./Notification.json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.HTTPSPort == "" && c.HTTPPort == "" {
		return fmt.Errorf("at least one of HTTPS_PORT and HTTP_PORT must be set")
	}

	if c.HTTPSPort != "" {
		if _, err := strconv.Atoi(c.HTTPSPort); err != nil {
			return fmt.Errorf("HTTPS_PORT must be numeric, got %q", c.HTTPSPort)
		}
	}

	if c.HTTPPort != "" {
		if _, err := strconv.Atoi(c.HTTPPort); err != nil {
			return fmt.Errorf("HTTP_PORT must be numeric, got %q", c.HTTPPort)
		}
	}

	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive, got %s", c.SessionDuration)
	}

	if c.URLLifetime <= 0 {
		return fmt.Errorf("URL_LIFETIME must be positive, got %s", c.URLLifetime)
	}

	if c.ServerRoot == "" {
		return fmt.Errorf("SERVER_ROOT cannot be empty")
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when DB_DRIVER is sqlite")
		}
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN cannot be empty when DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
