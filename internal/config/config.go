package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	FrontendURL string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Auth0Domain/Auth0Audience verify inbound bearer tokens; the Mgmt*
	// credentials drive administrative calls (block, email, password,
	// delete) against the identity provider.
	Auth0Domain           string
	Auth0Audience         string
	Auth0MgmtClientID     string
	Auth0MgmtClientSecret string
	Auth0MgmtAudience     string

	// ContentCheckURL points at the external moderation scoring service.
	// Empty means the local heuristic is used directly.
	ContentCheckURL string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "4000"),
		Environment: getEnv("ENVIRONMENT", "development"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),

		Auth0Domain:           getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:         getEnv("AUTH0_AUDIENCE", ""),
		Auth0MgmtClientID:     getEnv("AUTH0_MGMT_CLIENT_ID", ""),
		Auth0MgmtClientSecret: getEnv("AUTH0_MGMT_CLIENT_SECRET", ""),
		Auth0MgmtAudience:     getEnv("AUTH0_MGMT_AUDIENCE", ""),

		ContentCheckURL: getEnv("CONTENT_CHECK_URL", ""),
	}

	if cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("config: DB_USER and DB_NAME are required")
	}
	if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
		return nil, fmt.Errorf("config: AUTH0_DOMAIN and AUTH0_AUDIENCE are required")
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// AllowedOrigins returns the CORS origin allowlist: the configured
// frontend plus local dev servers.
func (c *Config) AllowedOrigins() []string {
	origins := []string{
		"http://localhost:5173",
		"http://localhost:3000",
	}
	if c.FrontendURL != "" {
		origins = append([]string{strings.TrimSuffix(c.FrontendURL, "/")}, origins...)
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
