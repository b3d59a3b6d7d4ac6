package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dujjonku-map/server/src/server/forge"
)

type Config struct {
	Port string

	// Snapshot source. DataURL wins; otherwise the GitHub Pages copy of
	// GitHubUsername/RepoName; otherwise the embedded sample served locally.
	DataURL        string
	GitHubUsername string
	RepoName       string

	// Session timing
	RefreshInterval   time.Duration
	RevealDelay       time.Duration
	ListAdDelay       time.Duration
	AdPreloadInterval time.Duration
	NearbyLimit       int
	SessionTTL        time.Duration

	// Ads
	AdGatewayURL string
	AdGroupID    string

	// Map SDK
	NaverClientID string
	MapScriptURL  string

	// Store backend: "memory", "postgres", or "sqlite"
	StoreBackend string
	DatabaseURL  string
	DatabasePath string // SQLite file path

	// S3-compatible object storage; ArchiveDir is used when no endpoint is set
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	ArchiveDir  string

	// Auth
	AuthEnabled  bool
	AuthIssuer   string
	AuthAudience string

	// CORS
	CORSOrigins []string

	// Webhooks
	WebhookForge  string
	WebhookSecret string
	PagesBranch   string

	// Logging
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first, and CONFIG_FILE may name a YAML file of the same
// keys; real environment variables take precedence over both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	e, err := newEnv(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port: e.orDefault("PORT", "8080"),

		DataURL:        e.get("DATA_URL"),
		GitHubUsername: e.get("GITHUB_USERNAME"),
		RepoName:       e.orDefault("REPO_NAME", "dujjonku-app"),

		RefreshInterval:   e.duration("REFRESH_INTERVAL", 10*time.Minute),
		RevealDelay:       e.duration("REVEAL_DELAY", 2*time.Second),
		ListAdDelay:       e.duration("LIST_AD_DELAY", 1*time.Second),
		AdPreloadInterval: e.duration("AD_PRELOAD_INTERVAL", 5*time.Minute),
		NearbyLimit:       e.int("NEARBY_LIMIT", 3),
		SessionTTL:        e.duration("SESSION_TTL", 30*time.Minute),

		AdGatewayURL: e.get("AD_GATEWAY_URL"),
		AdGroupID:    e.orDefault("AD_GROUP_ID", "ait-ad-test-interstitial-id"),

		NaverClientID: e.get("NAVER_CLIENT_ID"),
		MapScriptURL:  e.get("MAP_SCRIPT_URL"),

		StoreBackend: e.orDefault("STORE_BACKEND", "memory"),
		DatabaseURL:  e.get("DATABASE_URL"),
		DatabasePath: e.orDefault("DATABASE_PATH", "dujjonku.db"),

		S3Endpoint:  e.get("S3_ENDPOINT"),
		S3Bucket:    e.get("S3_BUCKET"),
		S3Region:    e.orDefault("S3_REGION", "us-east-1"),
		S3AccessKey: e.get("S3_ACCESS_KEY"),
		S3SecretKey: e.get("S3_SECRET_KEY"),
		S3UseSSL:    e.get("S3_USE_SSL") != "false",
		ArchiveDir:  e.get("ARCHIVE_DIR"),

		AuthEnabled:  e.get("AUTH_ENABLED") == "true",
		AuthIssuer:   e.get("AUTH_ISSUER"),
		AuthAudience: e.get("AUTH_AUDIENCE"),

		CORSOrigins: parseCORSOrigins(e.get("CORS_ORIGINS")),

		WebhookForge:  e.orDefault("WEBHOOK_FORGE", "github"),
		WebhookSecret: e.get("WEBHOOK_SECRET"),
		PagesBranch:   e.orDefault("PAGES_BRANCH", "main"),

		LogLevel: e.orDefault("LOG_LEVEL", "info"),
	}

	if cfg.DataURL == "" {
		cfg.DataURL = cfg.defaultDataURL()
	}
	if cfg.NearbyLimit <= 0 {
		e.errs = append(e.errs, fmt.Errorf("NEARBY_LIMIT must be positive, got %d", cfg.NearbyLimit))
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) hasGitHubPages() bool {
	return c.GitHubUsername != "" && c.GitHubUsername != "YOUR_USERNAME"
}

func (c *Config) defaultDataURL() string {
	if c.hasGitHubPages() {
		return forge.PagesURL(c.GitHubUsername, c.RepoName, "stores.json")
	}
	return "http://localhost:" + c.Port + "/stores.json"
}

// Project is the "owner/repo" path of the snapshot repository, if known.
func (c *Config) Project() string {
	if !c.hasGitHubPages() {
		return ""
	}
	return c.GitHubUsername + "/" + c.RepoName
}

// env resolves keys from the process environment, then the optional file.
type env struct {
	file map[string]string
	errs []error
}

func newEnv(path string) (*env, error) {
	e := &env{file: map[string]string{}}
	if path == "" {
		return e, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	for k, v := range values {
		if v == nil {
			continue
		}
		e.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return e, nil
}

func (e *env) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

func (e *env) orDefault(key, fallback string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return fallback
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (e *env) int(key string, fallback int) int {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func parseCORSOrigins(s string) []string {
	if s == "" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			origins = append(origins, t)
		}
	}
	return origins
}
