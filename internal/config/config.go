package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StoreNotion = "notion"
	StoreRedis  = "redis"
	StoreMemory = "memory"

	// DevelopmentLimit caps the registry list in development runs.
	DevelopmentLimit = 10
)

type Config struct {
	Env string // "production" | "development"

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional rotated log file

	Limit       int    // keep the first N registry entries, 0 = all
	SkipArchive bool   // report orphans without archiving them
	SeedFile    string // optional YAML of extra plugins
	Store       string // "notion" | "redis" | "memory"

	// Notion
	NotionToken      string
	NotionDatabaseID string
	NotionAPIURL     string
	NotionPageSize   int

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisPrefix         string        // key namespace
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)

	// Registry
	GitHubToken      string
	GitHubAPIURL     string
	GitHubRawURL     string
	PluginListURL    string
	ManifestBranches []string
	CheckArchived    bool
	HTTPTimeout      time.Duration
}

// Load reads the configuration from the environment, falling back to the
// dotenv file envFile. Environment variables win over the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if !missing || envFile != DefaultEnvFile {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		}
	}

	e := &env{v: v}
	cfg := &Config{
		Env: strings.ToLower(e.getenv("CATALOG_ENV", EnvProduction)),

		// Logging
		LogLevel:  e.getenv("CATALOG_LOG_LEVEL", "info"),
		PrettyLog: e.mustBool("CATALOG_PRETTY_LOG", true),
		LogFile:   e.getenv("CATALOG_LOG_FILE", ""),

		// Run
		Limit:       e.getenvInt("CATALOG_LIMIT", 0),
		SkipArchive: e.mustBool("CATALOG_SKIP_ARCHIVE", false),
		SeedFile:    e.getenv("CATALOG_SEED_FILE", ""),
		Store:       strings.ToLower(e.getenv("CATALOG_STORE", StoreNotion)),

		// Notion
		NotionToken:      e.getenv("NOTION_TOKEN", ""),
		NotionDatabaseID: e.getenv("NOTION_DATABASE_ID", ""),
		NotionAPIURL:     e.getenv("NOTION_API_URL", "https://api.notion.com/v1"),
		NotionPageSize:   e.getenvInt("NOTION_PAGE_SIZE", 100),

		// Redis
		RedisAddr:           e.getenv("CATALOG_REDIS_ADDR", ""),
		RedisUser:           e.getenv("CATALOG_REDIS_USERNAME", ""),
		RedisPassword:       e.getenv("CATALOG_REDIS_PASSWORD", ""),
		RedisDB:             e.getenvInt("CATALOG_REDIS_DB", 0),
		RedisPrefix:         e.getenv("CATALOG_REDIS_PREFIX", "catalog"),
		RedisDT:             e.mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             e.mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             e.mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisConnectTimeout: e.mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  e.mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        e.mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    e.mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),

		// Registry
		GitHubToken:      e.getenv("GITHUB_TOKEN", ""),
		GitHubAPIURL:     e.getenv("GITHUB_API_URL", "https://api.github.com"),
		GitHubRawURL:     e.getenv("GITHUB_RAW_URL", "https://raw.githubusercontent.com"),
		PluginListURL:    e.getenv("PLUGIN_LIST_URL", "https://raw.githubusercontent.com/obsidianmd/obsidian-releases/master/community-plugins.json"),
		ManifestBranches: splitAndTrim(e.getenv("MANIFEST_BRANCHES", "master,main")),
		CheckArchived:    e.mustBool("CATALOG_CHECK_ARCHIVED", true),
		HTTPTimeout:      e.mustDuration("CATALOG_HTTP_TIMEOUT", 30*time.Second),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values needed by the selected store and run mode.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("CATALOG_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.Env != EnvProduction && c.Env != EnvDevelopment {
		add("CATALOG_ENV must be %s or %s, got %q", EnvProduction, EnvDevelopment, c.Env)
	}
	if c.Limit < 0 {
		add("CATALOG_LIMIT must be >= 0, got %d", c.Limit)
	}
	if len(c.ManifestBranches) == 0 {
		add("MANIFEST_BRANCHES must name at least one branch")
	}
	if c.HTTPTimeout <= 0 {
		add("CATALOG_HTTP_TIMEOUT must be > 0, got %v", c.HTTPTimeout)
	}

	switch c.Store {
	case StoreNotion:
		if c.NotionToken == "" {
			add("NOTION_TOKEN is required when CATALOG_STORE=%s", StoreNotion)
		}
		if c.NotionDatabaseID == "" {
			add("NOTION_DATABASE_ID is required when CATALOG_STORE=%s", StoreNotion)
		}
		if c.NotionPageSize < 1 || c.NotionPageSize > 100 {
			add("NOTION_PAGE_SIZE must be between 1 and 100, got %d", c.NotionPageSize)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			add("CATALOG_REDIS_ADDR is required when CATALOG_STORE=%s", StoreRedis)
		}
	case StoreMemory:
	default:
		add("CATALOG_STORE must be %s, %s or %s, got %q", StoreNotion, StoreRedis, StoreMemory, c.Store)
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the run is a development run.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// EffectiveLimit is Limit, or DevelopmentLimit for development runs that
// set none.
func (c *Config) EffectiveLimit() int {
	if c.Limit == 0 && c.IsDevelopment() {
		return DevelopmentLimit
	}
	return c.Limit
}

// ArchiveEnabled reports whether orphans are archived.
func (c *Config) ArchiveEnabled() bool {
	return !c.SkipArchive && !c.IsDevelopment()
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.NotionToken, &cp.RedisPassword, &cp.GitHubToken} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers

type env struct {
	v    *viper.Viper
	errs []error
}

func (e *env) getenv(key, def string) string {
	if s := strings.TrimSpace(e.v.GetString(key)); s != "" {
		return s
	}
	return def
}

func (e *env) getenvInt(key string, def int) int {
	s := e.getenv(key, "")
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid integer value for %s: %q", key, s))
		return def
	}
	return i
}

func (e *env) mustBool(key string, def bool) bool {
	s := e.getenv(key, "")
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid boolean value for %s: %q", key, s))
		return def
	}
	return b
}

func (e *env) mustDuration(key string, def time.Duration) time.Duration {
	s := e.getenv(key, "")
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid duration value for %s: %q", key, s))
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
