package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Site.Timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Rate limit store strategies.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Login guard backends.
const (
	GuardPostgres = "postgres"
	GuardRedis    = "redis"
)

// Config holds application configuration.
type Config struct {
	LogLevel   string           `koanf:"log_level"`
	Server     ServerConfig     `koanf:"server"`
	Site       SiteConfig       `koanf:"site"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	JWT        JWTConfig        `koanf:"jwt"`
	AWS        AWSConfig        `koanf:"aws"`
	Attendance AttendanceConfig `koanf:"attendance"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	LoginGuard LoginGuardConfig `koanf:"login_guard"`
	Admin      AdminConfig      `koanf:"admin"`
	Worker     WorkerConfig     `koanf:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `koanf:"port"`
	ReadTimeout        int    `koanf:"read_timeout"`
	WriteTimeout       int    `koanf:"write_timeout"`
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"` // comma-separated, or "*"
}

// SiteConfig describes the public site the share links point at.
type SiteConfig struct {
	PublicOrigin string `koanf:"public_origin"`
	Timezone     string `koanf:"timezone"` // IANA name used for exports
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `koanf:"url"` // if set, used as-is
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string `koanf:"secret"`
	ExpireHours int    `koanf:"expire_hours"`
}

// AWSConfig holds AWS credentials and the event images bucket.
type AWSConfig struct {
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	ImagesBucket    string `koanf:"images_bucket"`
	PublicBaseURL   string `koanf:"public_base_url"`
}

// AttendanceConfig controls check-in links and the form.
type AttendanceConfig struct {
	TokenTTLHours     int  `koanf:"token_ttl_hours"` // 0 = links never expire
	RequireAgeBracket bool `koanf:"require_age_bracket"`
}

// RateLimitConfig selects where local attempt records live.
type RateLimitConfig struct {
	Store       string `koanf:"store"` // memory | file | redis
	FilePath    string `koanf:"file_path"`
	RedisPrefix string `koanf:"redis_prefix"` // one key per record under this prefix
	// IdleTTLHours expires Redis records after this long without writes; it
	// must exceed the longest policy window.
	IdleTTLHours int `koanf:"idle_ttl_hours"`
}

// LoginGuardConfig configures the shared login limiter.
type LoginGuardConfig struct {
	Backend       string `koanf:"backend"` // postgres | redis
	WindowMinutes int    `koanf:"window_minutes"`
	MaxAttempts   int    `koanf:"max_attempts"`
	LogViaQueue   bool   `koanf:"log_via_queue"`
}

// AdminConfig seeds the first console account on startup when both fields are set.
type AdminConfig struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	FullName string `koanf:"full_name"`
}

// WorkerConfig controls background jobs.
type WorkerConfig struct {
	RetentionDays        int `koanf:"retention_days"`
	PruneIntervalMinutes int `koanf:"prune_interval_minutes"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// TokenTTL is the lifetime of a newly issued attendance link.
func (c AttendanceConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// IdleTTL is how long an untouched Redis limiter record is kept.
func (c RateLimitConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLHours) * time.Hour
}

// Window is the login guard window.
func (c LoginGuardConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// Retention is how long login audit rows are kept.
func (c WorkerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// PruneInterval is how often the worker prunes old audit rows.
func (c WorkerConfig) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMinutes) * time.Minute
}

// Location resolves Site.Timezone, falling back to UTC.
func (c SiteConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// New returns the defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			CORSAllowedOrigins: "http://localhost:3000",
		},
		Site: SiteConfig{
			PublicOrigin: "http://localhost:3000",
			Timezone:     "UTC",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "club",
			SSLMode: "disable",
		},
		JWT: JWTConfig{
			Secret:      "change-me-in-production",
			ExpireHours: 24,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Attendance: AttendanceConfig{
			TokenTTLHours:     168,
			RequireAgeBracket: true,
		},
		RateLimit: RateLimitConfig{
			Store:        StoreMemory,
			FilePath:     "data/rate_limits.json",
			IdleTTLHours: 24,
		},
		LoginGuard: LoginGuardConfig{
			Backend:       GuardPostgres,
			WindowMinutes: 15,
			MaxAttempts:   5,
		},
		Worker: WorkerConfig{
			RetentionDays:        30,
			PruneIntervalMinutes: 60,
		},
	}
}

// unprefixed maps conventional platform variables onto config keys.
var unprefixed = map[string]string{
	"DATABASE_URL": "database.url",
	"PORT":         "server.port",
	"REDIS_ADDR":   "redis.addr",
	"JWT_SECRET":   "jwt.secret",
}

// Load builds a Config by layering, lowest precedence first:
//  1. defaults (New)
//  2. conventional unprefixed env vars (DATABASE_URL, PORT, REDIS_ADDR, JWT_SECRET)
//  3. YAML file if CLUB_CONFIG is set
//  4. env with prefix CLUB_, "__" separating sections (CLUB_SERVER__PORT -> server.port)
//
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	for name, key := range unprefixed {
		if v := os.Getenv(name); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, err
			}
		}
	}

	if path := os.Getenv("CLUB_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CLUB_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "CLUB_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port must not be empty")
	}
	switch c.RateLimit.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("rate_limit.store: unknown store %q", c.RateLimit.Store)
	}
	if c.RateLimit.Store == StoreRedis && c.Redis.Addr == "" {
		return errors.New("rate_limit.store=redis requires redis.addr")
	}
	switch c.LoginGuard.Backend {
	case GuardPostgres, GuardRedis:
	default:
		return fmt.Errorf("login_guard.backend: unknown backend %q", c.LoginGuard.Backend)
	}
	if c.LoginGuard.Backend == GuardRedis && c.Redis.Addr == "" {
		return errors.New("login_guard.backend=redis requires redis.addr")
	}
	if c.LoginGuard.LogViaQueue && c.Redis.Addr == "" {
		return errors.New("login_guard.log_via_queue requires redis.addr")
	}
	if c.LoginGuard.WindowMinutes <= 0 || c.LoginGuard.MaxAttempts <= 0 {
		return errors.New("login_guard window and max attempts must be positive")
	}
	if c.Attendance.TokenTTLHours < 0 {
		return errors.New("attendance.token_ttl_hours must not be negative")
	}
	return nil
}
