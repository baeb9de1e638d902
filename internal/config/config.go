package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Mail      MailConfig
	Uploads   UploadConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig

	CatalogPath  string `env:"CATALOG_PATH"`
	AuditLogPath string `env:"AUDIT_LOG_PATH"`
}

type ServerConfig struct {
	Addr            string        `env:"STOREFRONT_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig selects the postgres store. An empty DSN means in-memory.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE,default=true"`
}

// RedisConfig selects the redis session store. An empty Addr means in-memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

type SessionConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	TTL          time.Duration `env:"SESSION_TTL,default=168h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE,default=false"`
}

// MailConfig mirrors the MAIL_* variables. An empty Server logs messages instead of sending.
type MailConfig struct {
	Server   string `env:"MAIL_SERVER"`
	Port     int    `env:"MAIL_PORT,default=587"`
	UseTLS   bool   `env:"MAIL_USE_TLS,default=false"`
	Username string `env:"MAIL_USERNAME"`
	Password string `env:"MAIL_PASSWORD"`
	Sender   string `env:"MAIL_SENDER"`
}

type UploadConfig struct {
	Folder   string `env:"UPLOAD_FOLDER,default=static/uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES,default=10485760"`
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=storefront"`
}

// RateLimitConfig throttles login and registration attempts per client address.
type RateLimitConfig struct {
	PerSecond float64 `env:"LOGIN_RATE_LIMIT,default=1"`
	Burst     int     `env:"LOGIN_RATE_BURST,default=5"`
}

// Load reads an optional .env file and decodes the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load() // optional
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants envdecode cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.SecretKey) == "" {
		return errors.New("SECRET_KEY is required")
	}
	if len(c.Session.SecretKey) < 16 {
		return errors.New("SECRET_KEY must be at least 16 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Mail.Server != "" && c.Mail.Port <= 0 {
		return errors.New("MAIL_PORT must be positive when MAIL_SERVER is set")
	}
	return nil
}

// MailSender is the From address: MAIL_SENDER, falling back to MAIL_USERNAME.
func (c MailConfig) MailSender() string {
	if s := strings.TrimSpace(c.Sender); s != "" {
		return s
	}
	return strings.TrimSpace(c.Username)
}
