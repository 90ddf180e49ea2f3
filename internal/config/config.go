// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Storage   StorageConfig   `koanf:"storage"`
	Upload    UploadConfig    `koanf:"upload"`
	Session   SessionConfig   `koanf:"session"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

// StorageConfig points at the S3-compatible object store holding book files
// and covers.
type StorageConfig struct {
	Driver       string `koanf:"driver"`
	Endpoint     string `koanf:"endpoint"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	Region       string `koanf:"region"`
	UseSSL       bool   `koanf:"use_ssl"`
	UsePathStyle bool   `koanf:"use_path_style"`
	BooksBucket  string `koanf:"books_bucket"`
	CoversBucket string `koanf:"covers_bucket"`
}

type UploadConfig struct {
	MaxBookSize  int64 `koanf:"max_book_size"`
	MaxCoverSize int64 `koanf:"max_cover_size"`
}

type SessionConfig struct {
	EventBuffer   int           `koanf:"event_buffer"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type RateLimitConfig struct {
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Burst           int           `koanf:"burst"`
	ProgressPerMin  int           `koanf:"progress_per_minute"`
	ProgressBurst   int           `koanf:"progress_burst"`
	AdminMultiplier int           `koanf:"admin_multiplier"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	// .env is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Bookshelf",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "bookshelf",
		"jwt.audience":             "bookshelf-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"rate_limit.progress_per_minute": 120,
		"rate_limit.progress_burst":      30,
		"rate_limit.admin_multiplier":    10,

		"storage.driver":         "minio",
		"storage.region":         "us-east-1",
		"storage.use_ssl":        false,
		"storage.use_path_style": true,
		"storage.books_bucket":   "books",
		"storage.covers_bucket":  "covers",

		"upload.max_book_size":  100 << 20,
		"upload.max_cover_size": 5 << 20,

		"session.event_buffer":   256,
		"session.purge_interval": "1h",

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "bookshelf",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"STORAGE_DRIVER":              "storage.driver",
	"STORAGE_ENDPOINT":            "storage.endpoint",
	"STORAGE_ACCESS_KEY":          "storage.access_key",
	"STORAGE_SECRET_KEY":          "storage.secret_key",
	"STORAGE_REGION":              "storage.region",
	"STORAGE_USE_SSL":             "storage.use_ssl",
	"STORAGE_USE_PATH_STYLE":      "storage.use_path_style",
	"STORAGE_BOOKS_BUCKET":        "storage.books_bucket",
	"STORAGE_COVERS_BUCKET":       "storage.covers_bucket",
	"UPLOAD_MAX_BOOK_SIZE":        "upload.max_book_size",
	"UPLOAD_MAX_COVER_SIZE":       "upload.max_cover_size",
	"SESSION_PURGE_INTERVAL":      "session.purge_interval",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"SERVER_TRUSTED_PROXIES":      "server.trusted_proxies",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}

	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}

	if c.Storage.Driver != "minio" && c.Storage.Driver != "s3" {
		return fmt.Errorf("storage.driver must be minio or s3, got %q", c.Storage.Driver)
	}

	if c.Storage.BooksBucket == "" || c.Storage.CoversBucket == "" {
		return fmt.Errorf("storage buckets must be set")
	}

	if c.Upload.MaxBookSize <= 0 {
		return fmt.Errorf("upload.max_book_size must be positive")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
