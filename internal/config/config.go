// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

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
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Auth      AuthConfig      `koanf:"auth"`
	Mail      MailConfig      `koanf:"mail"`
	AMQP      AMQPConfig      `koanf:"amqp"`
	Storage   StorageConfig   `koanf:"storage"`
	Cache     CacheConfig     `koanf:"cache"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
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
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
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

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
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

type AuthConfig struct {
	RequireEmailVerification bool          `koanf:"require_email_verification"`
	VerificationTTL          time.Duration `koanf:"verification_ttl"`
	ResetCodeTTL             time.Duration `koanf:"reset_code_ttl"`
	ResetCodeDigits          int           `koanf:"reset_code_digits"`
	ResetMaxAttempts         int           `koanf:"reset_max_attempts"`
	VerifyURL                string        `koanf:"verify_url"`
	LoginRequests            int           `koanf:"login_requests"`
	LoginBurst               int           `koanf:"login_burst"`
}

type MailConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	From       string `koanf:"from"`
	AdminEmail string `koanf:"admin_email"`
	StoreName  string `koanf:"store_name"`
}

func (m *MailConfig) Enabled() bool {
	return m.Host != "" && m.Username != "" && m.Password != ""
}

type AMQPConfig struct {
	URL             string `koanf:"url"`
	Enabled         bool   `koanf:"enabled"`
	ConsumerEnabled bool   `koanf:"consumer_enabled"`
	Prefetch        int    `koanf:"prefetch"`
}

type StorageConfig struct {
	Dir           string `koanf:"dir"`
	PublicBaseURL string `koanf:"public_base_url"`
	MaxUploadSize int64  `koanf:"max_upload_size"`
}

type CacheConfig struct {
	Enabled      bool          `koanf:"enabled"`
	TTL          time.Duration `koanf:"ttl"`
	Prefix       string        `koanf:"prefix"`
	MaxBodyBytes int           `koanf:"max_body_bytes"`
}

type RealtimeConfig struct {
	Channel        string        `koanf:"channel"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// Load layers built-in defaults, the optional YAML file at configPath and
// the mapped environment variables, in that order, then validates the result.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		err := k.Load(file.Provider(configPath), yaml.Parser())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Harvest Table",
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

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "harvest-table",
		"jwt.audience":             "harvest-table-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

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
		"otel.service_name": "harvest-table",

		"auth.require_email_verification": true,
		"auth.verification_ttl":           "24h",
		"auth.reset_code_ttl":             "15m",
		"auth.reset_code_digits":          6,
		"auth.reset_max_attempts":         5,
		"auth.verify_url":                 "http://localhost:3000/verify-email",
		"auth.login_requests":             10,
		"auth.login_burst":                5,

		"mail.port":        587,
		"mail.from":        "orders@harvest-table.local",
		"mail.admin_email": "admin@harvest-table.local",
		"mail.store_name":  "Harvest Table",

		"amqp.enabled":          false,
		"amqp.consumer_enabled": true,
		"amqp.prefetch":         50,

		"storage.dir":             "uploads",
		"storage.public_base_url": "http://localhost:8080/uploads",
		"storage.max_upload_size": 5 << 20,

		"cache.enabled":        true,
		"cache.ttl":            "30s",
		"cache.prefix":         "cache",
		"cache.max_body_bytes": 1 << 20,

		"realtime.channel":         "realtime:changes",
		"realtime.write_timeout":   "10s",
		"realtime.ping_interval":   "30s",
		"realtime.allowed_origins": []string{"http://localhost:3000"},
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
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
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
	"REQUIRE_EMAIL_VERIFICATION":  "auth.require_email_verification",
	"VERIFY_URL":                  "auth.verify_url",
	"SMTP_HOST":                   "mail.host",
	"SMTP_PORT":                   "mail.port",
	"SMTP_USER":                   "mail.username",
	"SMTP_PASS":                   "mail.password",
	"MAIL_FROM":                   "mail.from",
	"ADMIN_EMAIL":                 "mail.admin_email",
	"RABBITMQ_URL":                "amqp.url",
	"AMQP_URL":                    "amqp.url",
	"AMQP_ENABLED":                "amqp.enabled",
	"AMQP_CONSUMER_ENABLED":       "amqp.consumer_enabled",
	"STORAGE_DIR":                 "storage.dir",
	"STORAGE_PUBLIC_BASE_URL":     "storage.public_base_url",
	"CACHE_ENABLED":               "cache.enabled",
	"CACHE_TTL":                   "cache.ttl",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

// validate reports every problem at once so a broken deployment can be
// fixed in one pass.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Database.URL != "", "DATABASE_URL is required")
	check(c.Redis.URL != "", "REDIS_URL is required")
	check(c.JWT.PrivateKeyPath != "", "JWT_PRIVATE_KEY_PATH is required")
	check(c.JWT.PublicKeyPath != "", "JWT_PUBLIC_KEY_PATH is required")
	check(c.Server.ReadTimeout > 0, "server.read_timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server.write_timeout must be positive")
	check(c.RateLimit.Window > 0 && c.RateLimit.Requests > 0,
		"rate_limit.window and rate_limit.requests must be positive")
	check(!c.AMQP.Enabled || c.AMQP.URL != "", "RABBITMQ_URL is required when amqp is enabled")
	check(c.Storage.Dir != "", "storage.dir is required")
	check(c.Auth.ResetCodeDigits >= 4, "auth.reset_code_digits must be at least 4")
	check(!c.IsProduction() || !c.Otel.Enabled || !c.Otel.Insecure,
		"OTEL_INSECURE must be false in production")

	if c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*") {
		errs = append(errs, errors.New("CORS wildcard '*' cannot be used with allow_credentials"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
