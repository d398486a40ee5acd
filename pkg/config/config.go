package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	LemonSqueezy LemonSqueezyConfig
	Packs        PacksConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.checkProd(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkProd refuses settings that only make sense on a laptop.
func (c *Config) checkProd() error {
	if !c.App.IsProd() {
		return nil
	}
	var problems []error
	if strings.TrimSpace(c.LemonSqueezy.WebhookSecret) == "" {
		problems = append(problems, errors.New("CREDITS_LEMONSQUEEZY_WEBHOOK_SECRET is required in prod"))
	}
	if c.DB.IsSQLite() {
		problems = append(problems, errors.New("the sqlite driver is not allowed in prod"))
	}
	if c.FeatureFlags.AutoMigrate {
		problems = append(problems, errors.New("CREDITS_AUTO_MIGRATE must be off in prod; run cmd/migrate"))
	}
	return errors.Join(problems...)
}

type AppConfig struct {
	Env          string `envconfig:"CREDITS_APP_ENV" required:"true"`
	Port         string `envconfig:"CREDITS_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"CREDITS_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"CREDITS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CREDITS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CREDITS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CREDITS_DB_DSN"`
	Driver string `envconfig:"CREDITS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CREDITS_DB_HOST"`
	LegacyPort     int    `envconfig:"CREDITS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CREDITS_DB_USER"`
	LegacyPassword string `envconfig:"CREDITS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CREDITS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CREDITS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CREDITS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREDITS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREDITS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREDITS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CREDITS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CREDITS_REDIS_ADDR"`
	Password     string        `envconfig:"CREDITS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREDITS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREDITS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREDITS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREDITS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREDITS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREDITS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify tokens minted by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"CREDITS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CREDITS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CREDITS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type LemonSqueezyConfig struct {
	APIKey        string        `envconfig:"CREDITS_LEMONSQUEEZY_API_KEY"`
	StoreID       string        `envconfig:"CREDITS_LEMONSQUEEZY_STORE_ID"`
	WebhookSecret string        `envconfig:"CREDITS_LEMONSQUEEZY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"CREDITS_LEMONSQUEEZY_BASE_URL" default:"https://api.lemonsqueezy.com"`
	Timeout       time.Duration `envconfig:"CREDITS_LEMONSQUEEZY_TIMEOUT" default:"10s"`
}

// PacksConfig carries the provider variant ids and optional overrides for the credit catalog.
type PacksConfig struct {
	SmallVariantID  string `envconfig:"CREDITS_PACK_SMALL_VARIANT_ID"`
	MediumVariantID string `envconfig:"CREDITS_PACK_MEDIUM_VARIANT_ID"`
	LargeVariantID  string `envconfig:"CREDITS_PACK_LARGE_VARIANT_ID"`

	// FallbackCentsPerCredit converts an unmatched order total into credits.
	// Zero disables the fallback and unmatched totals are rejected.
	FallbackCentsPerCredit int64 `envconfig:"CREDITS_FALLBACK_CENTS_PER_CREDIT" default:"0"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CREDITS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	MaxBodyBytes   int64         `envconfig:"CREDITS_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	Journal        bool          `envconfig:"CREDITS_WEBHOOK_JOURNAL" default:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CREDITS_AUTO_MIGRATE" default:"false"`
}

type RateLimitConfig struct {
	ConsumeWindow time.Duration `envconfig:"CREDITS_RATE_LIMIT_CONSUME_WINDOW" default:"1m"`
	ConsumeLimit  int           `envconfig:"CREDITS_RATE_LIMIT_CONSUME_LIMIT" default:"120"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
