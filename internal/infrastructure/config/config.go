package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	EnvProduction = "production"
)

type Config struct {
	Port     string `env:"PORT,      default=8000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth    AuthConfig
	Store   StoreConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Limiter LimiterConfig
	Audit   AuditConfig
	Admin   AdminConfig
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiresIn  time.Duration `env:"JWT_EXPIRES_IN,       default=168h"`
	JWTIssuer     string        `env:"JWT_ISSUER,           default=giftcard-api"`
	BcryptCost    int           `env:"BCRYPT_COST,          default=12"`
	DefaultRoleID int64         `env:"AUTH_DEFAULT_ROLE_ID, default=2"`
}

type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER, default=sqlite"`
	SQLitePath string `env:"SQLITE_PATH,  default=data/gift_cards.sqlite"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=gift_cards"`
}

// RedisConfig is optional: an empty Addr disables the login limiter.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type LimiterConfig struct {
	MaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS, default=5"`
	Window      time.Duration `env:"LOGIN_WINDOW,       default=15m"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

// AdminConfig describes the administrator created at startup. All three
// fields empty disables the bootstrap.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Enabled reports whether any admin bootstrap field is set.
func (a AdminConfig) Enabled() bool {
	return a != AdminConfig{}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads an optional .env file, then configuration from environment
// variables using go-envconfig. Variables already set take precedence over
// the file.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return fmt.Errorf("config: JWT_EXPIRES_IN must be positive, got %s", c.Auth.JWTExpiresIn)
	}
	if c.Auth.DefaultRoleID < 0 {
		return fmt.Errorf("config: AUTH_DEFAULT_ROLE_ID must not be negative, got %d", c.Auth.DefaultRoleID)
	}
	if c.Admin.Enabled() && (c.Admin.Username == "" || c.Admin.Email == "" || c.Admin.Password == "") {
		return errors.New("config: ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}
