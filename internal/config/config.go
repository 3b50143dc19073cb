package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"food-delivery/internal/lib/password"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env      string          `yaml:"env" env:"ENV" env-default:"local"`
	Auth     AuthConfig      `yaml:"auth"`
	Storage  StorageConfig   `yaml:"storage"`
	Redis    RedisConfig     `yaml:"redis"`
	HTTP     HTTPConfig      `yaml:"http"`
	Password password.Config `yaml:"password"`
}

type AuthConfig struct {
	SecretKey                string `yaml:"secret_key" env:"SECRET_KEY" env-required:"true"`
	Algorithm                string `yaml:"algorithm" env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"15"`
	RefreshTokenExpireDays   int    `yaml:"refresh_token_expire_days" env:"REFRESH_TOKEN_EXPIRE_DAYS" env-default:"7"`
}

// StorageConfig describes the user database. Path is used by sqlite only;
// URI, when set, takes precedence over the individual DB_* parts.
type StorageConfig struct {
	Driver  string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	Path    string `yaml:"path" env:"DB_PATH" env-default:"./storage/food-delivery.db"`
	URI     string `yaml:"uri" env:"DB_URI"`
	Host    string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port    int    `yaml:"port" env:"DB_PORT"`
	User    string `yaml:"user" env:"DB_USER"`
	Pass    string `yaml:"pass" env:"DB_PASS"`
	Name    string `yaml:"name" env:"DB_NAME" env-default:"food_delivery"`
	SSLMode string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
}

type RedisConfig struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Pass string `yaml:"pass" env:"REDIS_PASS"`
	DB   int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"1048576"`
	TrustProxy      bool          `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
	LoginRate       float64       `yaml:"login_rate" env:"HTTP_LOGIN_RATE" env-default:"1"`
	LoginBurst      int           `yaml:"login_burst" env:"HTTP_LOGIN_BURST" env-default:"5"`
}

// MustLoad reads the config from the file given by --config or CONFIG_PATH,
// or from the environment alone when neither is set.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	return cfg
}

// Load reads the YAML file at path, if any, and applies environment
// overrides on top of it.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfig, c.Auth.Algorithm)
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("%w: SECRET_KEY is empty", ErrInvalidConfig)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must be positive", ErrInvalidConfig)
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		return fmt.Errorf("%w: REFRESH_TOKEN_EXPIRE_DAYS must be positive", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres, DriverMongoDB:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.HTTP.LoginRate <= 0 || c.HTTP.LoginBurst <= 0 {
		return fmt.Errorf("%w: login rate and burst must be positive", ErrInvalidConfig)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max body bytes must be positive", ErrInvalidConfig)
	}

	if err := c.Password.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenExpireDays) * 24 * time.Hour
}

// DSN returns the connection string for the configured driver.
func (s StorageConfig) DSN() string {
	switch s.Driver {
	case DriverSQLite:
		return s.Path
	case DriverPostgres:
		if s.URI != "" {
			return s.URI
		}
		u := s.url("postgres", 5432)
		u.Path = "/" + s.Name
		u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
		return u.String()
	case DriverMongoDB:
		if s.URI != "" {
			return s.URI
		}
		return s.url("mongodb", 27017).String()
	}
	return ""
}

func (s StorageConfig) url(scheme string, defaultPort int) *url.URL {
	port := s.Port
	if port == 0 {
		port = defaultPort
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(port)),
	}
	if s.User != "" {
		u.User = url.UserPassword(s.User, s.Pass)
	}
	return u
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
