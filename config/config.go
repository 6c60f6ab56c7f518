package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host            string `mapstructure:"host"`
		Port            string `mapstructure:"port"`
		User            string `mapstructure:"user"`
		Password        string `mapstructure:"password"`
		Name            string `mapstructure:"name"`
		SSLMode         string `mapstructure:"sslmode"`
		MigrationsPath  string `mapstructure:"migrations_path"`
		MaxOpenConns    int    `mapstructure:"max_open_conns"`
		MaxIdleConns    int    `mapstructure:"max_idle_conns"`
		ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	} `mapstructure:"database"`
	Server struct {
		Port            string `mapstructure:"port"`
		ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
	} `mapstructure:"server"`
	JWT struct {
		AccessSecret      string `mapstructure:"access_secret"`
		RefreshSecret     string `mapstructure:"refresh_secret"`
		AccessTTLMinutes  int    `mapstructure:"access_ttl_minutes"`
		RefreshTTLMinutes int    `mapstructure:"refresh_ttl_minutes"`
		LeewaySeconds     int    `mapstructure:"leeway_seconds"`
	} `mapstructure:"jwt"`
	Auth struct {
		RequireVerifiedEmail bool   `mapstructure:"require_verified_email"`
		VerifyURL            string `mapstructure:"verify_url"`
		MaxLoginAttempts     int    `mapstructure:"max_login_attempts"`
		LoginWindowSeconds   int    `mapstructure:"login_window_seconds"`
	} `mapstructure:"auth"`
	Hashing struct {
		MemoryKB    uint32 `mapstructure:"memory_kb"`
		Iterations  uint32 `mapstructure:"iterations"`
		Parallelism uint8  `mapstructure:"parallelism"`
		KeyLength   uint32 `mapstructure:"key_length"`
		Workers     int64  `mapstructure:"workers"`
	} `mapstructure:"hashing"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
}

var AppConfig Config

// setDefaults registers every key so AutomaticEnv can override it even when
// config.yml does not mention it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "db/migrations")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_seconds", 300)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout_seconds", 5)

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl_minutes", 15)
	v.SetDefault("jwt.refresh_ttl_minutes", 7*24*60)
	v.SetDefault("jwt.leeway_seconds", 30)

	v.SetDefault("auth.require_verified_email", false)
	v.SetDefault("auth.verify_url", "/verify")
	v.SetDefault("auth.max_login_attempts", 10)
	v.SetDefault("auth.login_window_seconds", 900)

	v.SetDefault("hashing.memory_kb", 19*1024)
	v.SetDefault("hashing.iterations", 2)
	v.SetDefault("hashing.parallelism", 1)
	v.SetDefault("hashing.key_length", 32)
	v.SetDefault("hashing.workers", 4)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Load reads config.yml from path, overlays environment variables (JWT_ACCESS_SECRET,
// DATABASE_HOST, ...) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the configuration into AppConfig and exits on failure.
func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error loading config, %s", err)
	}
	AppConfig = *cfg
}

// Validate rejects configurations the auth subsystem cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.access_secret and jwt.refresh_secret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.access_secret and jwt.refresh_secret must differ")
	}
	if c.JWT.AccessTTLMinutes <= 0 || c.JWT.RefreshTTLMinutes <= 0 {
		return fmt.Errorf("jwt ttl values must be positive")
	}
	if c.JWT.LeewaySeconds < 0 || c.JWT.LeewaySeconds > 120 {
		return fmt.Errorf("jwt.leeway_seconds must be between 0 and 120")
	}
	if c.Hashing.Workers <= 0 {
		return fmt.Errorf("hashing.workers must be positive")
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTTLMinutes) * time.Minute
}

func (c *Config) Leeway() time.Duration {
	return time.Duration(c.JWT.LeewaySeconds) * time.Second
}

func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.Auth.LoginWindowSeconds) * time.Second
}

// DSN builds the lib/pq connection URL.
func (c *Config) DSN() string {
	db := c.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", db.User, db.Password, db.Host, db.Port, db.Name, db.SSLMode)
}

// SafeDSN is DSN without the password, for logging.
func (c *Config) SafeDSN() string {
	db := c.Database
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", db.User, db.Host, db.Port, db.Name, db.SSLMode)
}
