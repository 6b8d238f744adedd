package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int `mapstructure:"idle_timeout_sec"`
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type Auth struct {
	Enabled           bool
	Secret            string
	Issuer            string
	AccessTokenTTLMin int      `mapstructure:"access_token_ttl_min"`
	AdminIDs          []string `mapstructure:"admin_ids"` // users issued the admin role at login
}

type Redis struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	URLTTLSec int    `mapstructure:"url_ttl_sec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Storage struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	PathStyle      bool   `mapstructure:"path_style"`
	PresignTTLSec  int    `mapstructure:"presign_ttl_sec"`
	OrphanGraceMin int    `mapstructure:"orphan_grace_min"`
}

func (s Storage) PresignTTL() time.Duration { return time.Duration(s.PresignTTLSec) * time.Second }
func (s Storage) OrphanGrace() time.Duration {
	return time.Duration(s.OrphanGraceMin) * time.Minute
}

func (a Auth) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMin) * time.Minute
}

type CORS struct {
	Origins []string
}

type Config struct {
	App     App
	Log     Log
	Auth    Auth
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Storage Storage
	CORS    CORS `mapstructure:"cors"`
}

const defaultPath = "./configs/config.local.yaml"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "profile-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8000)
	v.SetDefault("app.http.read_timeout_sec", 10)
	v.SetDefault("app.http.write_timeout_sec", 30)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8001)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/profile-api.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 30)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "profile-api")
	v.SetDefault("auth.access_token_ttl_min", 60)
	v.SetDefault("auth.admin_ids", []string{})

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.url_ttl_sec", 600)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.path_style", false)
	v.SetDefault("storage.presign_ttl_sec", 3600)
	v.SetDefault("storage.orphan_grace_min", 60)

	v.SetDefault("cors.origins", []string{
		"http://localhost",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	})
}

// Load reads the yaml file at path (CONFIG_PATH or the local default when
// empty) and overlays APP_* environment variables, e.g. APP_DB_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = defaultPath
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func (c *Config) validate() error {
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth.enabled")
	}
	// S3 refuses presigned URLs valid for more than 7 days
	if ttl := c.Storage.PresignTTL(); ttl <= 0 || ttl > 7*24*time.Hour {
		return fmt.Errorf("storage.presign_ttl_sec out of range: %d", c.Storage.PresignTTLSec)
	}
	if c.Redis.URLTTLSec >= c.Storage.PresignTTLSec {
		c.Redis.URLTTLSec = c.Storage.PresignTTLSec / 2
	}
	return nil
}
