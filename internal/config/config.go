package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Env           string                    `yaml:"env"`
	Debug         bool                      `yaml:"debug"`
	BaseURL       string                    `yaml:"base_url"      validate:"required,url"`
	DSN           string                    `yaml:"-"`
	RedisURL      string                    `yaml:"-"`
	Root          string                    `yaml:"-"`
	Database      DatabaseRuntimeConfig     `yaml:"database"`
	Redis         RedisRuntimeConfig        `yaml:"redis"`
	Mail          MailRuntimeConfig         `yaml:"mail"`
	Storage       StorageRuntimeConfig      `yaml:"storage"`
	Notifications NotificationRuntimeConfig `yaml:"notifications"`
	Cleanup       CleanupRuntimeConfig      `yaml:"cleanup"`
	Paths         RuntimePathsConfig        `yaml:"paths"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"     validate:"oneof=mysql postgres sqlite"`
	DSN       string            `yaml:"dsn"`
	Path      string            `yaml:"path"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"       validate:"min=0,max=65535"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	SSLMode   string            `yaml:"sslmode"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	Enable   bool   `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"     validate:"min=0,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"       validate:"min=0"`
	TLS      bool   `yaml:"tls"`
}

// MailRuntimeConfig configures the SMTP transport for notification emails.
type MailRuntimeConfig struct {
	Enable  bool   `yaml:"enable"`
	Host    string `yaml:"host"     validate:"required_if=Enable true"`
	Port    int    `yaml:"port"     validate:"min=0,max=65535"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
	From    string `yaml:"from"`
	ReplyTo string `yaml:"reply_to"`
}

// StorageRuntimeConfig selects where media files live.
type StorageRuntimeConfig struct {
	Backend string          `yaml:"backend" validate:"oneof=local s3"`
	Dir     string          `yaml:"dir"`
	S3      S3StorageConfig `yaml:"s3"`
}

type S3StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

type NotificationRuntimeConfig struct {
	FetchLimit   int           `yaml:"fetch_limit"   validate:"min=1"`
	Email        bool          `yaml:"email"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type CleanupRuntimeConfig struct {
	Interval      time.Duration `yaml:"interval"`
	TaskRetention time.Duration `yaml:"task_retention"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawAppConfig struct {
	Env           string                `yaml:"env"`
	Debug         *bool                 `yaml:"debug"`
	BaseURL       string                `yaml:"base_url"`
	SQLEngine     string                `yaml:"sql_engine"`
	Database      DatabaseRuntimeConfig `yaml:"database"`
	Redis         RedisRuntimeConfig    `yaml:"redis"`
	RedisURL      string                `yaml:"redis_url"`
	Mail          MailRuntimeConfig     `yaml:"mail"`
	Storage       StorageRuntimeConfig  `yaml:"storage"`
	Notifications rawNotificationConfig `yaml:"notifications"`
	Cleanup       CleanupRuntimeConfig  `yaml:"cleanup"`
	Paths         RuntimePathsConfig    `yaml:"paths"`
	LogDir        string                `yaml:"log_dir"`
}

type rawNotificationConfig struct {
	FetchLimit   int           `yaml:"fetch_limit"`
	Email        *bool         `yaml:"email"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

var validate = validator.New()

// Load reads and validates the YAML config at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		cfg.Root = filepath.Dir(abs)
	}
	if cfg.Storage.Backend == "local" {
		cfg.Storage.Dir = cfg.ResolvePath(cfg.Storage.Dir, defaultStorageDir)
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Backend == "s3" && strings.TrimSpace(cfg.Storage.S3.Bucket) == "" {
		return nil, fmt.Errorf("invalid storage.s3.bucket %q, required for the s3 backend", cfg.Storage.S3.Bucket)
	}
	if cfg.Cleanup.Interval <= 0 {
		return nil, fmt.Errorf("invalid cleanup.interval %s, expected > 0", cfg.Cleanup.Interval)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Env:     defaultEnv,
		BaseURL: defaultBaseURL,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Path:      defaultSQLitePath,
			ParseTime: true,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Mail: MailRuntimeConfig{
			Port: defaultSMTPPort,
			From: defaultMailFrom,
		},
		Storage: StorageRuntimeConfig{
			Backend: defaultStorage,
			Dir:     defaultStorageDir,
		},
		Notifications: NotificationRuntimeConfig{
			FetchLimit:   defaultFetchLimit,
			Email:        true,
			PollInterval: defaultWorkerPoll,
		},
		Cleanup: CleanupRuntimeConfig{
			Interval:      defaultSweep,
			TaskRetention: defaultTaskRetain,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if raw.Debug != nil {
		cfg.Debug = *raw.Debug
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	db := mergeDatabaseConfig(cfg.Database, raw.Database)
	if v := strings.TrimSpace(raw.SQLEngine); v != "" {
		parsed, err := parseSQLEngine(v)
		if err != nil {
			return err
		}
		db = parsed
	}
	cfg.Database = normalizeDatabaseConfig(db)

	redis := raw.Redis
	if redis.Host == "" {
		redis.Host = cfg.Redis.Host
	}
	if redis.Port == 0 {
		redis.Port = cfg.Redis.Port
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		redis.URL = v
		redis.Enable = true
	}
	cfg.Redis = normalizeRedisConfig(redis)

	mail := raw.Mail
	if mail.Port == 0 {
		mail.Port = cfg.Mail.Port
	}
	if strings.TrimSpace(mail.From) == "" {
		mail.From = cfg.Mail.From
	}
	cfg.Mail = mail

	if v := strings.TrimSpace(raw.Storage.Backend); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.Storage.Dir); v != "" {
		cfg.Storage.Dir = v
	}
	cfg.Storage.S3 = normalizeS3Config(raw.Storage.S3)

	if raw.Notifications.FetchLimit != 0 {
		cfg.Notifications.FetchLimit = raw.Notifications.FetchLimit
	}
	if raw.Notifications.Email != nil {
		cfg.Notifications.Email = *raw.Notifications.Email
	}
	if raw.Notifications.PollInterval > 0 {
		cfg.Notifications.PollInterval = raw.Notifications.PollInterval
	}
	if raw.Cleanup.Interval != 0 {
		cfg.Cleanup.Interval = raw.Cleanup.Interval
	}
	if raw.Cleanup.TaskRetention > 0 {
		cfg.Cleanup.TaskRetention = raw.Cleanup.TaskRetention
	}

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func mergeDatabaseConfig(current, raw DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	if v := strings.TrimSpace(raw.Driver); v != "" && !strings.EqualFold(v, current.Driver) {
		// switching drivers drops the sqlite defaults
		current = DatabaseRuntimeConfig{Driver: v, ParseTime: current.ParseTime}
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		current.DSN = v
	}
	if v := strings.TrimSpace(raw.Path); v != "" {
		current.Path = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		current.Host = v
	}
	if raw.Port != 0 {
		current.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		current.User = v
	}
	if raw.Password != "" {
		current.Password = raw.Password
	}
	if v := strings.TrimSpace(raw.Name); v != "" {
		current.Name = v
	}
	if v := strings.TrimSpace(raw.Charset); v != "" {
		current.Charset = v
	}
	if v := strings.TrimSpace(raw.Loc); v != "" {
		current.Loc = v
	}
	if v := strings.TrimSpace(raw.SSLMode); v != "" {
		current.SSLMode = v
	}
	if raw.Params != nil {
		current.Params = copyStringMap(raw.Params)
	}
	return current
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "postgresql":
		cfg.Driver = "postgres"
	case "sqlite3":
		cfg.Driver = "sqlite"
	}
	if cfg.Driver == "sqlite" {
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = defaultSQLitePath
		}
		return cfg
	}

	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		if cfg.Driver == "postgres" {
			cfg.Port = defaultPostgresPort
		} else {
			cfg.Port = defaultMySQLPort
		}
	}
	if cfg.User == "" {
		cfg.User = defaultDBUser
	}
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	if cfg.Driver == "mysql" {
		if cfg.Charset == "" {
			cfg.Charset = defaultDBCharset
		}
		if cfg.Loc == "" {
			cfg.Loc = defaultDBLoc
		}
	}
	if cfg.Driver == "postgres" && cfg.SSLMode == "" {
		cfg.SSLMode = defaultDBSSLMode
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Host == "" && cfg.URL == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

func normalizeS3Config(cfg S3StorageConfig) S3StorageConfig {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return cfg
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// LogDir is the resolved directory for log files.
func (c *AppConfig) LogDir() string {
	if c == nil {
		return c.ResolvePath("", "logs")
	}
	return c.ResolvePath(c.Paths.Logs, "logs")
}
