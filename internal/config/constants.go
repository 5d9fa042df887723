package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultEnv          = "development"
	defaultBaseURL      = "http://localhost:6543"
	defaultDBDriver     = "sqlite"
	defaultSQLitePath   = "mediagoblin.db"
	defaultDBHost       = "127.0.0.1"
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
	defaultDBUser       = "mediagoblin"
	defaultDBName       = "mediagoblin"
	defaultDBCharset    = "utf8mb4"
	defaultDBLoc        = "Local"
	defaultDBSSLMode    = "disable"
	defaultRedisHost    = "localhost"
	defaultRedisPort    = 6379
	defaultRedisDB      = 0
	defaultSMTPPort     = 587
	defaultMailFrom     = "notice@mediagoblin.example.org"
	defaultStorage      = "local"
	defaultStorageDir   = "user_dev/media/public"
	defaultFetchLimit   = 100
	defaultSweep        = 24 * time.Hour
	defaultTaskRetain   = 7 * 24 * time.Hour
	defaultWorkerPoll   = 2 * time.Second
)
