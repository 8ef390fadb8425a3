package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Local    LocalConfig    `mapstructure:"local"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LocalConfig points at the durable local store (badger directory).
type LocalConfig struct {
	Path       string `mapstructure:"path"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// SyncConfig tunes the local-first sync engine and its maintenance jobs.
type SyncConfig struct {
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MaxRetries         int           `mapstructure:"max_retries"`
	PushTimeout        time.Duration `mapstructure:"push_timeout"`
	RetentionDays      int           `mapstructure:"retention_days"`
	WeeklyTarget       int           `mapstructure:"weekly_target"`
	CatchUpSchedule    string        `mapstructure:"catch_up_schedule"`
	PruneSchedule      string        `mapstructure:"prune_schedule"`
	IdleCheckSchedule  string        `mapstructure:"idle_check_schedule"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
}

// BreakerConfig configures the circuit breaker around the remote store.
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, sync.retry_delay -> SYNC_RETRY_DELAY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Running on defaults and env vars only.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "fitness_sync")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "progress-photos")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")

	v.SetDefault("local.path", "./data/local")
	v.SetDefault("local.in_memory", false)
	v.SetDefault("local.sync_writes", true)

	v.SetDefault("sync.retry_delay", "5s")
	v.SetDefault("sync.max_retries", 1)
	v.SetDefault("sync.push_timeout", "15s")
	v.SetDefault("sync.retention_days", 30)
	v.SetDefault("sync.weekly_target", 4)
	v.SetDefault("sync.catch_up_schedule", "@every 1m")
	v.SetDefault("sync.prune_schedule", "@daily")
	v.SetDefault("sync.idle_check_schedule", "@every 5m")
	v.SetDefault("sync.session_idle_timeout", "30m")

	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", "1m")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.min_requests", 10)
	v.SetDefault("breaker.failure_ratio", 0.6)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
