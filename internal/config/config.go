// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ドキュメントストアのバックエンド種別
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// configPathEnv はYAML設定ファイルのパスを指定する環境変数。
const configPathEnv = "JOBDASH_CONFIG"

// 選択肢の既定値
var (
	defaultDomains = []string{"Product", "Web Developer", "AI Developer"}
	defaultLevels  = []string{"Jr", "Associate", "Sr", "Director", "Lead"}
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Document store
	Backend              string
	DatabaseURL          string
	RedisURL             string
	RedisPrefix          string
	ListenerMinReconnect time.Duration
	ListenerMaxReconnect time.Duration

	// JD assembly
	AssembleConcurrency int

	// Display
	DisplayTimezone *time.Location

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitWrite   int

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Select options
	Domains []string
	Levels  []string
}

// fileConfig はYAML設定ファイルの形式。未指定の項目は既定値のまま。
type fileConfig struct {
	Backend              string   `yaml:"backend"`
	DatabaseURL          string   `yaml:"database_url"`
	RedisURL             string   `yaml:"redis_url"`
	RedisPrefix          string   `yaml:"redis_prefix"`
	ListenerMinReconnect string   `yaml:"listener_min_reconnect"`
	ListenerMaxReconnect string   `yaml:"listener_max_reconnect"`
	AssembleConcurrency  int      `yaml:"assemble_concurrency"`
	DisplayTimezone      string   `yaml:"display_timezone"`
	RateLimitGeneral     int      `yaml:"rate_limit_general"`
	RateLimitWrite       int      `yaml:"rate_limit_write"`
	ServerPort           string   `yaml:"server_port"`
	ShutdownTimeout      string   `yaml:"shutdown_timeout"`
	CORSAllowedOrigin    string   `yaml:"cors_allowed_origin"`
	LogLevel             string   `yaml:"log_level"`
	Domains              []string `yaml:"domains"`
	Levels               []string `yaml:"levels"`
}

// defaults は環境変数・設定ファイルのいずれにも指定がない場合の値。
func defaults() fileConfig {
	return fileConfig{
		Backend:              BackendPostgres,
		RedisPrefix:          "jobdash",
		ListenerMinReconnect: "10s",
		ListenerMaxReconnect: "1m",
		AssembleConcurrency:  8,
		DisplayTimezone:      "UTC",
		RateLimitGeneral:     120,
		RateLimitWrite:       30,
		ServerPort:           "8080",
		ShutdownTimeout:      "10s",
		CORSAllowedOrigin:    "http://localhost:3000",
		LogLevel:             "info",
		Domains:              defaultDomains,
		Levels:               defaultLevels,
	}
}

// Load は設定ファイル（JOBDASH_CONFIG、任意）と環境変数からConfigを読み込む。
// 環境変数の値が設定ファイルの値より優先される。
// バックエンドに必要な接続情報が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	base := defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := readFile(path, &base); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Backend:              strings.ToLower(getEnvString("DOCSTORE_BACKEND", base.Backend)),
		DatabaseURL:          getEnvString("DATABASE_URL", base.DatabaseURL),
		RedisURL:             getEnvString("REDIS_URL", base.RedisURL),
		RedisPrefix:          getEnvString("REDIS_PREFIX", base.RedisPrefix),
		ListenerMinReconnect: getEnvDuration("LISTENER_MIN_RECONNECT", parseDuration(base.ListenerMinReconnect, 10*time.Second)),
		ListenerMaxReconnect: getEnvDuration("LISTENER_MAX_RECONNECT", parseDuration(base.ListenerMaxReconnect, time.Minute)),
		AssembleConcurrency:  getEnvInt("ASSEMBLE_CONCURRENCY", base.AssembleConcurrency),
		RateLimitGeneral:     getEnvInt("RATE_LIMIT_GENERAL", base.RateLimitGeneral),
		RateLimitWrite:       getEnvInt("RATE_LIMIT_WRITE", base.RateLimitWrite),
		ServerPort:           getEnvString("SERVER_PORT", base.ServerPort),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", parseDuration(base.ShutdownTimeout, 10*time.Second)),
		CORSAllowedOrigin:    getEnvString("CORS_ALLOWED_ORIGIN", base.CORSAllowedOrigin),
		LogLevel:             getEnvString("LOG_LEVEL", base.LogLevel),
		Domains:              base.Domains,
		Levels:               base.Levels,
	}

	tz := getEnvString("DISPLAY_TIMEZONE", base.DisplayTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", tz, err)
	}
	cfg.DisplayTimezone = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported DOCSTORE_BACKEND %q (postgres, redis, memory)", c.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if len(c.Domains) == 0 || len(c.Levels) == 0 {
		return fmt.Errorf("domains and levels must not be empty")
	}
	return nil
}

// readFile はYAML設定ファイルをbaseへ上書きで読み込む。
func readFile(path string, base *fileConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, base); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func parseDuration(v string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
