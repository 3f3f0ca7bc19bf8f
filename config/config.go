/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. defaults below
  2. .env in the working directory, if present (godotenv)
  3. process environment
  4. command-line flags, applied by cmd/server

VARIABLES:
  APP_ENV            dev | production        (default dev)
  HTTP_PORT          listen port             (default 8080)
  DB_PATH            SQLite path or :memory: (default receive.db)
  LOGGER_LEVEL       debug | info | warn ... (default info)
  LOGGER_ENCODING    json | console          (default json)
  REDIS_ADDR         empty = in-process locks
  REDIS_PASSWORD, REDIS_DB
  LOCK_TTL_SECONDS   distributed lock TTL    (default 10)
  AUTH_TOKENS        token:operator,token:operator
  CORS_ORIGINS       comma separated
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	AppEnv      string
	Port        int
	CORSOrigins []string
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type DBConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// AuthConfig maps bearer tokens to the operator name recorded on writes.
type AuthConfig struct {
	Tokens map[string]string
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv != "production"
}

// LoadEnv reads .env (if any) and the environment.
func LoadEnv() (*Config, error) {
	_ = godotenv.Load()

	tokens, err := parseTokens(getEnv("AUTH_TOKENS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			AppEnv:      getEnv("APP_ENV", "dev"),
			Port:        getEnvInt("HTTP_PORT", 8080),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOGGER_LEVEL", "info"),
			Encoding: getEnv("LOGGER_ENCODING", "json"),
		},
		DB: DBConfig{
			Path: getEnv("DB_PATH", "receive.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  time.Duration(getEnvInt("LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Auth: AuthConfig{Tokens: tokens},
	}

	if !cfg.IsDevelopment() && len(cfg.Auth.Tokens) == 0 {
		return nil, fmt.Errorf("AUTH_TOKENS must be set when APP_ENV=%s", cfg.Server.AppEnv)
	}
	return cfg, nil
}

func parseTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, operator, ok := strings.Cut(pair, ":")
		if !ok || token == "" || operator == "" {
			return nil, fmt.Errorf("AUTH_TOKENS: malformed entry %q, want token:operator", pair)
		}
		tokens[token] = operator
	}
	return tokens, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}
