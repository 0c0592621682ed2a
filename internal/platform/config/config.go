// Package config builds the application configuration from environment
// variables so main stays lean. A .env file is honored through the godotenv
// autoload import in cmd/server.
package config

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Lock backends for serialized identify requests.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string
	StoreDriver string
	PostgresDSN string
	SQLitePath  string

	// SerializeIdentify enables per-fingerprint serialization of identify
	// requests. Off by default to reproduce the reference behavior, which
	// leaves the concurrent double-primary window open.
	SerializeIdentify bool
	LockBackend       string

	Redis RedisConfig
}

// RedisConfig holds connection settings for the redis lock backend.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads configuration from the environment, applying defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("UNIFY_ADDR", ":8080"),
		StoreDriver:       envOr("UNIFY_STORE", StoreMemory),
		PostgresDSN:       os.Getenv("UNIFY_POSTGRES_DSN"),
		SQLitePath:        envOr("UNIFY_SQLITE_PATH", "./unify.db"),
		SerializeIdentify: os.Getenv("UNIFY_SERIALIZE_IDENTIFY") == "true",
		LockBackend:       envOr("UNIFY_LOCK_BACKEND", LockMemory),
		Redis: RedisConfig{
			URL:          os.Getenv("UNIFY_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	return cfg
}

// Validate rejects inconsistent configurations before any resource is opened.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.StoreDriver, validation.Required, validation.In(StoreMemory, StorePostgres, StoreSQLite)),
		validation.Field(&c.LockBackend, validation.Required, validation.In(LockMemory, LockRedis)),
	)
	if err != nil {
		return err
	}
	if c.StoreDriver == StorePostgres {
		if err := validation.Validate(c.PostgresDSN, validation.Required.Error("UNIFY_POSTGRES_DSN is required for the postgres store")); err != nil {
			return err
		}
	}
	if c.SerializeIdentify && c.LockBackend == LockRedis {
		if err := validation.Validate(c.Redis.URL, validation.Required.Error("UNIFY_REDIS_URL is required for the redis lock backend")); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
