// Package config loads process configuration from the environment, with
// an optional yaml.v3 override file for local/dev use.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-sourced setting the pipeline's
// binaries need.
type Config struct {
	Port               int    `yaml:"port"`
	ClickHouseURL      string `yaml:"clickhouse_url"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
	NATSURL            string `yaml:"nats_url"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	UserAgent          string `yaml:"user_agent"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisPassword      string `yaml:"redis_password"`
	RedisDB            int    `yaml:"redis_db"`
	AuditDSN           string `yaml:"audit_dsn"`
}

// Default returns the documented defaults for every optional field.
func Default() Config {
	return Config{
		Port:          3000,
		ClickHouseURL: "http://localhost:8123",
		NATSURL:       "nats://localhost:4222",
		RedisAddr:     "localhost:6379",
		RedisDB:       0,
	}
}

// Load builds a Config from environment variables layered over Default,
// then applies an optional yaml override file if overridePath is
// non-empty and exists.
func Load(overridePath string) (Config, error) {
	c := Default()

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: PORT must be an integer: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("CLICKHOUSE_URL"); v != "" {
		c.ClickHouseURL = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		c.ClickHouseUser = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHousePassword = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("CLIENT_SECRET"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: REDIS_DB must be an integer: %w", err)
		}
		c.RedisDB = db
	}
	if v := os.Getenv("AUDIT_DSN"); v != "" {
		c.AuditDSN = v
	}

	if overridePath == "" {
		return c, nil
	}

	body, err := os.ReadFile(overridePath)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading override file: %w", err)
	}

	if err := yaml.Unmarshal(body, &c); err != nil {
		return Config{}, fmt.Errorf("config: parsing override file: %w", err)
	}

	return c, nil
}
