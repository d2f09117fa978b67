package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// DatabaseConfig describes how to reach the events store. URL is empty when
// no storage credentials are present at all.
type DatabaseConfig struct {
	URL                string
	ConnectionType     string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
	RunMigrations      bool
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		ConnectionType:     "none",
		MaxConnections:     10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    5 * time.Minute,
		ConnectTimeout:     10 * time.Second,
		RunMigrations:      true,
	}
}

// Configured reports whether any storage credentials were provided.
func (c DatabaseConfig) Configured() bool {
	return c.URL != ""
}

// Redacted returns the connection string with the password masked.
func (c DatabaseConfig) Redacted() string {
	u, err := url.Parse(c.URL)
	if err != nil || u.User == nil {
		return c.ConnectionType
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func loadDatabase(cfg *Config) error {
	db := &cfg.Database

	dsn, kind, err := buildDatabaseURL()
	if err != nil {
		return err
	}
	db.URL = dsn
	db.ConnectionType = kind

	if err := intFromEnv("DB_MAX_CONNECTIONS", 1, &db.MaxConnections); err != nil {
		return err
	}
	if err := intFromEnv("DB_MAX_IDLE_CONNECTIONS", 0, &db.MaxIdleConnections); err != nil {
		return err
	}
	if err := durationFromEnv("DB_CONNECT_TIMEOUT_SECONDS", parseSeconds, &db.ConnectTimeout); err != nil {
		return err
	}
	return boolFromEnv("DB_RUN_MIGRATIONS", &db.RunMigrations)
}

// buildDatabaseURL prefers DATABASE_URL and falls back to a Cloud SQL unix
// socket built from INSTANCE_CONNECTION_NAME and the DB_* variables.
func buildDatabaseURL() (string, string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, "direct", nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", "none", nil
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", "", fmt.Errorf("invalid INSTANCE_CONNECTION_NAME: DB_USER and DB_NAME must also be set")
	}

	dsn := fmt.Sprintf("host=/cloudsql/%s user=%s dbname=%s sslmode=disable", instance, user, name)
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		dsn += " password=" + password
	}
	return dsn, "cloud_sql", nil
}
