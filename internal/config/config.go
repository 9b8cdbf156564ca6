package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// EnvLookup resolves an environment variable. Tests substitute their own.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup reads the process environment.
var DefaultEnvLookup EnvLookup = os.LookupEnv

// Server holds the listen address of the map bridge.
type Server struct {
	Host string
	Port int
}

// Database holds the connection settings of the OSM PostGIS database.
type Database struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Database Database
}

// Load reads configuration from the environment, falling back to the
// documented defaults for anything unset.
func Load(env EnvLookup) Config {
	if env == nil {
		env = DefaultEnvLookup
	}
	return Config{
		Server: Server{
			Host: stringOr(env, "ATLAS_HOST", "127.0.0.1"),
			Port: intOr(env, "ATLAS_PORT", 8888),
		},
		Database: Database{
			Host:     stringOr(env, "PGHOST", "localhost"),
			Port:     intOr(env, "PGPORT", 5432),
			Name:     stringOr(env, "PGDB", "osm"),
			User:     stringOr(env, "PGUSER", "postgres"),
			Password: stringOr(env, "PGPASSWORD", "postgres"),
		},
	}
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN renders the database settings as a connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name)
}

func stringOr(env EnvLookup, key, fallback string) string {
	if raw, ok := env(key); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	return fallback
}

func intOr(env EnvLookup, key string, fallback int) int {
	raw, ok := env(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
