/*
config.go - Server configuration

PURPOSE:
  Loads server configuration from environment variables, with a .env file
  picked up when present. Command-line flags in cmd/server override the
  environment.

VARIABLES:
  HTTP_ADDR     Listen address (default ":8080")
  STORE_DRIVER  "sqlite" or "postgres" (default "sqlite")
  SQLITE_PATH   SQLite database path, ":memory:" allowed (default "ledger.db")
  POSTGRES_DSN  Connection string for the postgres driver

SEE ALSO:
  - cmd/server/main.go: flag overrides and store selection
*/
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr    string
	StoreDriver string
	SQLitePath  string
	PostgresDSN string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if it exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		StoreDriver: getenv("STORE_DRIVER", DriverSQLite),
		SQLitePath:  getenv("SQLITE_PATH", "ledger.db"),
		PostgresDSN: getenv("POSTGRES_DSN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
