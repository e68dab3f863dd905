// Package config loads server settings from .env, the environment and
// command-line flags, in that order of increasing precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StatusModeLegacy = "legacy"
	StatusModeStrict = "strict"
)

// Config holds application configuration.
type Config struct {
	Port int

	DBDriver string // sqlite | postgres | memory
	DBURL    string // file path for sqlite, connection string for postgres

	Location *time.Location
	LogLevel string

	// StatusMode picks how business failures map to HTTP codes.
	StatusMode string
	// ActorHeader names the request header carrying the operator id.
	ActorHeader string
	CORSOrigins []string

	EnforceCatalogPrices bool
	DemoEnabled          bool
}

// Load reads .env (if present) and the environment, then applies args as
// flags on top. args excludes the program name.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("cantina", flag.ContinueOnError)
	port := fs.Int("port", getenvInt("PORT", 8080), "HTTP server port")
	driver := fs.String("driver", getenv("DATABASE_DRIVER", "sqlite"), "database driver (sqlite, postgres or memory)")
	dbURL := fs.String("db", getenv("DATABASE_URL", "cantina.db"), "SQLite path or PostgreSQL URL")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	tz := getenv("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	mode := strings.ToLower(strings.TrimSpace(getenv("ERROR_STATUS_MODE", StatusModeLegacy)))
	if mode != StatusModeLegacy && mode != StatusModeStrict {
		return Config{}, fmt.Errorf("invalid ERROR_STATUS_MODE %q (use %s or %s)", mode, StatusModeLegacy, StatusModeStrict)
	}

	driverName := strings.ToLower(strings.TrimSpace(*driver))
	switch driverName {
	case "sqlite", "sqlite3":
		driverName = "sqlite"
	case "postgres", "postgresql", "pgx":
		driverName = "postgres"
	case "memory":
	default:
		return Config{}, fmt.Errorf("invalid DATABASE_DRIVER %q", *driver)
	}

	return Config{
		Port:                 *port,
		DBDriver:             driverName,
		DBURL:                *dbURL,
		Location:             loc,
		LogLevel:             getenv("LOG_LEVEL", "info"),
		StatusMode:           mode,
		ActorHeader:          getenv("ACTOR_HEADER", "X-Actor-ID"),
		CORSOrigins:          splitList(getenv("CORS_ORIGINS", "*")),
		EnforceCatalogPrices: getenvBool("ENFORCE_CATALOG_PRICES", false),
		DemoEnabled:          getenvBool("DEMO_ENABLED", false),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
