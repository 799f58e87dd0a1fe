package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	ResultsDatabaseURL string
	RedisAddr          string
	RedisTTL           time.Duration
	NATSURL            string
	NATSSubjectPrefix  string
	Region             string
	ItinerariesPath    string
	OutputPath         string
	RunConfigPath      string
	Workers            int
	MaxTravelMinutes   float64
	Location           *time.Location
	Verbose            bool
	MetricsAddr        string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Fare rules database: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		// If REGION is provided, default base DB to 'postgres' when PGDATABASE is not set.
		if db == "" && os.Getenv("REGION") != "" {
			db = "postgres"
		}
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set (set PGDATABASE=postgres when using REGION)")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.Region = strings.TrimSpace(os.Getenv("REGION"))
	cfg.RunConfigPath = os.Getenv("RUN_CONFIG")
	cfg.ItinerariesPath = os.Getenv("ITINERARIES_PATH")
	if cfg.ItinerariesPath == "" && cfg.RunConfigPath == "" {
		return nil, errors.New("ITINERARIES_PATH or RUN_CONFIG must be set")
	}
	cfg.OutputPath = getenvDefault("OUTPUT_PATH", "fare_matrix.csv")

	// Optional sinks; empty disables each one.
	cfg.ResultsDatabaseURL = os.Getenv("RESULTS_DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if v := os.Getenv("REDIS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid REDIS_TTL: %q", v)
		}
		cfg.RedisTTL = d
	}
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "fares")

	// Worker pool size
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKERS: %q", v)
		}
		cfg.Workers = n
	} else {
		cfg.Workers = runtime.NumCPU()
	}

	// Travel time limit for option selection (minutes, 0 disables)
	if v := os.Getenv("MAX_FARE_TRAVEL_MINUTES"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid MAX_FARE_TRAVEL_MINUTES: %q", v)
		}
		cfg.MaxTravelMinutes = f
	} else {
		cfg.MaxTravelMinutes = 180
	}

	cfg.Verbose = parseBool(os.Getenv("VERBOSE"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Time zone for departure times without an offset
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
