package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingStoreConfig = errors.New("missing persistence configuration")

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	MySQLDSN    string
	SQLitePath  string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	SitesFile string
	Workers   int

	FetchTimeout time.Duration
	FetchRPS     int
	UserAgent    string

	TranslateURL      string
	TranslateTimeout  time.Duration
	TranslateRetries  int
	TranslateMaxChars int
	TranslateCacheTTL time.Duration

	Headless bool
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		StoreDriver: env("STORE_DRIVER", "mongo"),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     env("MONGO_DB", "hotel_data"),
		MySQLDSN:    os.Getenv("MYSQL_DSN"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		SitesFile: os.Getenv("SITES_FILE"),
		Workers:   atoi("SCRAPE_WORKERS", 4),

		FetchTimeout: time.Duration(atoi("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		FetchRPS:     atoi("FETCH_RPS", 2),
		UserAgent:    env("USER_AGENT", "hotel-scraper/1.0"),

		TranslateURL:      env("TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
		TranslateTimeout:  time.Duration(atoi("TRANSLATE_TIMEOUT_SECONDS", 10)) * time.Second,
		TranslateRetries:  atoi("TRANSLATE_RETRIES", 0),
		TranslateMaxChars: atoi("TRANSLATE_MAX_CHARS", 500),
		TranslateCacheTTL: time.Duration(atoi("TRANSLATE_CACHE_TTL_SECONDS", 86400)) * time.Second,

		Headless: env("BROWSER_HEADLESS", "true") != "false",
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// StoreDSN returns the connection string for the selected driver. Absence is a
// startup error.
func (c Config) StoreDSN() (string, error) {
	var dsn, key string
	switch c.StoreDriver {
	case "mongo":
		dsn, key = c.MongoURI, "MONGO_URI"
	case "mysql":
		dsn, key = c.MySQLDSN, "MYSQL_DSN"
	case "sqlite":
		dsn, key = c.SQLitePath, "SQLITE_PATH"
	default:
		return "", fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if dsn == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingStoreConfig, key)
	}
	return dsn, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
