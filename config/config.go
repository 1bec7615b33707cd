package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBDriver         string `envconfig:"DB_DRIVER" default:"postgres"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"scraper"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"scraper123"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"price_compare"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	SQLitePath       string `envconfig:"SQLITE_PATH" default:"./output/prices.db"`

	Countries       []string      `envconfig:"COUNTRIES" default:"hr,si,at,de"`
	ScrapeLimit     int           `envconfig:"SCRAPE_LIMIT" default:"50"`
	MaxConcurrency  int           `envconfig:"MAX_CONCURRENCY" default:"2"`
	RequestDelay    time.Duration `envconfig:"REQUEST_DELAY" default:"200ms"`
	RetryDelay      time.Duration `envconfig:"RETRY_DELAY" default:"1s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"2"`
	NavTimeout      time.Duration `envconfig:"NAV_TIMEOUT" default:"10s"`
	SettleDelay     time.Duration `envconfig:"SETTLE_DELAY" default:"1500ms"`
	CategoryTimeout time.Duration `envconfig:"CATEGORY_TIMEOUT" default:"15s"`
	SitemapTimeout  time.Duration `envconfig:"SITEMAP_TIMEOUT" default:"20s"`

	CSVOutputPath  string `envconfig:"CSV_OUTPUT_PATH" default:"./output/raw_listings.csv"`
	JSONOutputPath string `envconfig:"JSON_OUTPUT_PATH" default:"./output/comparison.json"`
	ChromeBin      string `envconfig:"CHROME_BIN"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":3001"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("config: DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.ScrapeLimit < 1 {
		return fmt.Errorf("config: SCRAPE_LIMIT must be positive, got %d", c.ScrapeLimit)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	for i, country := range c.Countries {
		c.Countries[i] = strings.ToLower(strings.TrimSpace(country))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
