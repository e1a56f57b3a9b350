package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Database struct {
		// "sqlite" or "postgres"
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DATABASE_DSN" envDefault:"data/propure.db"`
	}

	Workflow struct {
		// Number of suburbs processed concurrently within one batch
		SuburbConcurrency int `env:"WORKFLOW_SUBURB_CONCURRENCY" envDefault:"5"`

		// Page size used against the listing store
		PageSize int `env:"WORKFLOW_PAGE_SIZE" envDefault:"100"`

		ListingTypes []string `env:"WORKFLOW_LISTING_TYPES" envSeparator:"," envDefault:"rent,sold,sale"`

		// Census years fetched by the demographics sync
		CensusYears []int `env:"WORKFLOW_CENSUS_YEARS" envSeparator:"," envDefault:"2021"`
	}

	Steps struct {
		// Maximum number of retries for a failed step
		MaxRetries int `env:"STEP_MAX_RETRIES" envDefault:"3"`

		// Base delay between retries in seconds, doubled per attempt
		RetryDelay int `env:"STEP_RETRY_DELAY" envDefault:"2"`
	}

	GoogleMaps struct {
		APIKey string `env:"GOOGLE_MAPS_API_KEY"`

		// Per request timeout in seconds
		Timeout int `env:"GOOGLE_MAPS_TIMEOUT" envDefault:"5"`

		CacheDir string `env:"GEOCODE_CACHE_DIR"`

		InfrastructureRadius int `env:"INFRASTRUCTURE_RADIUS_METERS" envDefault:"5000"`
	}

	Scraper struct {
		Command string `env:"SCRAPER_COMMAND" envDefault:"python3"`
		Script  string `env:"SCRAPER_SCRIPT" envDefault:"scripts/scrape_listings.py"`
	}

	Scheduler struct {
		SyncCron         string `env:"SCHEDULER_SYNC_CRON" envDefault:"0 */6 * * *"`
		MetricsCron      string `env:"SCHEDULER_METRICS_CRON" envDefault:"30 2 * * *"`
		DemographicsCron string `env:"SCHEDULER_DEMOGRAPHICS_CRON" envDefault:"0 4 * * 0"`
		RunOnStartup     bool   `env:"SCHEDULER_RUN_ON_STARTUP" envDefault:"false"`
	}

	Queue struct {
		BufferSize int `env:"QUEUE_BUFFER_SIZE" envDefault:"32"`
	}

	LocationsFile string `env:"LOCATIONS_FILE" envDefault:"config/locations.yaml"`

	API struct {
		Port        string   `env:"API_PORT" envDefault:"5250"`
		JWTSecret   string   `env:"JWT_SECRET"`
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Telegram struct {
		BotToken string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `env:"TELEGRAM_CHAT_ID"`
	}
}

// LoadConfig reads an optional .env file and then parses the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Workflow.SuburbConcurrency <= 0 {
		return fmt.Errorf("WORKFLOW_SUBURB_CONCURRENCY must be positive, got %d", c.Workflow.SuburbConcurrency)
	}
	if c.Workflow.PageSize <= 0 {
		return fmt.Errorf("WORKFLOW_PAGE_SIZE must be positive, got %d", c.Workflow.PageSize)
	}
	if c.Steps.MaxRetries < 0 {
		return fmt.Errorf("STEP_MAX_RETRIES must not be negative, got %d", c.Steps.MaxRetries)
	}
	if c.Steps.RetryDelay < 0 {
		return fmt.Errorf("STEP_RETRY_DELAY must not be negative, got %d", c.Steps.RetryDelay)
	}
	for _, t := range c.Workflow.ListingTypes {
		switch t {
		case "rent", "sold", "sale":
		default:
			return fmt.Errorf("unknown listing type %q in WORKFLOW_LISTING_TYPES", t)
		}
	}
	for _, year := range c.Workflow.CensusYears {
		if year < 1900 || year > 2100 {
			return fmt.Errorf("invalid census year %d in WORKFLOW_CENSUS_YEARS", year)
		}
	}
	return nil
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Steps.RetryDelay) * time.Second
}

func (c *Config) MapsTimeout() time.Duration {
	return time.Duration(c.GoogleMaps.Timeout) * time.Second
}
