package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN   string `env:"POSTGRES_DSN,required"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	HealthPort    int    `env:"HEALTH_PORT" envDefault:"8080"`
	HTTPPort      int    `env:"HTTP_PORT" envDefault:"8090"`

	// AdminAPIToken guards the on-demand admin send endpoint.
	AdminAPIToken string `env:"ADMIN_API_TOKEN"`

	LLMAPIKey    string `env:"LLM_API_KEY"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMRateRPS   int    `env:"LLM_RATE_RPS" envDefault:"1"`
	LLMRateBurst int    `env:"LLM_RATE_BURST" envDefault:"5"`

	// ReportWindow is how far back a generation looks for feedback.
	ReportWindow time.Duration `env:"REPORT_WINDOW" envDefault:"168h"`
	// ReportTopItems bounds how many candidates get full analysis.
	ReportTopItems int `env:"REPORT_TOP_ITEMS" envDefault:"5"`
	// ReportHighlightCount bounds the top-comments highlight section.
	ReportHighlightCount int `env:"REPORT_HIGHLIGHT_COUNT" envDefault:"5"`

	// CacheMaxAge marks cached reports older than this as stale.
	CacheMaxAge time.Duration `env:"REPORT_CACHE_MAX_AGE" envDefault:"168h"`

	// Batch regeneration schedule (UTC).
	BatchDay  time.Weekday `env:"BATCH_DAY" envDefault:"1"`
	BatchHour int          `env:"BATCH_HOUR" envDefault:"11"`

	// Admin distribution schedule (UTC), offset after the batch run.
	AdminDay  time.Weekday `env:"ADMIN_DAY" envDefault:"1"`
	AdminHour int          `env:"ADMIN_HOUR" envDefault:"15"`

	// AdminSendInterval paces delivery between admin configs.
	AdminSendInterval time.Duration `env:"ADMIN_SEND_INTERVAL" envDefault:"45s"`

	SchedulerTickInterval time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"1m"`
	JobPollInterval       time.Duration `env:"JOB_POLL_INTERVAL" envDefault:"5s"`

	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
