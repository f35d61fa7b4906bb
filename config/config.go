package config

import "github.com/caarlos0/env/v6"

type Config struct {
	Server struct {
		Port int `env:"SERVER_PORT" envDefault:"5260"`

		// Path to the SQLite database file
		DatabasePath string `env:"DATABASE_PATH" envDefault:"database/cityscope.db"`
	}

	// Recompute configuration for async feasibility/projection runs
	Recompute struct {
		// Number of concurrent recompute workers
		WorkerCount int `env:"RECOMPUTE_WORKER_COUNT" envDefault:"2"`

		// Buffered queue capacity for pending jobs
		QueueSize int `env:"RECOMPUTE_QUEUE_SIZE" envDefault:"64"`

		// Maximum number of retries for failed computations
		MaxRetries int `env:"RECOMPUTE_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"RECOMPUTE_RETRY_DELAY" envDefault:"5"`
	}

	// Ingest configuration for snapshot batch processing
	Ingest struct {
		QueueSize      int `env:"INGEST_QUEUE_SIZE" envDefault:"16"`
		ProcessorCount int `env:"INGEST_PROCESSOR_COUNT" envDefault:"2"`
		MaxRetries     int `env:"INGEST_MAX_RETRIES" envDefault:"3"`
		RetryDelay     int `env:"INGEST_RETRY_DELAY" envDefault:"5"`
	}

	// Projection simulation rates (percentages as whole numbers)
	Projection struct {
		RevenueGrowthPct float64 `env:"PROJECTION_REVENUE_GROWTH_PCT" envDefault:"3"`
		ExpenseGrowthPct float64 `env:"PROJECTION_EXPENSE_GROWTH_PCT" envDefault:"2"`
		ExpenseRatioPct  float64 `env:"PROJECTION_EXPENSE_RATIO_PCT" envDefault:"35"`

		// Upper bound enforced at the API boundary; the engine itself
		// accepts any positive year count
		MaxYears     int `env:"PROJECTION_MAX_YEARS" envDefault:"10"`
		DefaultYears int `env:"PROJECTION_DEFAULT_YEARS" envDefault:"10"`
	}

	// Cache TTLs in seconds for the read-side analytics endpoints
	Cache struct {
		RankingsTTL  int `env:"CACHE_RANKINGS_TTL" envDefault:"900"`
		TrendsTTL    int `env:"CACHE_TRENDS_TTL" envDefault:"600"`
		DashboardTTL int `env:"CACHE_DASHBOARD_TTL" envDefault:"300"`

		// Interval between scheduled cache rewarms in seconds
		RefreshInterval int `env:"CACHE_REFRESH_INTERVAL" envDefault:"900"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
