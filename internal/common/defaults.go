package common

import "time"

// DefaultConfig returns the baseline configuration. Sample deployments
// override most of this; the retry table in particular is operational
// policy, not product behavior.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/orbiter",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Production: ProductionConfig{
			Schedule:        "*/7 * * * *",
			BatchSize:       500,
			OrderPriority:   "normal",
			OrphanThreshold: 10 * time.Minute,
			PurgeRetention:  10 * 24 * time.Hour,
			PurgeLockTTL:    30 * time.Minute,
			PurgeReport:     true,
			DefaultRetries:  5,
			Retry: map[string]RetryRule{
				"network":      {Timeout: 15 * time.Minute, Limit: 8},
				"ssh":          {Timeout: 10 * time.Minute, Limit: 8},
				"db_lock":      {Timeout: 5 * time.Minute, Limit: 10},
				"archive":      {Timeout: 30 * time.Minute, Limit: 5},
				"node":         {Timeout: 15 * time.Minute, Limit: 6},
				"sixs":         {Timeout: 10 * time.Minute, Limit: 5},
				"aux_data":     {Timeout: 24 * time.Hour, Limit: 5},
				"cache_repull": {Timeout: 30 * time.Minute, Limit: 3},
			},
		},
		Cache: CacheConfig{
			Root:            "./data/cache",
			DownloadBaseURL: "http://localhost/orders",
		},
		Landsat: LandsatConfig{
			BaseURL:   "http://localhost:8801",
			Timeout:   60 * time.Second,
			RateLimit: 2,
		},
		Modis: ModisConfig{
			BaseURL: "http://localhost:8802",
			Timeout: 30 * time.Second,
		},
		Grid: GridConfig{
			BaseURL: "http://localhost:8803",
			Timeout: 30 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     "localhost",
			Port:     587,
			FromName: "Orbiter",
			UseTLS:   true,
		},
	}
}
