package config

// Config is the root configuration for a telemetry instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Database  DBConfig        `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retention RetentionConfig `yaml:"retention"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Reference ReferenceConfig `yaml:"reference"`
}

// InstanceConfig identifies this telemetry process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// ReadOnly turns every write path into a no-op returning an empty
	// accepted set. Used for dry runs against a production database.
	ReadOnly bool `yaml:"read_only"`
}

// EngineConfig holds metric computation settings.
type EngineConfig struct {
	// TimestampCount is how many consecutive minute timestamps each run
	// recomputes, backfilling ticks missed between runs.
	TimestampCount int `yaml:"timestamp_count"`

	// FreshnessMinutes is how stale a ticker snapshot may be before the
	// ticker valuation skips it.
	FreshnessMinutes int `yaml:"freshness_minutes"`

	// WindowOffsetMinutes shifts the DAY/MTD/YTD window boundaries to
	// approximate a local timezone as a fixed UTC offset. Nil applies the
	// default; an explicit 0 keeps the boundaries in UTC.
	WindowOffsetMinutes *int `yaml:"window_offset_minutes"`
}

// SchedulerConfig holds per-task interval overrides.
type SchedulerConfig struct {
	MetricsInterval Duration `yaml:"metrics_interval"`
	PurgeInterval   Duration `yaml:"purge_interval"`
}

// RetentionConfig holds metric retention tiers. An empty list applies the
// built-in defaults; a non-empty list replaces them tier by tier.
type RetentionConfig struct {
	Tiers []RetentionTier `yaml:"tiers"`
}

// RetentionTier thins metric rows older than Days to one sample per
// KeepMinutes offset. An empty KeepMinutes deletes everything past the
// cutoff. Disabled tiers are skipped entirely.
type RetentionTier struct {
	Days        int   `yaml:"days"`
	KeepMinutes []int `yaml:"keep_minutes"`
	Disabled    bool  `yaml:"disabled"`
}

// MetricsConfig holds the gauge exporter endpoint.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
