// Package config loads the static pipeline configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DateFormat is the canonical date layout used across the pipeline.
const DateFormat = "2006-01-02"

// Duration is a time.Duration that unmarshals from YAML strings like "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	API        APIConfig        `yaml:"api"`
	Orders     OrdersConfig     `yaml:"orders"`
	Transform  TransformConfig  `yaml:"transform"`
	Validation ValidationConfig `yaml:"validation"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// APIConfig configures the product catalog fetch.
type APIConfig struct {
	URL            string        `yaml:"url"`
	UserAgent      string        `yaml:"user_agent"`
	Timeout        Duration      `yaml:"timeout"`
	RetryCount     int           `yaml:"retry_count"`
	RetryBaseDelay Duration      `yaml:"retry_base_delay"`
}

// OrdersConfig configures the order source.
type OrdersConfig struct {
	Mode  string `yaml:"mode"` // "synthetic" | "csv"
	Path  string `yaml:"path"` // CSV location; synthetic mode writes here too
	Count int    `yaml:"count"`
	Seed  uint64 `yaml:"seed"` // 0 = non-deterministic
}

// TransformConfig configures enrichment.
type TransformConfig struct {
	TaxRate   float64 `yaml:"tax_rate"`
	SourceTag string  `yaml:"source_tag"`
}

// ValidationConfig configures the row schema checks.
type ValidationConfig struct {
	MinAllowedDate    string   `yaml:"min_allowed_date"`
	MaxRejectionRate  float64  `yaml:"max_rejection_rate"`
	AllowedCategories []string `yaml:"allowed_categories"` // empty = open list
}

// OutputConfig configures the report snapshot.
type OutputConfig struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`      // "csv" | "parquet"
	Compression string `yaml:"compression"` // "none" | "gzip" | "zstd" (csv only)
	Bucket      string `yaml:"bucket"`      // gs:// or s3:// URL; empty = local filesystem
}

type LoggingConfig struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`
	Path   string `yaml:"path"` // append-only log file; empty = stdout only
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:            "https://fakestoreapi.com/products",
			UserAgent:      "reportfeed/1.0",
			Timeout:        Duration(10 * time.Second),
			RetryCount:     3,
			RetryBaseDelay: Duration(time.Second),
		},
		Orders: OrdersConfig{
			Mode:  "synthetic",
			Path:  "sample_orders.csv",
			Count: 50,
		},
		Transform: TransformConfig{
			TaxRate:   0.10,
			SourceTag: "api+csv",
		},
		Validation: ValidationConfig{
			MinAllowedDate:   "2000-01-01",
			MaxRejectionRate: 0.5,
		},
		Output: OutputConfig{
			Path:        "business_report.csv",
			Format:      "csv",
			Compression: "none",
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
			Path:   "pipeline.log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads the configuration file at path (optional), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded config so
// container deployments can tweak settings without a file edit.
func applyEnv(cfg *Config) {
	cfg.API.URL = getenvDefault("API_URL", cfg.API.URL)
	cfg.Orders.Path = getenvDefault("ORDERS_PATH", cfg.Orders.Path)
	cfg.Output.Path = getenvDefault("OUTPUT_PATH", cfg.Output.Path)
	cfg.Output.Bucket = getenvDefault("OUTPUT_BUCKET", cfg.Output.Bucket)
	cfg.Logging.Path = getenvDefault("LOG_PATH", cfg.Logging.Path)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)

	if v := os.Getenv("ORDER_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Orders.Count = parsed
		}
	}
	if v := os.Getenv("RETRY_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.API.RetryCount = parsed
		}
	}
	if v := os.Getenv("TAX_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Transform.TaxRate = parsed
		}
	}
	if os.Getenv("METRICS_ENABLED") == "true" {
		cfg.Metrics.Enabled = true
	}
}

// Validate checks ranges and parses derived fields.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if c.API.RetryCount < 1 {
		return fmt.Errorf("api.retry_count must be >= 1, got %d", c.API.RetryCount)
	}
	if c.API.RetryBaseDelay <= 0 {
		return fmt.Errorf("api.retry_base_delay must be > 0")
	}
	switch c.Orders.Mode {
	case "synthetic", "csv":
	default:
		return fmt.Errorf("orders.mode must be synthetic or csv, got %q", c.Orders.Mode)
	}
	if c.Orders.Mode == "synthetic" && c.Orders.Count < 1 {
		return fmt.Errorf("orders.count must be >= 1, got %d", c.Orders.Count)
	}
	if c.Transform.TaxRate < 0 {
		return fmt.Errorf("transform.tax_rate must be >= 0, got %f", c.Transform.TaxRate)
	}
	if c.Validation.MaxRejectionRate <= 0 || c.Validation.MaxRejectionRate > 1 {
		return fmt.Errorf("validation.max_rejection_rate must be in (0, 1], got %f", c.Validation.MaxRejectionRate)
	}
	if _, err := time.Parse(DateFormat, c.Validation.MinAllowedDate); err != nil {
		return fmt.Errorf("validation.min_allowed_date: %w", err)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	switch c.Output.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("output.format must be csv or parquet, got %q", c.Output.Format)
	}
	switch c.Output.Compression {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("output.compression must be none, gzip or zstd, got %q", c.Output.Compression)
	}
	return nil
}

// MinDate returns the parsed lower bound for order dates. A zero time
// is returned when the configured value is unparsable; Validate catches
// that case at load.
func (v ValidationConfig) MinDate() time.Time {
	t, err := time.Parse(DateFormat, v.MinAllowedDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
