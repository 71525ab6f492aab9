package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/realweather/forecast-service/internal/validation"
)

// Config holds service configuration loaded from YAML and env.
// Precedence: env vars > config file > built-in defaults.
type Config struct {
	ServerPort string

	WarehouseDSN   string
	WarehouseTable string

	UpstreamURL     string
	UpstreamTimeout time.Duration

	Latitude  float64
	Longitude float64
	City      string

	ArtifactPath     string
	KeepVersions     int
	MinTrainingRows  int
	TrainingRowLimit int

	IngestInterval   time.Duration
	TrainingInterval time.Duration

	RequestTimeout time.Duration

	DataDefaultLimit int
	DataMaxLimit     int

	CacheTTL     time.Duration
	CacheBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	DegradedWindow       time.Duration
	DegradedErrorPct     int
	OverloadWindow       time.Duration
	OverloadThresholdPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	WarmCache    bool
	WarmInterval time.Duration

	DashboardPort            string
	PredictAPIURL            string
	DashboardTimeout         time.Duration
	DashboardRefreshInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Warehouse struct {
		DSN   string `yaml:"dsn"`
		Table string `yaml:"table"`
	} `yaml:"warehouse"`

	Upstream struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`

	Weather struct {
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
		City      string   `yaml:"city"`
	} `yaml:"weather"`

	Model struct {
		ArtifactPath     string `yaml:"artifact_path"`
		KeepVersions     *int   `yaml:"keep_versions"`
		MinTrainingRows  int    `yaml:"min_training_rows"`
		TrainingRowLimit int    `yaml:"training_row_limit"`
	} `yaml:"model"`

	Ingest struct {
		Interval string `yaml:"interval"`
	} `yaml:"ingest"`

	Training struct {
		Interval string `yaml:"interval"`
	} `yaml:"training"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Data struct {
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"data"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		Warm         bool   `yaml:"warm"`
		WarmInterval string `yaml:"warm_interval"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Health struct {
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Dashboard struct {
		Port            string `yaml:"port"`
		APIURL          string `yaml:"api_url"`
		Timeout         string `yaml:"timeout"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"dashboard"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev),
// then applies environment variable overrides. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8000"
	}

	cfg.WarehouseDSN = firstNonEmpty(os.Getenv("WAREHOUSE_DSN"), fc.Warehouse.DSN)
	cfg.WarehouseTable = firstNonEmpty(os.Getenv("WAREHOUSE_TABLE"), fc.Warehouse.Table, "readings")

	cfg.UpstreamURL = fc.Upstream.URL
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 10*time.Second)

	// Da Nang, matching the project's default deployment location.
	cfg.Latitude = 16.047079
	cfg.Longitude = 108.206230
	if fc.Weather.Latitude != nil {
		cfg.Latitude = *fc.Weather.Latitude
	}
	if fc.Weather.Longitude != nil {
		cfg.Longitude = *fc.Weather.Longitude
	}
	cfg.City = firstNonEmpty(os.Getenv("WEATHER_CITY"), fc.Weather.City, "Danang")
	if v := os.Getenv("WEATHER_LAT"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("WEATHER_LAT: %w", err)
		}
		cfg.Latitude = lat
	}
	if v := os.Getenv("WEATHER_LON"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("WEATHER_LON: %w", err)
		}
		cfg.Longitude = lon
	}

	cfg.ArtifactPath = firstNonEmpty(os.Getenv("MODEL_ARTIFACT_PATH"), fc.Model.ArtifactPath, "weather_model.json")
	cfg.KeepVersions = 5
	if fc.Model.KeepVersions != nil && *fc.Model.KeepVersions >= 0 {
		cfg.KeepVersions = *fc.Model.KeepVersions
	}
	cfg.MinTrainingRows = fc.Model.MinTrainingRows
	if cfg.MinTrainingRows <= 0 {
		cfg.MinTrainingRows = 3
	}
	cfg.TrainingRowLimit = fc.Model.TrainingRowLimit
	if cfg.TrainingRowLimit <= 0 {
		cfg.TrainingRowLimit = 1000
	}

	cfg.IngestInterval = parseDuration(fc.Ingest.Interval, 5*time.Minute)
	cfg.TrainingInterval = parseDuration(fc.Training.Interval, 24*time.Hour)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.DataDefaultLimit = fc.Data.DefaultLimit
	if cfg.DataDefaultLimit <= 0 {
		cfg.DataDefaultLimit = 100
	}
	cfg.DataMaxLimit = fc.Data.MaxLimit
	if cfg.DataMaxLimit <= 0 {
		cfg.DataMaxLimit = 1000
	}

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 1*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.WarmCache = fc.Cache.Warm
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DashboardPort = fc.Dashboard.Port
	if cfg.DashboardPort == "" {
		cfg.DashboardPort = "8501"
	}
	cfg.PredictAPIURL = firstNonEmpty(os.Getenv("PREDICT_API_URL"), fc.Dashboard.APIURL, "http://localhost:8000")
	cfg.DashboardTimeout = parseDuration(fc.Dashboard.Timeout, 5*time.Second)
	cfg.DashboardRefreshInterval = parseDuration(fc.Dashboard.RefreshInterval, 60*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// firstNonEmpty returns the first value that is non-empty after trimming.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. Missing required fields and
// out-of-range values fail startup with a descriptive message.
func validate(cfg *Config) error {
	if cfg.WarehouseDSN == "" {
		return fmt.Errorf("warehouse.dsn required (set WAREHOUSE_DSN env or warehouse.dsn in config)")
	}
	if err := validation.ValidateCoordinates(cfg.Latitude, cfg.Longitude); err != nil {
		return fmt.Errorf("weather coordinates (%v, %v): %w", cfg.Latitude, cfg.Longitude, err)
	}
	if cfg.ArtifactPath == "" {
		return fmt.Errorf("model.artifact_path required")
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.DataDefaultLimit > cfg.DataMaxLimit {
		return fmt.Errorf("data.default_limit (%d) must not exceed data.max_limit (%d)", cfg.DataDefaultLimit, cfg.DataMaxLimit)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
