package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/philjs-dev/philjs/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "philjs.json"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"
)

// Adapter names accepted in CacheConfig.Adapter.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterBadger = "badger"
	AdapterS3     = "s3"
)

// Config represents the complete philjs.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Port is the server port.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Cache selects and configures the cache storage adapter.
	Cache CacheConfig `json:"cache,omitempty"`

	// ISR contains revalidation settings.
	ISR ISRConfig `json:"isr,omitempty"`

	// Observability toggles the metrics and tracing middleware.
	Observability ObservabilityConfig `json:"observability,omitempty"`

	// Dev contains development settings.
	Dev DevConfig `json:"dev,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// CacheConfig selects the storage adapter behind the page cache.
type CacheConfig struct {
	// Adapter is one of "memory", "fs", "badger", "s3".
	Adapter string `json:"adapter,omitempty"`

	// MaxEntries bounds the memory adapter. 0 uses the built-in default.
	MaxEntries int `json:"maxEntries,omitempty"`

	// Dir is the cache directory for the fs adapter.
	Dir string `json:"dir,omitempty"`

	// BadgerPath is the database directory for the badger adapter.
	BadgerPath string `json:"badgerPath,omitempty"`

	// S3Bucket, S3Prefix and S3Region configure the s3 adapter.
	S3Bucket string `json:"s3Bucket,omitempty"`
	S3Prefix string `json:"s3Prefix,omitempty"`
	S3Region string `json:"s3Region,omitempty"`
}

// ISRConfig contains revalidation settings. Durations are strings in Go
// syntax, e.g. "90s" or "2m".
type ISRConfig struct {
	// Interval is the default revalidation interval for new entries.
	Interval string `json:"interval,omitempty"`

	// SWRWindow is how long stale entries may be served while a
	// regeneration runs in the background.
	SWRWindow string `json:"swrWindow,omitempty"`

	// MaxConcurrent bounds simultaneous regenerations.
	MaxConcurrent int `json:"maxConcurrent,omitempty"`

	// MaxRetries bounds automatic retries after a render failure.
	MaxRetries int `json:"maxRetries,omitempty"`

	// InitialDelay is the first retry backoff delay.
	InitialDelay string `json:"initialDelay,omitempty"`

	// MaxDelay caps the retry backoff.
	MaxDelay string `json:"maxDelay,omitempty"`

	// BackoffMultiplier grows the delay per retry.
	BackoffMultiplier float64 `json:"backoffMultiplier,omitempty"`

	// SchedulerInterval is how often the background scheduler scans for
	// stale entries. Empty disables the scheduler.
	SchedulerInterval string `json:"schedulerInterval,omitempty"`
}

// ObservabilityConfig toggles the observability middleware.
type ObservabilityConfig struct {
	// Metrics enables the Prometheus middleware and /metrics endpoint.
	Metrics bool `json:"metrics,omitempty"`

	// Tracing enables the OpenTelemetry middleware.
	Tracing bool `json:"tracing,omitempty"`
}

// DevConfig contains development settings.
type DevConfig struct {
	// Feed enables the websocket event feed at /_philjs/events.
	Feed bool `json:"feed,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Port: DefaultPort,
		Host: DefaultHost,
		Cache: CacheConfig{
			Adapter: AdapterMemory,
		},
		ISR: ISRConfig{
			Interval:          "60s",
			SWRWindow:         "5m",
			MaxConcurrent:     2,
			MaxRetries:        3,
			InitialDelay:      "1s",
			MaxDelay:          "30s",
			BackoffMultiplier: 2,
			SchedulerInterval: "60s",
		},
		Observability: ObservabilityConfig{
			Metrics: true,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for philjs.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
// A missing file is not an error: defaults are returned.
func LoadFile(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.New("E301").Wrap(err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E301").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that philjs.json is valid JSON")
	}
	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E301").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E301").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	def := New()
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Cache.Adapter == "" {
		c.Cache.Adapter = def.Cache.Adapter
	}
	if c.ISR.Interval == "" {
		c.ISR.Interval = def.ISR.Interval
	}
	if c.ISR.SWRWindow == "" {
		c.ISR.SWRWindow = def.ISR.SWRWindow
	}
	if c.ISR.MaxConcurrent == 0 {
		c.ISR.MaxConcurrent = def.ISR.MaxConcurrent
	}
	if c.ISR.MaxRetries == 0 {
		c.ISR.MaxRetries = def.ISR.MaxRetries
	}
	if c.ISR.InitialDelay == "" {
		c.ISR.InitialDelay = def.ISR.InitialDelay
	}
	if c.ISR.MaxDelay == "" {
		c.ISR.MaxDelay = def.ISR.MaxDelay
	}
	if c.ISR.BackoffMultiplier == 0 {
		c.ISR.BackoffMultiplier = def.ISR.BackoffMultiplier
	}
}

// Validate checks field values and duration syntax.
func (c *Config) Validate() error {
	switch c.Cache.Adapter {
	case AdapterMemory:
	case AdapterFS:
		if c.Cache.Dir == "" {
			return errors.New("E302").
				WithDetail("cache.adapter is \"fs\" but cache.dir is empty").
				WithSuggestion("Set cache.dir to the directory for cached pages")
		}
	case AdapterBadger:
		if c.Cache.BadgerPath == "" {
			return errors.New("E302").
				WithDetail("cache.adapter is \"badger\" but cache.badgerPath is empty").
				WithSuggestion("Set cache.badgerPath to the database directory")
		}
	case AdapterS3:
		if c.Cache.S3Bucket == "" {
			return errors.New("E302").
				WithDetail("cache.adapter is \"s3\" but cache.s3Bucket is empty").
				WithSuggestion("Set cache.s3Bucket to the bucket name")
		}
	default:
		return errors.New("E302").
			WithDetail("unknown cache.adapter " + c.Cache.Adapter).
			WithSuggestion("Use one of: memory, fs, badger, s3")
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.New("E302").WithDetail("port must be between 1 and 65535")
	}
	if c.ISR.BackoffMultiplier < 1 {
		return errors.New("E302").WithDetail("isr.backoffMultiplier must be at least 1")
	}

	durations := map[string]string{
		"isr.interval":     c.ISR.Interval,
		"isr.swrWindow":    c.ISR.SWRWindow,
		"isr.initialDelay": c.ISR.InitialDelay,
		"isr.maxDelay":     c.ISR.MaxDelay,
	}
	if c.ISR.SchedulerInterval != "" {
		durations["isr.schedulerInterval"] = c.ISR.SchedulerInterval
	}
	for field, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.New("E302").
				WithDetail(field + " is not a valid duration: " + value).
				WithSuggestion("Use Go duration syntax, e.g. \"90s\" or \"2m\"")
		}
	}
	return nil
}

// Address returns the host:port the server binds to.
func (c *Config) Address() string {
	return c.Host + ":" + itoa(c.Port)
}

// Interval returns the parsed default revalidation interval.
func (c *Config) Interval() time.Duration {
	return mustDuration(c.ISR.Interval, 60*time.Second)
}

// SWRWindow returns the parsed stale-while-revalidate window.
func (c *Config) SWRWindow() time.Duration {
	return mustDuration(c.ISR.SWRWindow, 5*time.Minute)
}

// InitialDelay returns the parsed first retry delay.
func (c *Config) InitialDelay() time.Duration {
	return mustDuration(c.ISR.InitialDelay, time.Second)
}

// MaxDelay returns the parsed backoff cap.
func (c *Config) MaxDelay() time.Duration {
	return mustDuration(c.ISR.MaxDelay, 30*time.Second)
}

// SchedulerInterval returns the parsed scheduler scan interval.
// Zero means the scheduler is disabled.
func (c *Config) SchedulerInterval() time.Duration {
	if c.ISR.SchedulerInterval == "" {
		return 0
	}
	return mustDuration(c.ISR.SchedulerInterval, 0)
}

// Exists reports whether a philjs.json exists in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// mustDuration parses a duration already checked by Validate, falling back
// to def for values that never went through validation.
func mustDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
