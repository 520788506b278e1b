package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every setting the toolkit needs. It is built once at startup and passed
// explicitly to each component.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Instana    InstanaConfig    `yaml:"instana"`
	Logging    LoggingConfig    `yaml:"logging"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Filters    FiltersConfig    `yaml:"filters"`
	Actions    ActionsConfig    `yaml:"actions"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Output     OutputConfig     `yaml:"output"`
	Cache      CacheConfig      `yaml:"cache"`

	// Warnings collects non-fatal problems found while loading, for the caller to log.
	Warnings []string `yaml:"-"`
}

// ServerConfig controls the listeners used by the serve command.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// InstanaConfig configures access to the Instana REST API.
type InstanaConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	APIToken      string        `yaml:"apiToken"`
	ApplicationID string        `yaml:"applicationId"`
	Timeout       time.Duration `yaml:"timeout"`
	// RateLimit caps outbound requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EnrichmentConfig tunes the PRC enrichment fan-out.
type EnrichmentConfig struct {
	MaxConcurrency int `yaml:"maxConcurrency"`
	RetrievalSize  int `yaml:"retrievalSize"`
}

// FilterConfig describes which incidents a command processes.
type FilterConfig struct {
	Type            string   `yaml:"type"`
	RequireOpen     bool     `yaml:"requireOpen"`
	RequirePRC      bool     `yaml:"requirePRC"`
	ProblemPrefixes []string `yaml:"problemPrefixes"`
}

// FiltersConfig groups the incident filters and the incident-id selector profiles.
type FiltersConfig struct {
	PRC     FilterConfig `yaml:"prc"`
	Actions FilterConfig `yaml:"actions"`
	// Selectors maps an incident id to the entity-label prefixes it narrows to.
	Selectors  map[int][]string `yaml:"selectors"`
	IncidentID *int             `yaml:"incidentId"`
}

// RetryConfig is the bounded retry policy for flaky upstream calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"maxAttempts"`
	BaseDelay         time.Duration `yaml:"baseDelay"`
	MaxDelay          time.Duration `yaml:"maxDelay"`
	Multiplier        float64       `yaml:"multiplier"`
	RetryableStatuses []int         `yaml:"retryableStatuses"`
}

// ActionsConfig controls the AI action generation commands.
type ActionsConfig struct {
	Retry RetryConfig `yaml:"retry"`
}

// AlertsConfig controls alert toggling.
type AlertsConfig struct {
	// IncidentTag, when set, is prefixed to alert names on disable and stripped on enable.
	IncidentTag string `yaml:"incidentTag"`
}

// OutputConfig locates the persisted artifacts.
type OutputConfig struct {
	Dir             string `yaml:"dir"`
	PRCFile         string `yaml:"prcFile"`
	RecommendFile   string `yaml:"recommendFile"`
	RemediationFile string `yaml:"remediationFile"`
}

// Path joins name onto the output directory.
func (o OutputConfig) Path(name string) string {
	if filepath.IsAbs(name) || o.Dir == "" {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// CacheConfig controls caching of label lookups across runs.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Size         int           `yaml:"size"`
	TTL          time.Duration `yaml:"ttl"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from an optional .env file, a YAML file and environment overrides.
// An explicit envFile must exist; otherwise ./.env is read when present.
func Load(path, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("INSTANA_SRE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func loadDotEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Instana.BaseURL) == "" {
		missing = append(missing, "BASE_URL")
	}
	if strings.TrimSpace(c.Instana.APIToken) == "" {
		missing = append(missing, "TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Enrichment.MaxConcurrency < 0 {
		return fmt.Errorf("enrichment.maxConcurrency must not be negative")
	}
	if c.Actions.Retry.MaxAttempts < 1 {
		return fmt.Errorf("actions.retry.maxAttempts must be at least 1")
	}
	return nil
}

// ValidateAlerts additionally requires the application id used by the alert commands.
func (c *Config) ValidateAlerts() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Instana.ApplicationID) == "" {
		return fmt.Errorf("missing required configuration: APPLICATION_ID")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:8004",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Instana: InstanaConfig{
			Timeout: 30 * time.Second,
			Burst:   10,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Enrichment: EnrichmentConfig{
			MaxConcurrency: 16,
			RetrievalSize:  200,
		},
		Filters: FiltersConfig{
			PRC: FilterConfig{
				Type:        "incident",
				RequireOpen: true,
				RequirePRC:  true,
			},
			Actions: FilterConfig{
				Type:            "incident",
				RequirePRC:      true,
				ProblemPrefixes: []string{"Alert on all services"},
			},
			Selectors: map[int][]string{
				23: {"otel-demo-frontend", "otel-demo-checkout", "frontend", "checkout"},
				3:  {"otel-demo-frontend", "frontend"},
			},
		},
		Actions: ActionsConfig{
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         2 * time.Second,
				MaxDelay:          30 * time.Second,
				Multiplier:        2,
				RetryableStatuses: []int{500},
			},
		},
		Output: OutputConfig{
			Dir:             ".",
			PRCFile:         "prc_label_v3.json",
			RecommendFile:   "Rec_all.json",
			RemediationFile: "remediation_output.json",
		},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      "memory",
			Size:         4096,
			TTL:          10 * time.Minute,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Instana.BaseURL = v
	}
	if v := os.Getenv("INSTANA_BASE_URL"); v != "" {
		cfg.Instana.BaseURL = v
	}
	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Instana.APIToken = v
	}
	if v := os.Getenv("INSTANA_API_TOKEN"); v != "" {
		cfg.Instana.APIToken = v
	}
	if v := os.Getenv("APPLICATION_ID"); v != "" {
		cfg.Instana.ApplicationID = v
	}
	if v := os.Getenv("INCIDENT_TAG"); v != "" {
		cfg.Alerts.IncidentTag = v
	}
	if v := strings.TrimSpace(os.Getenv("INCIDENT_ID")); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id >= 0 {
			cfg.Filters.IncidentID = &id
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid INCIDENT_ID %q: must be a number, showing all matching incidents", v))
		}
	}
	if v := os.Getenv("INSTANA_SRE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Instana.Timeout = d
		}
	}
	if v := os.Getenv("INSTANA_SRE_RATE_LIMIT"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Instana.RateLimit = rps
		}
	}
	if v := os.Getenv("INSTANA_SRE_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("INSTANA_SRE_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("INSTANA_SRE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("INSTANA_SRE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INSTANA_SRE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("INSTANA_SRE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Enrichment.MaxConcurrency = n
		}
	}
	if v := os.Getenv("INSTANA_SRE_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("INSTANA_SRE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("INSTANA_SRE_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("INSTANA_SRE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("INSTANA_SRE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("INSTANA_SRE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}
