package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// Config captures the settings required to boot the prediction engine.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Clients    ClientsConfig       `yaml:"clients"`
	Monitor    MonitorConfig       `yaml:"monitor"`
	Thresholds models.ThresholdSet `yaml:"thresholds"`
	Storage    StorageConfig       `yaml:"storage"`
	Notify     NotifyConfig        `yaml:"notify"`
	Rules      RulesConfig         `yaml:"rules"`
	Cache      CacheConfig         `yaml:"cache"`
	Logging    LoggingConfig       `yaml:"logging"`
}

// ServerConfig controls the ops gRPC listener and the HTTP listener that
// serves metrics and the read API.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups the upstream data-plane integrations.
type ClientsConfig struct {
	Metrics   MetricsClientConfig   `yaml:"metrics"`
	Inventory InventoryClientConfig `yaml:"inventory"`
}

// MetricsClientConfig configures access to the Prometheus-compatible
// metrics store used as the telemetry source.
type MetricsClientConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// InventoryClientConfig configures the fleet inventory integration. When
// FleetFile is set, the static file enumerator is used instead of the HTTP
// inventory service.
type InventoryClientConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	InstancesPath string        `yaml:"instancesPath"`
	ConfigPath    string        `yaml:"configPath"`
	Timeout       time.Duration `yaml:"timeout"`
	FleetFile     string        `yaml:"fleetFile"`
}

// MonitorConfig controls the monitoring cycle cadence and fan-out.
type MonitorConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxConcurrency int           `yaml:"maxConcurrency"`
}

// StorageConfig controls the prediction event store.
type StorageConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// NotifyConfig controls webhook delivery of qualifying predictions.
type NotifyConfig struct {
	Enabled    bool          `yaml:"enabled"`
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RulesConfig controls recommendation rule-pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Valkey-backed caching of instance config lookups.
type CacheConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Addr              string        `yaml:"addr"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	DB                int           `yaml:"db"`
	DialTimeout       time.Duration `yaml:"dialTimeout"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	TLS               bool          `yaml:"tls"`
	InstanceConfigTTL time.Duration `yaml:"instanceConfigTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment
// overrides, then validates threshold ordering.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FLEETGUARD_CONFIG")
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

	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if cfg.Monitor.MaxConcurrency <= 0 {
		cfg.Monitor.MaxConcurrency = 1
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:     ":50051",
			HTTPAddress:     ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Metrics: MetricsClientConfig{
				Timeout: 10 * time.Second,
			},
			Inventory: InventoryClientConfig{
				InstancesPath: "/api/v1/instances",
				ConfigPath:    "/api/v1/instances/%s/config",
				Timeout:       5 * time.Second,
			},
		},
		Monitor: MonitorConfig{
			Interval:       time.Hour,
			MaxConcurrency: 4,
		},
		Thresholds: models.DefaultThresholds(),
		Storage: StorageConfig{
			Path:      "predictions.db",
			Retention: 30 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Enabled: false,
			Timeout: 5 * time.Second,
		},
		Rules: RulesConfig{Path: "configs/rules/default.yaml"},
		Cache: CacheConfig{
			Enabled:           false,
			DialTimeout:       2 * time.Second,
			ReadTimeout:       500 * time.Millisecond,
			WriteTimeout:      500 * time.Millisecond,
			InstanceConfigTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLEETGUARD_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("FLEETGUARD_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("FLEETGUARD_METRICS_URL"); v != "" {
		cfg.Clients.Metrics.URL = v
	}
	if v := os.Getenv("FLEETGUARD_INVENTORY_BASE_URL"); v != "" {
		cfg.Clients.Inventory.BaseURL = v
	}
	if v := os.Getenv("FLEETGUARD_FLEET_FILE"); v != "" {
		cfg.Clients.Inventory.FleetFile = v
	}
	if v := os.Getenv("FLEETGUARD_MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Interval = d
		}
	}
	if v := os.Getenv("FLEETGUARD_MONITOR_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.MaxConcurrency = n
		}
	}
	if v := os.Getenv("FLEETGUARD_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("FLEETGUARD_STORAGE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.Retention = d
		}
	}
	if v := os.Getenv("FLEETGUARD_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
		cfg.Notify.Enabled = true
	}
	if v := os.Getenv("FLEETGUARD_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("FLEETGUARD_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FLEETGUARD_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FLEETGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLEETGUARD_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}

	applyThresholdOverrides(&cfg.Thresholds)
}

func applyThresholdOverrides(t *models.ThresholdSet) {
	floats := []struct {
		env    string
		target *float64
	}{
		{"FLEETGUARD_CPU_STEAL_WARNING", &t.CPUStealWarning},
		{"FLEETGUARD_CPU_STEAL_CRITICAL", &t.CPUStealCritical},
		{"FLEETGUARD_IOWAIT_WARNING", &t.IOWaitWarning},
		{"FLEETGUARD_IOWAIT_CRITICAL", &t.IOWaitCritical},
		{"FLEETGUARD_MEMORY_SATURATION_WARNING", &t.MemorySaturationWarning},
		{"FLEETGUARD_MEMORY_SATURATION_CRITICAL", &t.MemorySaturationCritical},
		{"FLEETGUARD_DISK_USAGE_WARNING", &t.DiskUsageWarning},
		{"FLEETGUARD_DISK_USAGE_CRITICAL", &t.DiskUsageCritical},
		{"FLEETGUARD_CPU_CREDIT_BALANCE_WARNING", &t.CPUCreditBalanceWarning},
		{"FLEETGUARD_HIGH_CONFIDENCE_THRESHOLD", &t.HighConfidence},
		{"FLEETGUARD_MEDIUM_CONFIDENCE_THRESHOLD", &t.MediumConfidence},
	}
	for _, f := range floats {
		if v := os.Getenv(f.env); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				*f.target = parsed
			}
		}
	}
	if v := os.Getenv("FLEETGUARD_LOOKBACK_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			t.LookbackHours = hours
		}
	}
}
