package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/cache"
	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// InventoryClient enumerates the monitored fleet from an HTTP inventory
// service: one call listing eligible instance IDs, then a per-instance
// configuration lookup cached between cycles.
type InventoryClient struct {
	baseURL       string
	instancesPath string
	configPath    string
	httpClient    *http.Client
	logger        *slog.Logger
	cache         cache.Provider
	configTTL     time.Duration
}

// NewInventoryClient constructs a client targeting the configured inventory
// service. configPath must contain a %s placeholder for the instance ID.
func NewInventoryClient(baseURL, instancesPath, configPath string, timeout time.Duration, logger *slog.Logger, provider cache.Provider, configTTL time.Duration) *InventoryClient {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &InventoryClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		instancesPath: instancesPath,
		configPath:    configPath,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
		cache:         provider,
		configTTL:     configTTL,
	}
}

// ListInstances returns the eligible fleet with per-instance configuration.
// Enumeration failure is returned to the caller; per-instance config
// lookups degrade to monitoring-enabled defaults.
func (c *InventoryClient) ListInstances(ctx context.Context) ([]models.InstanceConfig, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("inventory base URL not configured")
	}

	var response struct {
		Instances []struct {
			InstanceID string `json:"instance_id"`
			State      string `json:"state"`
		} `json:"instances"`
	}

	if err := c.getJSON(ctx, c.resolvePath(c.instancesPath), &response); err != nil {
		return nil, fmt.Errorf("inventory instances request failed: %w", err)
	}

	configs := make([]models.InstanceConfig, 0, len(response.Instances))
	for _, inst := range response.Instances {
		if inst.State != "" && inst.State != "running" {
			continue
		}
		configs = append(configs, c.instanceConfig(ctx, inst.InstanceID))
	}
	return configs, nil
}

// instanceConfig fetches one instance's monitoring configuration, consulting
// the cache first. Absent or unreachable configuration defaults to
// monitoring enabled, matching enumerator semantics for unconfigured hosts.
func (c *InventoryClient) instanceConfig(ctx context.Context, instanceID string) models.InstanceConfig {
	fallback := models.InstanceConfig{ID: instanceID, MonitoringEnabled: true}
	cacheKey := "fleetguard:instance-config:" + instanceID

	if data, err := c.cache.Get(ctx, cacheKey); err == nil {
		var cached models.InstanceConfig
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil && cached.ID != "" {
			return cached
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("instance config cache read failed",
			slog.String("instance_id", instanceID),
			slog.Any("error", err),
		)
	}

	var cfg models.InstanceConfig
	endpoint := c.resolvePath(fmt.Sprintf(c.configPath, instanceID))
	if err := c.getJSON(ctx, endpoint, &cfg); err != nil {
		c.logger.Warn("instance config lookup failed, defaulting to monitored",
			slog.String("instance_id", instanceID),
			slog.Any("error", err),
		)
		return fallback
	}
	cfg.ID = instanceID

	if payload, err := json.Marshal(cfg); err == nil {
		if err := c.cache.Set(ctx, cacheKey, payload, c.configTTL); err != nil {
			c.logger.Warn("instance config cache write failed",
				slog.String("instance_id", instanceID),
				slog.Any("error", err),
			)
		}
	}
	return cfg
}

func (c *InventoryClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *InventoryClient) getJSON(ctx context.Context, endpoint string, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
