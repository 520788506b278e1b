package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/miradorstack/instana-sre/internal/cache"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/utils"
)

// API paths used by the toolkit.
const (
	eventsPath            = "/api/events"
	endpointMetricsPath   = "/api/application-monitoring/metrics/endpoints"
	serviceMetricsPath    = "/api/application-monitoring/metrics/services"
	infraEntitiesPath     = "/api/infrastructure-monitoring/analyze/entities"
	alertConfigsPath      = "/api/events/settings/application-alert-configs"
	actionMatchPath       = "/api/automation/ai/action/match"
	actionGeneratePath    = "/api/automation/ai/action/generate"
	maxResponseBytes      = 32 << 20
	defaultRetrievalSize  = 200
	cacheKeyPrefix        = "instana-sre:"
	defaultRequestTimeout = 30 * time.Second
)

// ClientOptions configures an InstanaClient.
type ClientOptions struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Cache     cache.Provider
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// InstanaClient wraps the Instana REST endpoints used by the toolkit.
type InstanaClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Provider
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewInstanaClient constructs a client targeting the configured Instana tenant.
func NewInstanaClient(opts ClientOptions) *InstanaClient {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &InstanaClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.APIToken,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		logger:     opts.Logger,
	}
}

// TimeFrame is the metrics window sent with every lookup.
type TimeFrame struct {
	To         int64 `json:"to"`
	WindowSize int64 `json:"windowSize"`
}

// MetricQuery selects one aggregated metric.
type MetricQuery struct {
	Aggregation string `json:"aggregation"`
	Metric      string `json:"metric"`
}

var latencyMean = []MetricQuery{{Aggregation: "MEAN", Metric: "latency"}}

// EndpointInfo is the endpoint section of an endpoint metrics item.
type EndpointInfo struct {
	Label     string `json:"label"`
	ServiceID string `json:"serviceId"`
}

// EndpointItem is one item of the endpoint metrics API.
type EndpointItem struct {
	Endpoint *EndpointInfo `json:"endpoint"`
}

// EndpointMetricsResponse is the body of the endpoint metrics API.
type EndpointMetricsResponse struct {
	Items []EndpointItem `json:"items"`
}

// ServiceInfo is the service section of a service metrics item.
type ServiceInfo struct {
	Label string `json:"label"`
}

// ServiceItem is one item of the service metrics API.
type ServiceItem struct {
	Service *ServiceInfo `json:"service"`
}

// ServiceMetricsResponse is the body of the service metrics API.
type ServiceMetricsResponse struct {
	Items []ServiceItem `json:"items"`
}

// InfraEntity is one item of the infrastructure analyze entities API.
type InfraEntity struct {
	SnapshotID string         `json:"snapshotId"`
	Label      string         `json:"label"`
	Plugin     string         `json:"plugin"`
	Time       int64          `json:"time"`
	Metrics    map[string]any `json:"metrics"`
	Tags       map[string]any `json:"tags"`
}

// TagFilter is a single tag filter expression element.
type TagFilter struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Entity   string `json:"entity"`
	Value    string `json:"value"`
}

type infraQuery struct {
	TagFilterExpression TagFilter `json:"tagFilterExpression"`
	TimeFrame           TimeFrame `json:"timeFrame"`
	Pagination          struct {
		RetrievalSize int `json:"retrievalSize"`
	} `json:"pagination"`
}

// FetchIncidents lists incident events. A body that is not a JSON array is ErrUnexpectedShape.
func (c *InstanaClient) FetchIncidents(ctx context.Context) ([]models.Incident, error) {
	query := url.Values{"eventTypeFilters": []string{"INCIDENT"}}
	body, _, err := c.do(ctx, http.MethodGet, eventsPath, query, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("fetch incidents: %w: expected a list of incidents", ErrUnexpectedShape)
	}

	var incidents []models.Incident
	if err := json.Unmarshal(trimmed, &incidents); err != nil {
		return nil, fmt.Errorf("fetch incidents: decode response: %w", err)
	}
	return incidents, nil
}

// EndpointMetrics looks up an endpoint by steady id over the window ending at to.
func (c *InstanaClient) EndpointMetrics(ctx context.Context, endpointID string, to int64) (EndpointMetricsResponse, error) {
	payload := map[string]any{
		"endpointId": endpointID,
		"metrics":    latencyMean,
		"timeFrame":  TimeFrame{To: to, WindowSize: utils.WindowMillis()},
	}
	var out EndpointMetricsResponse
	if err := c.postCached(ctx, endpointMetricsPath, payload, &out); err != nil {
		return EndpointMetricsResponse{}, fmt.Errorf("endpoint metrics %s: %w", endpointID, err)
	}
	return out, nil
}

// ServiceMetrics looks up a service by id over the window ending at to.
func (c *InstanaClient) ServiceMetrics(ctx context.Context, serviceID string, to int64) (ServiceMetricsResponse, error) {
	payload := map[string]any{
		"serviceId": serviceID,
		"metrics":   latencyMean,
		"timeFrame": TimeFrame{To: to, WindowSize: utils.WindowMillis()},
	}
	var out ServiceMetricsResponse
	if err := c.postCached(ctx, serviceMetricsPath, payload, &out); err != nil {
		return ServiceMetricsResponse{}, fmt.Errorf("service metrics %s: %w", serviceID, err)
	}
	return out, nil
}

// InfrastructureEntities returns the entities whose tag filterName equals snapshotID.
func (c *InstanaClient) InfrastructureEntities(ctx context.Context, filterName, snapshotID string, to int64, retrievalSize int) ([]InfraEntity, error) {
	if retrievalSize <= 0 {
		retrievalSize = defaultRetrievalSize
	}
	payload := infraQuery{
		TagFilterExpression: TagFilter{
			Type:     "TAG_FILTER",
			Name:     filterName,
			Operator: "EQUALS",
			Entity:   "NOT_APPLICABLE",
			Value:    snapshotID,
		},
		TimeFrame: TimeFrame{To: to, WindowSize: utils.WindowMillis()},
	}
	payload.Pagination.RetrievalSize = retrievalSize

	var out struct {
		Items []InfraEntity `json:"items"`
	}
	if err := c.postCached(ctx, infraEntitiesPath, payload, &out); err != nil {
		return nil, fmt.Errorf("infrastructure entities %s: %w", snapshotID, err)
	}
	return out.Items, nil
}

// ListAlertConfigs returns the alert configurations of an application.
func (c *InstanaClient) ListAlertConfigs(ctx context.Context, applicationID string) ([]models.AlertConfig, error) {
	query := url.Values{"applicationId": []string{applicationID}}
	body, _, err := c.do(ctx, http.MethodGet, alertConfigsPath, query, nil)
	if err != nil {
		return nil, fmt.Errorf("list alert configs: %w", err)
	}
	var configs []models.AlertConfig
	if err := json.Unmarshal(body, &configs); err != nil {
		return nil, fmt.Errorf("list alert configs: decode response: %w", err)
	}
	return configs, nil
}

// GetAlertConfig fetches one alert configuration. Event specification ids resolve here too.
func (c *InstanaClient) GetAlertConfig(ctx context.Context, id string) (models.AlertConfig, error) {
	body, _, err := c.do(ctx, http.MethodGet, alertConfigsPath+"/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return models.AlertConfig{}, fmt.Errorf("get alert config %s: %w", id, err)
	}
	var cfg models.AlertConfig
	if len(bytes.TrimSpace(body)) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return models.AlertConfig{}, fmt.Errorf("get alert config %s: decode response: %w", id, err)
	}
	return cfg, nil
}

// EnableAlertConfig enables an alert configuration.
func (c *InstanaClient) EnableAlertConfig(ctx context.Context, id string) error {
	if _, _, err := c.do(ctx, http.MethodPut, alertConfigsPath+"/"+url.PathEscape(id)+"/enable", nil, nil); err != nil {
		return fmt.Errorf("enable alert config %s: %w", id, err)
	}
	return nil
}

// DisableAlertConfig disables an alert configuration.
func (c *InstanaClient) DisableAlertConfig(ctx context.Context, id string) error {
	if _, _, err := c.do(ctx, http.MethodPut, alertConfigsPath+"/"+url.PathEscape(id)+"/disable", nil, nil); err != nil {
		return fmt.Errorf("disable alert config %s: %w", id, err)
	}
	return nil
}

// UpdateAlertConfig posts the full configuration back and returns the stored version.
func (c *InstanaClient) UpdateAlertConfig(ctx context.Context, cfg models.AlertConfig) (models.AlertConfig, error) {
	if cfg.ID == "" {
		return models.AlertConfig{}, errors.New("update alert config: id is required")
	}
	body, _, err := c.do(ctx, http.MethodPost, alertConfigsPath+"/"+url.PathEscape(cfg.ID), nil, cfg)
	if err != nil {
		return models.AlertConfig{}, fmt.Errorf("update alert config %s: %w", cfg.ID, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return cfg, nil
	}
	var updated models.AlertConfig
	if err := json.Unmarshal(body, &updated); err != nil {
		return models.AlertConfig{}, fmt.Errorf("update alert config %s: decode response: %w", cfg.ID, err)
	}
	return updated, nil
}

// MatchActions asks the recommended-action endpoint for actions matching an event.
func (c *InstanaClient) MatchActions(ctx context.Context, req models.MatchRequest) (any, error) {
	body, _, err := c.do(ctx, http.MethodPost, actionMatchPath, nil, req)
	if err != nil {
		return nil, fmt.Errorf("match actions %s: %w", req.EventID, err)
	}
	return decodeAny(body)
}

// GenerateActions asks the action generation endpoint for remediation actions.
func (c *InstanaClient) GenerateActions(ctx context.Context, req models.GenerateRequest) (int, any, error) {
	body, status, err := c.do(ctx, http.MethodPost, actionGeneratePath, nil, req)
	if err != nil {
		return status, nil, fmt.Errorf("generate actions %s: %w", req.EventID, err)
	}
	out, err := decodeAny(body)
	return status, out, err
}

func decodeAny(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// postCached posts payload and decodes the response into out, consulting the cache first.
// Cache failures only cost a network round trip.
func (c *InstanaClient) postCached(ctx context.Context, apiPath string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	sum := sha256.Sum256(append([]byte(apiPath+"\n"), body...))
	key := cacheKeyPrefix + hex.EncodeToString(sum[:])

	if cached, err := c.cache.Get(ctx, key); err == nil {
		if err := json.Unmarshal(cached, out); err == nil {
			return nil
		}
		_ = c.cache.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Debug("label cache read failed", slog.Any("error", err))
	}

	resp, _, err := c.doRaw(ctx, http.MethodPost, apiPath, nil, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := c.cache.Set(ctx, key, resp, c.cacheTTL); err != nil {
		c.logger.Debug("label cache write failed", slog.Any("error", err))
	}
	return nil
}

func (c *InstanaClient) do(ctx context.Context, method, apiPath string, query url.Values, payload any) ([]byte, int, error) {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal payload: %w", err)
		}
		body = data
	}
	return c.doRaw(ctx, method, apiPath, query, body)
}

func (c *InstanaClient) doRaw(ctx context.Context, method, apiPath string, query url.Values, body []byte) ([]byte, int, error) {
	if c == nil {
		return nil, 0, errors.New("instana client not initialised")
	}
	if c.baseURL == "" {
		return nil, 0, errors.New("instana base URL not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	endpoint := c.resolvePath(apiPath)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "apiToken "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &StatusError{
			Method:     method,
			URL:        apiPath,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}
	return data, resp.StatusCode, nil
}

func (c *InstanaClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
