package engine

import (
	"context"
	"log/slog"

	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/repo"
)

// LabelClient is the subset of the Instana client the resolver needs.
type LabelClient interface {
	EndpointMetrics(ctx context.Context, endpointID string, to int64) (repo.EndpointMetricsResponse, error)
	ServiceMetrics(ctx context.Context, serviceID string, to int64) (repo.ServiceMetricsResponse, error)
	InfrastructureEntities(ctx context.Context, filterName, snapshotID string, to int64, retrievalSize int) ([]repo.InfraEntity, error)
}

// Resolver turns entity references into human-readable labels. Implementations never fail;
// lookups that cannot be answered return the "Unknown ..." sentinels.
type Resolver interface {
	ResolveEndpoint(ctx context.Context, steadyID string, ts int64) models.EndpointLabel
	ResolveService(ctx context.Context, serviceID string, ts int64) string
	ResolveInfrastructure(ctx context.Context, snapshotID string, ts int64, pluginID string) models.InfrastructureDetails
}

// LabelResolver resolves labels through the Instana metrics and infrastructure APIs.
type LabelResolver struct {
	client        LabelClient
	logger        *slog.Logger
	retrievalSize int
}

// NewLabelResolver constructs a resolver. retrievalSize bounds infrastructure lookups.
func NewLabelResolver(client LabelClient, logger *slog.Logger, retrievalSize int) *LabelResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelResolver{client: client, logger: logger, retrievalSize: retrievalSize}
}

// ResolveEndpoint resolves an endpoint steady id and the label of the service it belongs to.
func (r *LabelResolver) ResolveEndpoint(ctx context.Context, steadyID string, ts int64) models.EndpointLabel {
	if steadyID == "" || r.client == nil {
		metrics.ObserveLabelLookup(string(models.PluginEndpoint), metrics.OutcomeFallback)
		return models.UnknownEndpointLabel()
	}

	resp, err := r.client.EndpointMetrics(ctx, steadyID, ts)
	if err != nil {
		r.logger.Error("endpoint label lookup failed", slog.String("steady_id", steadyID), slog.Any("error", err))
		metrics.ObserveLabelLookup(string(models.PluginEndpoint), metrics.OutcomeError)
		return models.UnknownEndpointLabel()
	}
	if len(resp.Items) == 0 || resp.Items[0].Endpoint == nil {
		r.logger.Warn("no endpoint data found", slog.String("steady_id", steadyID))
		metrics.ObserveLabelLookup(string(models.PluginEndpoint), metrics.OutcomeFallback)
		return models.UnknownEndpointLabel()
	}

	endpoint := resp.Items[0].Endpoint
	out := models.EndpointLabel{
		EndpointLabel: endpoint.Label,
		ServiceID:     endpoint.ServiceID,
		ServiceLabel:  models.UnknownService,
	}
	if out.EndpointLabel == "" {
		out.EndpointLabel = models.UnknownEndpoint
	}
	if out.ServiceID != "" {
		out.ServiceLabel = r.ResolveService(ctx, out.ServiceID, ts)
	}
	metrics.ObserveLabelLookup(string(models.PluginEndpoint), metrics.OutcomeSuccess)
	return out
}

// ResolveService resolves a service id to its label.
func (r *LabelResolver) ResolveService(ctx context.Context, serviceID string, ts int64) string {
	if serviceID == "" || r.client == nil {
		metrics.ObserveLabelLookup(string(models.PluginService), metrics.OutcomeFallback)
		return models.UnknownService
	}

	resp, err := r.client.ServiceMetrics(ctx, serviceID, ts)
	if err != nil {
		r.logger.Error("service label lookup failed", slog.String("service_id", serviceID), slog.Any("error", err))
		metrics.ObserveLabelLookup(string(models.PluginService), metrics.OutcomeError)
		return models.UnknownService
	}
	if len(resp.Items) == 0 || resp.Items[0].Service == nil || resp.Items[0].Service.Label == "" {
		r.logger.Warn("no service label found", slog.String("service_id", serviceID))
		metrics.ObserveLabelLookup(string(models.PluginService), metrics.OutcomeFallback)
		return models.UnknownService
	}
	metrics.ObserveLabelLookup(string(models.PluginService), metrics.OutcomeSuccess)
	return resp.Items[0].Service.Label
}

// ResolveInfrastructure resolves a snapshot id. When several entities match the tag filter,
// the one with the queried snapshot id wins (else the first) and the rest are returned as
// related entities.
func (r *LabelResolver) ResolveInfrastructure(ctx context.Context, snapshotID string, ts int64, pluginID string) models.InfrastructureDetails {
	if snapshotID == "" || r.client == nil {
		metrics.ObserveLabelLookup(string(models.PluginInfrastructure), metrics.OutcomeFallback)
		return models.UnknownInfrastructureDetails(ts)
	}

	filterName := TagFilterName(pluginID)
	items, err := r.client.InfrastructureEntities(ctx, filterName, snapshotID, ts, r.retrievalSize)
	if err != nil {
		r.logger.Error("infrastructure lookup failed",
			slog.String("snapshot_id", snapshotID),
			slog.String("tag_filter", filterName),
			slog.Any("error", err),
		)
		metrics.ObserveLabelLookup(string(models.PluginInfrastructure), metrics.OutcomeError)
		return models.UnknownInfrastructureDetails(ts)
	}
	if len(items) == 0 {
		r.logger.Warn("no infrastructure details found", slog.String("snapshot_id", snapshotID))
		metrics.ObserveLabelLookup(string(models.PluginInfrastructure), metrics.OutcomeFallback)
		return models.UnknownInfrastructureDetails(ts)
	}

	metrics.ObserveLabelLookup(string(models.PluginInfrastructure), metrics.OutcomeSuccess)
	return selectInfrastructure(items, snapshotID, ts)
}

func selectInfrastructure(items []repo.InfraEntity, snapshotID string, ts int64) models.InfrastructureDetails {
	primary := 0
	for i, item := range items {
		if item.SnapshotID == snapshotID {
			primary = i
			break
		}
	}

	chosen := items[primary]
	related := make([]models.RelatedEntity, 0, len(items)-1)
	for i, item := range items {
		if i == primary {
			continue
		}
		related = append(related, models.RelatedEntity{
			SnapshotID: item.SnapshotID,
			Label:      item.Label,
			Plugin:     item.Plugin,
			Time:       item.Time,
			Metrics:    nonNilMap(item.Metrics),
			Tags:       nonNilMap(item.Tags),
		})
	}

	details := models.InfrastructureDetails{
		Label:           chosen.Label,
		Plugin:          chosen.Plugin,
		Time:            chosen.Time,
		Metrics:         nonNilMap(chosen.Metrics),
		Tags:            nonNilMap(chosen.Tags),
		RelatedEntities: related,
	}
	if details.Label == "" {
		details.Label = models.UnknownInfrastructure
	}
	if details.Plugin == "" {
		details.Plugin = models.UnknownPlugin
	}
	if details.Time == 0 {
		details.Time = ts
	}
	return details
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
