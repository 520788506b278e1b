package engine

import (
	"context"
	"log/slog"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/utils"
)

// Enricher walks a probable cause and attaches resolved labels to each root-cause entity.
type Enricher struct {
	resolver       Resolver
	logger         *slog.Logger
	maxConcurrency int
}

// NewEnricher constructs an Enricher. maxConcurrency <= 0 leaves the fan-out unbounded.
func NewEnricher(resolver Resolver, logger *slog.Logger, maxConcurrency int) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{resolver: resolver, logger: logger, maxConcurrency: maxConcurrency}
}

type lookup struct {
	key        models.DedupKey
	pluginType models.PluginType
	pluginID   string

	endpoint models.EndpointLabel
	service  string
	infra    models.InfrastructureDetails
}

// EnrichProbableCause returns a copy of pc with labels written into each resolvable entity.
// Keys already present in seen are skipped; keys first seen here are resolved once and the
// result is shared by every entry carrying the same key. pc itself is left untouched.
func (e *Enricher) EnrichProbableCause(ctx context.Context, pc models.ProbableCause, seen map[models.DedupKey]struct{}) models.ProbableCause {
	out := pc.Clone()
	if seen == nil {
		seen = make(map[models.DedupKey]struct{})
	}

	targets := make([]*lookup, len(out.CurrentRootCause))
	scheduled := make(map[models.DedupKey]*lookup)
	var pending []*lookup

	for i, entry := range out.CurrentRootCause {
		if entry.Timestamp == 0 {
			e.logger.Debug("root cause without timestamp", slog.Int("index", i))
			continue
		}
		pluginType := Classify(entry.EntityID.PluginID)
		if pluginType == models.PluginUnknown {
			e.logger.Debug("unknown plugin type", slog.Int("index", i), slog.String("plugin_id", entry.EntityID.PluginID))
			continue
		}
		id := AddressingID(entry, pluginType)
		if id == "" {
			e.logger.Debug("no addressing id for root cause", slog.Int("index", i), slog.String("plugin_type", string(pluginType)))
			continue
		}

		key := models.DedupKey{ID: id, Timestamp: entry.Timestamp}
		if l, ok := scheduled[key]; ok {
			if l.pluginType == pluginType {
				targets[i] = l
			}
			continue
		}
		if _, ok := seen[key]; ok {
			e.logger.Debug("skipping already processed id", slog.String("id", id), slog.Int64("timestamp", entry.Timestamp))
			continue
		}
		seen[key] = struct{}{}

		l := &lookup{key: key, pluginType: pluginType, pluginID: entry.EntityID.PluginID}
		scheduled[key] = l
		pending = append(pending, l)
		e.logger.Debug("scheduled label lookup",
			slog.String("id", id),
			slog.String("plugin_type", string(pluginType)),
			slog.Time("at", utils.FromUnixMillis(entry.Timestamp)),
		)
		targets[i] = l
	}

	if len(pending) == 0 {
		return out
	}

	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for _, l := range pending {
		g.Go(func() error {
			e.resolve(ctx, l)
			return nil
		})
	}
	_ = g.Wait()

	for i, l := range targets {
		if l == nil {
			continue
		}
		out.CurrentRootCause[i].EntityID = applyLookup(out.CurrentRootCause[i].EntityID, l)
	}
	return out
}

func (e *Enricher) resolve(ctx context.Context, l *lookup) {
	switch l.pluginType {
	case models.PluginEndpoint:
		l.endpoint = e.resolver.ResolveEndpoint(ctx, l.key.ID, l.key.Timestamp)
	case models.PluginService:
		l.service = e.resolver.ResolveService(ctx, l.key.ID, l.key.Timestamp)
	case models.PluginInfrastructure:
		l.infra = e.resolver.ResolveInfrastructure(ctx, l.key.ID, l.key.Timestamp, l.pluginID)
	case models.PluginUnknown:
	}
}

// applyLookup returns entity with the resolved fields of l added. Maps are copied so
// entries sharing a lookup never alias each other.
func applyLookup(entity models.EntityID, l *lookup) models.EntityID {
	switch l.pluginType {
	case models.PluginEndpoint:
		entity.EndpointLabel = l.endpoint.EndpointLabel
		entity.ServiceLabel = l.endpoint.ServiceLabel
		if entity.ServiceID == "" {
			entity.ServiceID = l.endpoint.ServiceID
		}
	case models.PluginService:
		entity.ServiceLabel = l.service
	case models.PluginInfrastructure:
		entity.InfrastructureLabel = l.infra.Label
		entity.InfrastructurePlugin = l.infra.Plugin
		entity.InfrastructureTime = l.infra.Time
		if l.infra.Metrics != nil {
			entity.Metrics = maps.Clone(l.infra.Metrics)
		}
		if l.infra.Tags != nil {
			entity.Tags = maps.Clone(l.infra.Tags)
		}
		items := make([]models.RelatedEntity, len(l.infra.RelatedEntities))
		for i, related := range l.infra.RelatedEntities {
			related.Metrics = maps.Clone(related.Metrics)
			related.Tags = maps.Clone(related.Tags)
			items[i] = related
		}
		entity.RelatedEntities = &models.RelatedEntities{Items: items}
	case models.PluginUnknown:
	}
	return entity
}
