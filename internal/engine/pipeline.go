package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/output"
	"github.com/miradorstack/instana-sre/internal/utils"
)

// OperationPRC names the enrichment run in metrics and errors.
const OperationPRC = "prc"

// IncidentSource lists the incidents currently known upstream.
type IncidentSource interface {
	FetchIncidents(ctx context.Context) ([]models.Incident, error)
}

// PipelineOptions tunes a Pipeline.
type PipelineOptions struct {
	Filter     IncidentFilter
	IncidentID *int
	// OutputPath is where the enriched map is persisted; empty disables persistence.
	OutputPath     string
	MaxConcurrency int
}

// Pipeline fetches incidents, filters them and enriches every probable cause.
type Pipeline struct {
	logger   *slog.Logger
	source   IncidentSource
	enricher *Enricher
	opts     PipelineOptions
}

// NewPipeline constructs a new enrichment pipeline.
func NewPipeline(logger *slog.Logger, source IncidentSource, enricher *Enricher, opts PipelineOptions) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, source: source, enricher: enricher, opts: opts}
}

// Run executes one enrichment pass and returns the incident map keyed by OutputKey.
// Failing to list incidents aborts the run; failing to resolve a label never does. A run
// whose context ends mid-enrichment fails without persisting anything.
func (p *Pipeline) Run(ctx context.Context) (map[string]models.EnrichedIncident, error) {
	start := time.Now()
	logger := p.logger.With(slog.String("run_id", uuid.NewString()), slog.String("operation", OperationPRC))

	out, err := p.run(ctx, logger)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logger.Error("prc enrichment failed", slog.Any("error", err))
	}
	metrics.ObserveRun(OperationPRC, time.Since(start), outcome)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger) (map[string]models.EnrichedIncident, error) {
	if p.source == nil || p.enricher == nil {
		return nil, utils.NewAppError(OperationPRC, "pipeline not configured", nil)
	}

	incidents, err := p.source.FetchIncidents(ctx)
	if err != nil {
		return nil, utils.NewAppError(OperationPRC, "fetch incidents", err)
	}
	LogSummary(logger, incidents, p.opts.IncidentID)

	filtered := p.opts.Filter.Apply(incidents)
	logger.Info("filtered prc incidents", slog.Int("matched", len(filtered)))

	out := p.Enrich(ctx, filtered)
	if err := ctx.Err(); err != nil {
		return nil, utils.NewAppError(OperationPRC, "enrichment interrupted", err)
	}

	if p.opts.OutputPath != "" {
		if err := output.WriteJSON(p.opts.OutputPath, out); err != nil {
			logger.Error("failed to save output", slog.String("path", p.opts.OutputPath), slog.Any("error", err))
		} else {
			logger.Info("output saved", slog.String("path", p.opts.OutputPath), slog.Int("incidents", len(out)))
		}
	}
	return out, nil
}

// Enrich enriches incidents concurrently, each with its own dedup set, and assembles the
// output map in input order so later duplicate keys replace earlier ones.
func (p *Pipeline) Enrich(ctx context.Context, incidents []models.Incident) map[string]models.EnrichedIncident {
	results := make([]models.EnrichedIncident, len(incidents))

	var g errgroup.Group
	if p.opts.MaxConcurrency > 0 {
		g.SetLimit(p.opts.MaxConcurrency)
	}
	for i, incident := range incidents {
		g.Go(func() error {
			seen := make(map[models.DedupKey]struct{})
			results[i] = models.EnrichedIncident{
				EntityType:    incident.EntityType,
				Problem:       incident.Problem,
				Detail:        incident.Detail,
				ProbableCause: p.enricher.EnrichProbableCause(ctx, incident.ProbableCause, seen),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]models.EnrichedIncident, len(incidents))
	for i, incident := range incidents {
		out[models.OutputKey(incident)] = results[i]
	}
	return out
}
