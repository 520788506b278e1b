package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/instana-sre/internal/engine"
	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/output"
	"github.com/miradorstack/instana-sre/internal/utils"
)

// OperationRemediate names the remediation run in metrics and errors.
const OperationRemediate = "remediate"

// Remediator asks the action generation endpoint for remediation actions, once for the
// triggering event and once per probable root cause.
type Remediator struct {
	logger   *slog.Logger
	client   Client
	resolver engine.Resolver
	opts     Options
	now      func() time.Time
}

// NewRemediator constructs a Remediator. resolver labels the root causes in each diagnosis.
func NewRemediator(logger *slog.Logger, client Client, resolver engine.Resolver, opts Options) *Remediator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remediator{logger: logger, client: client, resolver: resolver, opts: opts, now: time.Now}
}

// Run processes every matching incident in order and returns the report that was persisted.
func (r *Remediator) Run(ctx context.Context) (models.RemediationReport, error) {
	start := time.Now()
	logger := r.logger.With(slog.String("run_id", uuid.NewString()), slog.String("operation", OperationRemediate))

	report, err := r.run(ctx, logger)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logger.Error("remediation failed", slog.Any("error", err))
	}
	metrics.ObserveRun(OperationRemediate, time.Since(start), outcome)
	return report, err
}

func (r *Remediator) run(ctx context.Context, logger *slog.Logger) (models.RemediationReport, error) {
	incidents, err := selectIncidents(ctx, logger, r.client, r.opts)
	if err != nil {
		return models.RemediationReport{}, utils.NewAppError(OperationRemediate, "fetch incidents", err)
	}

	results := make([]models.RemediationResult, 0, len(incidents))
	for _, incident := range incidents {
		if err := ctx.Err(); err != nil {
			return models.RemediationReport{}, utils.NewAppError(OperationRemediate, "cancelled", err)
		}
		results = append(results, r.remediate(ctx, logger, incident))
	}

	report := models.RemediationReport{Results: results, Status: models.StatusSuccess}
	if len(results) == 0 {
		report.Status = models.StatusNoIncidentsFound
	}

	if r.opts.OutputPath != "" {
		if err := output.WriteJSON(r.opts.OutputPath, report); err != nil {
			return report, utils.NewAppError(OperationRemediate, "save results", err)
		}
		logger.Info("results saved", slog.String("path", r.opts.OutputPath), slog.Int("incidents", len(results)))
	}
	return report, nil
}

func (r *Remediator) remediate(ctx context.Context, logger *slog.Logger, incident models.Incident) models.RemediationResult {
	description, _ := eventDescription(ctx, logger, r.client, incident)
	req := models.GenerateRequest{
		EventID:          incident.EventID,
		EventEntityType:  capitalize(incident.EntityType),
		EventName:        incident.Problem,
		EventDescription: fmt.Sprintf("Event %s with description %s", incident.Problem, description),
	}
	result := models.RemediationResult{
		IncidentID:          r.opts.IncidentID,
		EventID:             incident.EventID,
		EntityLabel:         incident.EntityLabel,
		RequestBody:         req,
		AdditionalResponses: []models.AdditionalResponse{},
	}

	status, resp, err := r.client.GenerateActions(ctx, req)
	if err != nil {
		metrics.ObserveActionRequest(OperationRemediate, metrics.OutcomeError)
		logger.Error("action generation failed for triggering event", slog.String("event_id", incident.EventID), slog.Any("error", err))
		result.Error = err.Error()
	} else {
		metrics.ObserveActionRequest(OperationRemediate, metrics.OutcomeSuccess)
		logger.Info("action generation succeeded for triggering event", slog.String("event_id", incident.EventID))
		result.StatusCode = status
		result.Response = resp
	}

	for _, cause := range incident.ProbableCause.CurrentRootCause {
		result.AdditionalResponses = append(result.AdditionalResponses, r.diagnose(ctx, logger, incident.EventID, cause))
	}
	return result
}

func (r *Remediator) diagnose(ctx context.Context, logger *slog.Logger, eventID string, cause models.RootCauseEntry) models.AdditionalResponse {
	pluginID := cause.EntityID.PluginID
	pluginType := engine.Classify(pluginID)
	ts := cause.Timestamp
	if ts == 0 {
		ts = r.now().UnixMilli()
	}

	label := models.UnknownPlugin
	id := engine.AddressingID(cause, pluginType)
	switch pluginType {
	case models.PluginEndpoint:
		label = r.resolver.ResolveEndpoint(ctx, id, ts).EndpointLabel
	case models.PluginService:
		label = r.resolver.ResolveService(ctx, id, ts)
	case models.PluginInfrastructure:
		if id != "" {
			label = r.resolver.ResolveInfrastructure(ctx, id, ts, pluginID).Label
		}
	case models.PluginUnknown:
	}

	entityType := capitalize(string(pluginType))
	diagnosisContext := string(pluginType)
	if pluginType == models.PluginInfrastructure && strings.Contains(strings.ToLower(pluginID), "process") {
		entityType = "Process"
		diagnosisContext = "process"
	}

	req := models.GenerateRequest{
		EventID:         eventID,
		EventDiagnosis:  fmt.Sprintf("Higher than expected error rate going through %s in %s", label, diagnosisContext),
		EventEntityType: entityType,
	}
	out := models.AdditionalResponse{
		PluginType:  pluginType,
		EntityID:    id,
		Label:       label,
		RequestBody: &req,
	}

	status, resp, err := r.client.GenerateActions(ctx, req)
	if err != nil {
		metrics.ObserveActionRequest(OperationRemediate, metrics.OutcomeError)
		logger.Error("action generation failed for root cause",
			slog.String("plugin_type", string(pluginType)),
			slog.String("entity_id", id),
			slog.Any("error", err))
		out.Error = err.Error()
		return out
	}
	metrics.ObserveActionRequest(OperationRemediate, metrics.OutcomeSuccess)
	logger.Info("action generation succeeded for root cause",
		slog.String("plugin_type", string(pluginType)),
		slog.String("entity_id", id))
	out.StatusCode = status
	out.Response = resp
	return out
}
