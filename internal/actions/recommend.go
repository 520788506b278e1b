package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/output"
	"github.com/miradorstack/instana-sre/internal/retry"
	"github.com/miradorstack/instana-sre/internal/utils"
)

// OperationRecommend names the recommended-actions run in metrics and errors.
const OperationRecommend = "recommend"

// Recommender asks the action match endpoint for the actions recommended for each incident.
type Recommender struct {
	logger *slog.Logger
	client Client
	opts   Options
}

// NewRecommender constructs a Recommender.
func NewRecommender(logger *slog.Logger, client Client, opts Options) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{logger: logger, client: client, opts: opts}
}

// Run processes every matching incident in order. Per-incident failures become error
// records; only listing incidents or persisting results fails the run.
func (r *Recommender) Run(ctx context.Context) ([]models.ActionResult, error) {
	start := time.Now()
	logger := r.logger.With(slog.String("run_id", uuid.NewString()), slog.String("operation", OperationRecommend))

	results, err := r.run(ctx, logger)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logger.Error("recommended actions failed", slog.Any("error", err))
	}
	metrics.ObserveRun(OperationRecommend, time.Since(start), outcome)
	return results, err
}

func (r *Recommender) run(ctx context.Context, logger *slog.Logger) ([]models.ActionResult, error) {
	incidents, err := selectIncidents(ctx, logger, r.client, r.opts)
	if err != nil {
		return nil, utils.NewAppError(OperationRecommend, "fetch incidents", err)
	}

	results := make([]models.ActionResult, 0, len(incidents))
	for _, incident := range incidents {
		if err := ctx.Err(); err != nil {
			return nil, utils.NewAppError(OperationRecommend, "cancelled", err)
		}
		results = append(results, r.recommend(ctx, logger, incident))
	}

	if r.opts.OutputPath != "" {
		if err := output.WriteJSON(r.opts.OutputPath, results); err != nil {
			return results, utils.NewAppError(OperationRecommend, "save results", err)
		}
		logger.Info("results saved", slog.String("path", r.opts.OutputPath), slog.Int("incidents", len(results)))
	}
	return results, nil
}

func (r *Recommender) recommend(ctx context.Context, logger *slog.Logger, incident models.Incident) models.ActionResult {
	description, _ := eventDescription(ctx, logger, r.client, incident)
	req := models.MatchRequest{
		Name:        incident.Problem,
		Description: description,
		Type:        "default",
		EventID:     incident.EventID,
	}
	result := models.ActionResult{
		RequestBody: req,
		IncidentID:  r.opts.IncidentID,
		EntityLabel: incident.EntityLabel,
	}

	var resp any
	err := retry.Do(ctx, r.opts.Retry, logger, "match actions "+incident.EventID, func(ctx context.Context) error {
		var err error
		resp, err = r.client.MatchActions(ctx, req)
		return err
	})
	if err != nil {
		metrics.ObserveActionRequest(OperationRecommend, metrics.OutcomeError)
		result.Error = err.Error()
		if status := statusOf(err); status != 0 {
			result.ErrorStatus = status
		} else {
			result.ErrorType = errorType(err)
		}
		logger.Error("action match failed",
			slog.String("event_id", incident.EventID),
			slog.Int("status", result.ErrorStatus),
			slog.Any("error", err))
		return result
	}

	metrics.ObserveActionRequest(OperationRecommend, metrics.OutcomeSuccess)
	logger.Info("action match succeeded", slog.String("event_id", incident.EventID))
	result.Response, result.TotalEntries = enumerate(resp)
	return result
}

// enumerate numbers list responses from 1 and counts the entries. A non-list response counts
// as one entry unless it is empty.
func enumerate(resp any) (any, int) {
	switch v := resp.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			entry := map[string]any{"index": i + 1}
			if fields, ok := item.(map[string]any); ok {
				for k, val := range fields {
					entry[k] = val
				}
			} else {
				entry["value"] = item
			}
			out = append(out, entry)
		}
		return out, len(out)
	case map[string]any:
		if len(v) == 0 {
			return v, 0
		}
		return v, 1
	case nil:
		return map[string]any{}, 0
	default:
		if fmt.Sprint(v) == "" {
			return v, 0
		}
		return v, 1
	}
}
