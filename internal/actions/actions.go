// Package actions forwards incident context to the Instana AI action endpoints.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/miradorstack/instana-sre/internal/engine"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/repo"
	"github.com/miradorstack/instana-sre/internal/retry"
)

// Client is the subset of the Instana client used by the action commands.
type Client interface {
	FetchIncidents(ctx context.Context) ([]models.Incident, error)
	GetAlertConfig(ctx context.Context, id string) (models.AlertConfig, error)
	MatchActions(ctx context.Context, req models.MatchRequest) (any, error)
	GenerateActions(ctx context.Context, req models.GenerateRequest) (int, any, error)
}

// Options is shared by the recommender and the remediator.
type Options struct {
	Filter     engine.IncidentFilter
	IncidentID *int
	// OutputPath is where results are persisted; empty disables persistence.
	OutputPath string
	Retry      retry.Policy
}

func selectIncidents(ctx context.Context, logger *slog.Logger, client Client, opts Options) ([]models.Incident, error) {
	incidents, err := client.FetchIncidents(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("fetched incidents", slog.Int("count", len(incidents)))
	engine.LogSummary(logger, incidents, opts.IncidentID)

	filtered := opts.Filter.Apply(incidents)
	logger.Info("filtered prc incidents", slog.Int("matched", len(filtered)))
	if len(filtered) == 0 {
		logger.Info("no incidents found after filtering")
	}
	return filtered, nil
}

// eventDescription returns the description of the incident's event specification, or "".
func eventDescription(ctx context.Context, logger *slog.Logger, client Client, incident models.Incident) (string, bool) {
	if incident.EventSpecificationID == "" {
		return "", false
	}
	spec, err := client.GetAlertConfig(ctx, incident.EventSpecificationID)
	if err != nil {
		logger.Error("failed to fetch event specification",
			slog.String("event_id", incident.EventID),
			slog.String("event_specification_id", incident.EventSpecificationID),
			slog.Any("error", err))
		return "", false
	}
	logger.Info("fetched event specification", slog.String("event_id", incident.EventID))
	return spec.Description, true
}

// capitalize upper-cases the first letter and lower-cases the rest, so INFRASTRUCTURE
// becomes Infrastructure.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// errorType classifies a failure that carries no HTTP status.
func errorType(err error) string {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return "network_error"
	default:
		return "unexpected_error"
	}
}

func statusOf(err error) int {
	return repo.StatusCode(err)
}
