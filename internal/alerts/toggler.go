// Package alerts enables and disables application alert configurations.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/instana-sre/internal/metrics"
	"github.com/miradorstack/instana-sre/internal/models"
	"github.com/miradorstack/instana-sre/internal/utils"
)

const (
	OperationEnable  = "alerts_enable"
	OperationDisable = "alerts_disable"
)

// Client is the subset of the Instana client used for alert toggling.
type Client interface {
	ListAlertConfigs(ctx context.Context, applicationID string) ([]models.AlertConfig, error)
	GetAlertConfig(ctx context.Context, id string) (models.AlertConfig, error)
	EnableAlertConfig(ctx context.Context, id string) error
	DisableAlertConfig(ctx context.Context, id string) error
	UpdateAlertConfig(ctx context.Context, cfg models.AlertConfig) (models.AlertConfig, error)
}

// Toggler flips every alert configuration of one application.
type Toggler struct {
	logger        *slog.Logger
	client        Client
	applicationID string
	incidentTag   string
}

// NewToggler constructs a Toggler. A non-empty incidentTag is prefixed to alert names on
// disable and stripped again on enable.
func NewToggler(logger *slog.Logger, client Client, applicationID, incidentTag string) *Toggler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toggler{
		logger:        logger,
		client:        client,
		applicationID: applicationID,
		incidentTag:   strings.TrimSpace(incidentTag),
	}
}

// Disable disables every enabled alert configuration. The first upstream error aborts the run.
func (t *Toggler) Disable(ctx context.Context) ([]models.AlertToggle, error) {
	return t.toggle(ctx, OperationDisable, false)
}

// Enable enables every disabled alert configuration. The first upstream error aborts the run.
func (t *Toggler) Enable(ctx context.Context) ([]models.AlertToggle, error) {
	return t.toggle(ctx, OperationEnable, true)
}

func (t *Toggler) toggle(ctx context.Context, op string, enable bool) ([]models.AlertToggle, error) {
	start := time.Now()
	out, err := t.run(ctx, op, enable)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveRun(op, time.Since(start), outcome)
	return out, err
}

func (t *Toggler) run(ctx context.Context, op string, enable bool) ([]models.AlertToggle, error) {
	if t.applicationID == "" {
		return nil, utils.NewAppError(op, "application id not configured", nil)
	}

	configs, err := t.client.ListAlertConfigs(ctx, t.applicationID)
	if err != nil {
		return nil, utils.NewAppError(op, "list alert configs", err)
	}

	var targets []models.AlertConfig
	for _, cfg := range configs {
		if cfg.ID != "" && cfg.Enabled != enable {
			targets = append(targets, cfg)
		}
	}
	if len(targets) == 0 {
		state := "enabled"
		if enable {
			state = "disabled"
		}
		t.logger.Info("no alerts to toggle", slog.String("state", state), slog.String("application_id", t.applicationID))
		return []models.AlertToggle{}, nil
	}

	toggled := make([]models.AlertToggle, 0, len(targets))
	for _, cfg := range targets {
		if enable {
			err = t.client.EnableAlertConfig(ctx, cfg.ID)
		} else {
			err = t.client.DisableAlertConfig(ctx, cfg.ID)
		}
		if err != nil {
			return toggled, utils.NewAppError(op, fmt.Sprintf("toggle alert %s", cfg.ID), err)
		}

		details, err := t.client.GetAlertConfig(ctx, cfg.ID)
		if err != nil {
			return toggled, utils.NewAppError(op, fmt.Sprintf("fetch alert %s", cfg.ID), err)
		}
		if details.ID == "" {
			details.ID = cfg.ID
		}

		renamed := false
		if name := t.rename(details.Name, enable); name != details.Name {
			details.Name = name
			updated, err := t.client.UpdateAlertConfig(ctx, details)
			if err != nil {
				return toggled, utils.NewAppError(op, fmt.Sprintf("rename alert %s", cfg.ID), err)
			}
			details = updated
			renamed = true
		}

		t.logger.Info("alert toggled",
			slog.String("name", details.Name),
			slog.String("id", details.ID),
			slog.Bool("enabled", details.Enabled),
			slog.Bool("renamed", renamed))
		toggled = append(toggled, models.AlertToggle{
			ID:      details.ID,
			Name:    details.Name,
			Enabled: details.Enabled,
			Renamed: renamed,
		})
	}
	return toggled, nil
}

// rename applies the incident tag to name: added when disabling, removed when enabling.
func (t *Toggler) rename(name string, enable bool) string {
	if t.incidentTag == "" {
		return name
	}
	prefix := TagPrefix(t.incidentTag)
	if enable {
		return strings.TrimPrefix(name, prefix)
	}
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// TagPrefix is the name prefix used for tag.
func TagPrefix(tag string) string {
	return "[" + tag + "] "
}
