package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/instana-sre/internal/alerts"
	"github.com/miradorstack/instana-sre/internal/config"
	"github.com/miradorstack/instana-sre/internal/models"
)

var (
	alertsTag   string
	alertsAppID string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Enable or disable application alert configurations",
}

var alertsEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable every disabled alert of the application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAlerts(cmd, (*alerts.Toggler).Enable)
	},
}

var alertsDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable every enabled alert of the application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAlerts(cmd, (*alerts.Toggler).Disable)
	},
}

func init() {
	alertsCmd.PersistentFlags().StringVar(&alertsTag, "tag", "", "Incident tag prefixed to alert names on disable and stripped on enable")
	alertsCmd.PersistentFlags().StringVar(&alertsAppID, "application-id", "", "Application id (default APPLICATION_ID)")

	alertsCmd.AddCommand(alertsEnableCmd)
	alertsCmd.AddCommand(alertsDisableCmd)
}

type toggleFunc func(*alerts.Toggler, context.Context) ([]models.AlertToggle, error)

func runAlerts(cmd *cobra.Command, toggle toggleFunc) error {
	rt, err := setup(true, func(cfg *config.Config) {
		if alertsAppID != "" {
			cfg.Instana.ApplicationID = alertsAppID
		}
		if alertsTag != "" {
			cfg.Alerts.IncidentTag = alertsTag
		}
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	toggler := alerts.NewToggler(rt.logger, rt.client, rt.cfg.Instana.ApplicationID, rt.cfg.Alerts.IncidentTag)

	toggled, err := toggle(toggler, ctx)
	if err != nil {
		return err
	}
	if len(toggled) == 0 {
		rt.logger.Info("no alerts needed toggling")
	}
	for _, alert := range toggled {
		rt.logger.Info("alert details",
			slog.String("id", alert.ID),
			slog.String("name", alert.Name),
			slog.Bool("enabled", alert.Enabled))
	}
	return printJSON(cmd.OutOrStdout(), toggled)
}
