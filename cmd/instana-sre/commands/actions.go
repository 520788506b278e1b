package commands

import (
	"github.com/spf13/cobra"

	"github.com/miradorstack/instana-sre/internal/actions"
	"github.com/miradorstack/instana-sre/internal/models"
)

var actionsOutput string

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Ask the Instana AI action endpoints about PRC incidents",
}

var actionsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Match recommended actions for every PRC incident",
	RunE:  runRecommend,
}

var actionsRemediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Generate remediation actions for every PRC incident and its root causes",
	RunE:  runRemediate,
}

func init() {
	actionsCmd.PersistentFlags().StringVarP(&actionsOutput, "output", "o", "", "Output file (default from config)")

	actionsCmd.AddCommand(actionsRecommendCmd)
	actionsCmd.AddCommand(actionsRemediateCmd)
}

type runFailure struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func outputPath(rt *runtime, name string) string {
	if actionsOutput != "" {
		return actionsOutput
	}
	return rt.cfg.Output.Path(name)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	recommender := actions.NewRecommender(rt.logger, rt.client, rt.actionOptions(outputPath(rt, rt.cfg.Output.RecommendFile)))
	results, err := recommender.Run(ctx)
	if err != nil {
		_ = printJSON(cmd.OutOrStdout(), runFailure{Status: "error", Message: err.Error()})
		return err
	}

	status := models.StatusSuccess
	if len(results) == 0 {
		status = models.StatusNoIncidentsFound
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"results": results, "status": status})
}

func runRemediate(cmd *cobra.Command, _ []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	remediator := actions.NewRemediator(rt.logger, rt.client, rt.resolver(), rt.actionOptions(outputPath(rt, rt.cfg.Output.RemediationFile)))
	report, err := remediator.Run(ctx)
	if err != nil {
		_ = printJSON(cmd.OutOrStdout(), runFailure{Status: "error", Message: err.Error()})
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
