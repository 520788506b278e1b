package commands

import (
	"github.com/spf13/cobra"
)

var prcOutput string

var prcCmd = &cobra.Command{
	Use:   "prc",
	Short: "Enrich probable root causes with entity labels",
	Long: `Fetch open incidents with a probable root cause, resolve the endpoint,
service and infrastructure labels of every root-cause entity, persist the
enriched map and print it to stdout.`,
	RunE: runPRC,
}

func init() {
	prcCmd.Flags().StringVarP(&prcOutput, "output", "o", "", "Output file (default from config)")
}

func runPRC(cmd *cobra.Command, _ []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	path := prcOutput
	if path == "" {
		path = rt.cfg.Output.Path(rt.cfg.Output.PRCFile)
	}

	out, err := rt.pipeline(path).Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
