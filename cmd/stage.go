package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/pipeline"
)

var (
	stageName     string
	stageIndustry string
	stagePrevious string
	stageRefresh  bool
)

var stageCmd = &cobra.Command{
	Use:   "stage <stage-id>",
	Short: "Run a single pipeline stage",
	Long:  "Runs one stage out of order. Upstream results come from a previous-results file when given, otherwise from the State Bridge.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stage := model.StageID(args[0])
		if !stage.Valid() {
			return eris.Errorf("unknown stage: %s", args[0])
		}

		var previous map[model.StageID]model.StageResult
		if stagePrevious != "" {
			raw, err := os.ReadFile(stagePrevious)
			if err != nil {
				return eris.Wrap(err, "read previous results")
			}
			if err := json.Unmarshal(raw, &previous); err != nil {
				return eris.Wrap(err, "parse previous results")
			}
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Coordinator.Run(ctx, model.OrganizationProfile{
			Name:     stageName,
			Industry: stageIndustry,
		}, pipeline.RunOptions{
			Stage:        stage,
			Previous:     previous,
			ForceRefresh: stageRefresh,
		})
		if err != nil {
			return eris.Wrapf(err, "stage %s run", stage)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	stageCmd.Flags().StringVar(&stageName, "name", "", "organization name (required)")
	stageCmd.Flags().StringVar(&stageIndustry, "industry", "", "industry hint")
	stageCmd.Flags().StringVar(&stagePrevious, "previous", "", "path to a JSON file of previously computed stage results")
	stageCmd.Flags().BoolVar(&stageRefresh, "force-refresh", false, "bypass the result cache")
	_ = stageCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(stageCmd)
}
