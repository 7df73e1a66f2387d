package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/pipeline"
)

var (
	runName     string
	runIndustry string
	runWebsite  string
	runRefresh  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full intelligence pipeline for one organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		profile := model.OrganizationProfile{
			Name:     runName,
			Industry: runIndustry,
			Website:  runWebsite,
		}

		report, err := env.Coordinator.Run(ctx, profile, pipeline.RunOptions{
			ForceRefresh: runRefresh,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("pipeline run finished",
			zap.String("organization", profile.Name),
			zap.Bool("success", report.Success),
			zap.String("request_id", report.RequestID),
			zap.Int("phases_completed", len(report.Metadata.PhasesCompleted)),
			zap.Int("degraded", len(report.Metadata.Degraded)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "organization name (required)")
	runCmd.Flags().StringVar(&runIndustry, "industry", "", "industry hint")
	runCmd.Flags().StringVar(&runWebsite, "website", "", "organization website")
	runCmd.Flags().BoolVar(&runRefresh, "force-refresh", false, "bypass the result cache")
	_ = runCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(runCmd)
}
