package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intel-cli/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "stage", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "intel-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("name")
	require.NotNil(t, flag, "run command should have --name flag")

	refresh := runCmd.Flags().Lookup("force-refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, "false", refresh.DefValue)
}

func TestStageCommand_Flags(t *testing.T) {
	require.NotNil(t, stageCmd.Flags().Lookup("name"))
	require.NotNil(t, stageCmd.Flags().Lookup("previous"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, []model.IntelRun{
		{
			ID:              "run-1",
			OrganizationKey: "acme-corp",
			Mode:            "full",
			Status:          model.RunStatusComplete,
			Result: &model.RunResult{
				PhasesCompleted: []model.StageID{model.StageExtraction, model.StageSynthesis},
			},
			CreatedAt: time.Now(),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "ORGANIZATION")
	assert.Contains(t, out, "acme-corp")
	assert.Contains(t, out, "extraction,synthesis")
}
