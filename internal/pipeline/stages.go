// Package pipeline drives an organization through the staged intelligence
// analysis flow: extraction, the five independent domain stages, then
// synthesis. The coordinator owns sequencing, caching, and aggregation; the
// executor owns one external call and its fallback.
package pipeline

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/intel-cli/internal/model"
)

// StageSpec binds a stage to its analysis endpoint, call timeout, and the
// upstream outputs its request payload carries.
type StageSpec struct {
	Endpoint     string
	Timeout      time.Duration
	Dependencies []model.StageID
}

// StageTable maps every pipeline stage to its spec.
type StageTable map[model.StageID]StageSpec

// DefaultStages returns the reference stage table. Extraction and synthesis
// get the longer timeout; the middle stages are lighter calls.
func DefaultStages() StageTable {
	table := make(StageTable, len(model.AllStages()))
	for _, id := range model.AllStages() {
		timeout := 45 * time.Second
		if id == model.StageExtraction || id == model.StageSynthesis {
			timeout = 60 * time.Second
		}
		table[id] = StageSpec{
			Endpoint:     string(id),
			Timeout:      timeout,
			Dependencies: id.Dependencies(),
		}
	}
	return table
}

type stageFile struct {
	Stages map[string]stageOverride `yaml:"stages"`
}

type stageOverride struct {
	Endpoint    string `yaml:"endpoint"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LoadStageFile returns the default stage table with per-stage endpoint and
// timeout overrides applied from a YAML file. An empty path returns the
// defaults unchanged.
func LoadStageFile(path string) (StageTable, error) {
	table := DefaultStages()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read stage file %s", path)
	}

	var f stageFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse stage file %s", path)
	}

	for name, ov := range f.Stages {
		id := model.StageID(name)
		spec, ok := table[id]
		if !ok {
			return nil, eris.Errorf("pipeline: unknown stage %q in stage file", name)
		}
		if ov.Endpoint != "" {
			spec.Endpoint = ov.Endpoint
		}
		if ov.TimeoutSecs > 0 {
			spec.Timeout = time.Duration(ov.TimeoutSecs) * time.Second
		}
		table[id] = spec
	}
	return table, nil
}
