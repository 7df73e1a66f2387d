package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/resilience"
	"github.com/sells-group/intel-cli/pkg/archive"
	"github.com/sells-group/intel-cli/pkg/insight"
	"github.com/sells-group/intel-cli/pkg/statebridge"
)

// Executor wraps one external analysis call per stage: it assembles the
// request from profile and upstream outputs, normalizes the response into
// the stage's typed shape, and degrades to fallback synthesis on failure.
type Executor struct {
	insight  insight.Client
	bridge   statebridge.Client
	archive  archive.Client
	stages   StageTable
	retry    resilience.RetryConfig
	fallback Fallback
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithStages replaces the default stage table.
func WithStages(table StageTable) ExecutorOption {
	return func(e *Executor) {
		e.stages = table
	}
}

// WithRetry replaces the default retry configuration for stage calls.
func WithRetry(cfg resilience.RetryConfig) ExecutorOption {
	return func(e *Executor) {
		e.retry = cfg
	}
}

// NewExecutor creates a stage executor. The bridge and archive clients may
// be nil; upstream loading and analysis archival are then skipped.
func NewExecutor(ic insight.Client, bridge statebridge.Client, arc archive.Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		insight: ic,
		bridge:  bridge,
		archive: arc,
		stages:  DefaultStages(),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.retry.ShouldRetry == nil {
		e.retry.ShouldRetry = func(err error) bool {
			return resilience.IsTransient(err) || insight.IsRetryable(err)
		}
	}
	return e
}

// Execute runs one stage and always settles it: succeeded with a typed
// output, or fallback with a degraded one. The only hard error besides
// context cancellation is extraction failing for an unnamed organization,
// because no downstream stage can proceed without an identity.
func (e *Executor) Execute(ctx context.Context, stage model.StageID, profile *model.OrganizationProfile, upstream map[model.StageID]model.StageResult, requestID string) (model.StageResult, error) {
	spec, ok := e.stages[stage]
	if !ok {
		return model.StageResult{}, eris.Errorf("pipeline: unknown stage %q", stage)
	}

	orgKey := profile.CanonicalKey()
	log := zap.L().With(
		zap.String("organization", orgKey),
		zap.String("stage", string(stage)),
		zap.String("request_id", requestID),
	)

	req := insight.AnalyzeRequest{
		Stage:        spec.Endpoint,
		RequestID:    requestID,
		Organization: profileMap(profile),
		Upstream:     e.assembleUpstream(ctx, orgKey, spec.Dependencies, upstream),
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()
	out, analysis, err := e.call(callCtx, stage, req)
	now := time.Now().UTC()

	if err == nil {
		log.Info("pipeline: stage succeeded", zap.Duration("duration", time.Since(start)))
		e.enrichProfile(stage, profile, out)
		e.archiveAnalysis(ctx, orgKey, requestID, stage, analysis)
		return model.StageResult{
			Stage:     stage,
			Status:    model.StageSucceeded,
			Output:    out,
			Analysis:  analysis,
			RequestID: requestID,
			Timestamp: now,
		}, nil
	}

	// A per-call timeout degrades this stage only; cancellation of the whole
	// run propagates.
	if ctx.Err() != nil {
		return model.StageResult{}, eris.Wrapf(ctx.Err(), "pipeline: %s canceled", stage)
	}

	if stage == model.StageExtraction && strings.TrimSpace(profile.Name) == "" {
		return model.StageResult{
			Stage:     stage,
			Status:    model.StageFailed,
			RequestID: requestID,
			Timestamp: now,
		}, eris.Wrap(err, "pipeline: extraction failed with no organization identity")
	}

	log.Warn("pipeline: stage degraded to fallback", zap.Error(err))
	fb := e.fallback.Synthesize(stage, FallbackContext{Profile: profile, Upstream: upstream})
	e.enrichProfile(stage, profile, fb)
	return model.StageResult{
		Stage:     stage,
		Status:    model.StageFallback,
		Output:    fb,
		RequestID: requestID,
		Timestamp: now,
	}, nil
}

// call invokes the capability with retry on transient failure and decodes
// the response into the stage's typed output. An empty or undecodable
// payload is the same failure class as a refused call.
func (e *Executor) call(ctx context.Context, stage model.StageID, req insight.AnalyzeRequest) (model.StageOutput, string, error) {
	retry := e.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("insight", string(stage))
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*insight.AnalyzeResponse, error) {
		return e.insight.Analyze(ctx, req)
	})
	if err != nil {
		return nil, "", err
	}
	if !resp.Success {
		return nil, "", eris.Errorf("pipeline: %s analysis reported failure", stage)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, "", eris.Errorf("pipeline: %s returned no payload", stage)
	}

	out, err := model.DecodeStageOutput(stage, resp.Data)
	if err != nil {
		return nil, "", err
	}
	if out.Empty() {
		return nil, "", eris.Errorf("pipeline: %s returned an empty payload", stage)
	}
	return out, resp.Analysis, nil
}

// assembleUpstream gathers declared dependency payloads, preferring results
// already in hand and falling back to the State Bridge for stages run in a
// separate call. A missing dependency means an empty upstream context, never
// an error.
func (e *Executor) assembleUpstream(ctx context.Context, orgKey string, deps []model.StageID, upstream map[model.StageID]model.StageResult) map[string]json.RawMessage {
	if len(deps) == 0 {
		return nil
	}

	payloads := make(map[string]json.RawMessage, len(deps))
	for _, dep := range deps {
		if r, ok := upstream[dep]; ok && r.Completed() && r.Output != nil {
			if raw, err := json.Marshal(r.Output); err == nil {
				payloads[string(dep)] = raw
			}
			continue
		}

		if e.bridge == nil {
			continue
		}
		raw, err := e.bridge.GetStage(ctx, orgKey, string(dep))
		if err != nil {
			zap.L().Warn("pipeline: upstream load failed",
				zap.String("organization", orgKey),
				zap.String("dependency", string(dep)),
				zap.Error(err))
			continue
		}
		if raw == nil {
			continue
		}

		var stored model.StageResult
		if err := json.Unmarshal(raw, &stored); err == nil && stored.Output != nil {
			if b, err := json.Marshal(stored.Output); err == nil {
				payloads[string(dep)] = b
			}
			continue
		}
		// Bare payloads from older bridge writers pass through untouched.
		payloads[string(dep)] = raw
	}
	return payloads
}

// enrichProfile folds extraction discoveries into the run's profile. Only
// the extraction stage mutates the profile.
func (e *Executor) enrichProfile(stage model.StageID, profile *model.OrganizationProfile, out model.StageOutput) {
	if stage != model.StageExtraction {
		return
	}
	if extract, ok := out.(model.ProfileExtract); ok {
		profile.MergeDiscovered(extract)
	}
}

// archiveAnalysis reports the analysis text to the archival sink from a
// detached goroutine. Failures are logged and never affect the stage result.
func (e *Executor) archiveAnalysis(ctx context.Context, orgKey, requestID string, stage model.StageID, analysis string) {
	if e.archive == nil || analysis == "" {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		actx, cancel := context.WithTimeout(bg, 10*time.Second)
		defer cancel()
		if err := e.archive.Store(actx, orgKey, requestID, string(stage), analysis); err != nil {
			zap.L().Warn("pipeline: archive analysis failed",
				zap.String("organization", orgKey),
				zap.String("stage", string(stage)),
				zap.Error(err))
		}
	}()
}

func profileMap(p *model.OrganizationProfile) map[string]any {
	raw, err := json.Marshal(p)
	if err != nil {
		return map[string]any{"name": p.Name}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"name": p.Name}
	}
	return m
}
