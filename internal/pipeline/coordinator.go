package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/intel-cli/internal/cache"
	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/store"
	"github.com/sells-group/intel-cli/pkg/statebridge"
)

// DefaultTTL is how long a completed report is served from cache.
const DefaultTTL = 5 * time.Minute

// RunOptions selects what a coordinator call executes.
type RunOptions struct {
	// Stage, when set, runs that single stage instead of the full pipeline.
	// Missing upstream results are loaded from the State Bridge.
	Stage model.StageID

	// Previous supplies upstream results already computed by the caller,
	// used with Stage to avoid re-running earlier stages.
	Previous map[model.StageID]model.StageResult

	// ForceRefresh bypasses the cache read. The fresh result is still
	// recorded and concurrent refreshes still coalesce.
	ForceRefresh bool
}

// CoordinatorConfig tunes coordinator behavior.
type CoordinatorConfig struct {
	// TTL bounds cache entry lifetime. Zero means DefaultTTL.
	TTL time.Duration

	// Sequential disables the concurrent fan-out of the independent middle
	// stages, mostly useful when debugging stage interactions.
	Sequential bool
}

// Coordinator sequences stage executors over the dependency graph, threads
// the correlation id through every stage, persists settled results via the
// State Bridge, and aggregates everything into one report. It is the single
// public entry point of the pipeline.
type Coordinator struct {
	exec       *Executor
	bridge     statebridge.Client
	store      store.Store
	memo       *cache.Memo[*model.IntelReport]
	ttl        time.Duration
	sequential bool
}

// NewCoordinator creates a pipeline coordinator. The store may be nil; run
// history is then not recorded.
func NewCoordinator(exec *Executor, bridge statebridge.Client, st store.Store, cfg CoordinatorConfig) *Coordinator {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coordinator{
		exec:       exec,
		bridge:     bridge,
		store:      st,
		memo:       cache.New[*model.IntelReport](),
		ttl:        ttl,
		sequential: cfg.Sequential,
	}
}

// fatalRunError carries the well-formed empty report for a run that failed
// at extraction. It rides the error channel so the failure is never cached,
// then unwraps back into a report at the public boundary.
type fatalRunError struct {
	report *model.IntelReport
}

func (e *fatalRunError) Error() string {
	return "pipeline: extraction produced no organization identity"
}

// Run executes the pipeline (or a single stage) for an organization. Two
// calls with the same organization, industry, and mode within the TTL window
// share one result; concurrent identical calls share one execution. The
// returned report is always well-formed: a run that failed at extraction
// comes back with Success false and every tab present but empty. The error
// return is reserved for context cancellation and invalid options.
func (c *Coordinator) Run(ctx context.Context, profile model.OrganizationProfile, opts RunOptions) (*model.IntelReport, error) {
	mode := "full"
	if opts.Stage != "" {
		if !opts.Stage.Valid() {
			return nil, eris.Errorf("pipeline: unknown stage %q", opts.Stage)
		}
		mode = "stage:" + string(opts.Stage)
	}
	key := profile.CanonicalKey() + "|" + profile.Industry + "|" + mode

	producer := func(ctx context.Context) (*model.IntelReport, error) {
		return c.execute(ctx, profile, opts, mode)
	}

	var report *model.IntelReport
	var err error
	if opts.ForceRefresh {
		report, err = c.memo.Refresh(ctx, key, c.ttl, producer)
	} else {
		report, _, err = c.memo.Do(ctx, key, c.ttl, producer)
	}
	if err != nil {
		var fatal *fatalRunError
		if eris.As(err, &fatal) {
			return fatal.report, nil
		}
		return nil, err
	}
	return report, nil
}

func (c *Coordinator) execute(ctx context.Context, profile model.OrganizationProfile, opts RunOptions, mode string) (*model.IntelReport, error) {
	orgKey := profile.CanonicalKey()
	log := zap.L().With(zap.String("organization", orgKey), zap.String("mode", mode))

	run := c.beginRun(ctx, log, orgKey, mode)
	if opts.Stage != "" {
		return c.runSingle(ctx, log, run, &profile, opts)
	}
	return c.runFull(ctx, log, run, &profile)
}

func (c *Coordinator) runFull(ctx context.Context, log *zap.Logger, run *model.IntelRun, profile *model.OrganizationProfile) (*model.IntelReport, error) {
	requestID := uuid.New().String()
	log = log.With(zap.String("request_id", requestID))
	c.recordRequestID(ctx, log, run, requestID)

	results := make(map[model.StageID]model.StageResult, len(model.AllStages()))

	extraction, err := c.runStage(ctx, log, run, model.StageExtraction, profile, nil, requestID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Error("pipeline: run failed at extraction", zap.Error(err))
		c.finishRun(ctx, log, run, model.RunStatusFailed, &model.RunResult{Error: err.Error()})
		return nil, &fatalRunError{report: emptyReport(profile, requestID)}
	}
	results[model.StageExtraction] = extraction

	if err := c.runMiddle(ctx, log, run, profile, results, requestID); err != nil {
		return nil, err
	}

	synthesis, err := c.runStage(ctx, log, run, model.StageSynthesis, profile, snapshot(results), requestID)
	if err != nil {
		return nil, err
	}
	results[model.StageSynthesis] = synthesis

	report := buildReport(profile, results, requestID)
	c.finishRun(ctx, log, run, runStatus(report), &model.RunResult{
		Success:         true,
		PhasesCompleted: report.Metadata.PhasesCompleted,
		Degraded:        report.Metadata.Degraded,
	})
	log.Info("pipeline: run complete",
		zap.Int("phases_completed", len(report.Metadata.PhasesCompleted)),
		zap.Int("degraded", len(report.Metadata.Degraded)))
	return report, nil
}

// runMiddle settles the five independent domain stages. None reads another's
// output, so they fan out concurrently unless sequential mode is on; a
// timeout in one degrades that stage only.
func (c *Coordinator) runMiddle(ctx context.Context, log *zap.Logger, run *model.IntelRun, profile *model.OrganizationProfile, results map[model.StageID]model.StageResult, requestID string) error {
	upstream := snapshot(results)

	if c.sequential {
		for _, stage := range model.MiddleStages() {
			res, err := c.runStage(ctx, log, run, stage, profile, upstream, requestID)
			if err != nil {
				return err
			}
			results[stage] = res
		}
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, stage := range model.MiddleStages() {
		g.Go(func() error {
			res, err := c.runStage(gctx, log, run, stage, profile, upstream, requestID)
			if err != nil {
				return err
			}
			mu.Lock()
			results[stage] = res
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (c *Coordinator) runSingle(ctx context.Context, log *zap.Logger, run *model.IntelRun, profile *model.OrganizationProfile, opts RunOptions) (*model.IntelReport, error) {
	stage := opts.Stage
	orgKey := profile.CanonicalKey()

	results := make(map[model.StageID]model.StageResult, len(opts.Previous)+2)
	for id, r := range opts.Previous {
		results[id] = r
	}
	for _, dep := range stage.Dependencies() {
		if _, ok := results[dep]; ok {
			continue
		}
		if r, ok := c.loadBridgeResult(ctx, log, orgKey, dep); ok {
			results[dep] = r
		}
	}

	requestID := ""
	if r, ok := results[model.StageExtraction]; ok {
		requestID = r.RequestID
		if extract, isExtract := r.Output.(model.ProfileExtract); isExtract {
			profile.MergeDiscovered(extract)
		}
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log = log.With(zap.String("request_id", requestID))
	c.recordRequestID(ctx, log, run, requestID)

	res, err := c.runStage(ctx, log, run, stage, profile, results, requestID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Error("pipeline: stage run failed", zap.Error(err))
		c.finishRun(ctx, log, run, model.RunStatusFailed, &model.RunResult{Error: err.Error()})
		return nil, &fatalRunError{report: emptyReport(profile, requestID)}
	}
	results[stage] = res

	report := buildReport(profile, results, requestID)
	c.finishRun(ctx, log, run, runStatus(report), &model.RunResult{
		Success:         true,
		PhasesCompleted: report.Metadata.PhasesCompleted,
		Degraded:        report.Metadata.Degraded,
	})
	return report, nil
}

// runStage executes one stage, persists its settled result via the State
// Bridge, and records run history. Bridge and store failures are logged and
// never alter the stage outcome.
func (c *Coordinator) runStage(ctx context.Context, log *zap.Logger, run *model.IntelRun, stage model.StageID, profile *model.OrganizationProfile, upstream map[model.StageID]model.StageResult, requestID string) (model.StageResult, error) {
	row := c.beginStage(ctx, log, run, stage)

	res, err := c.exec.Execute(ctx, stage, profile, upstream, requestID)
	if err != nil {
		c.finishStage(ctx, log, row, model.StageFailed)
		return res, err
	}

	c.persistStage(ctx, log, profile.CanonicalKey(), res)
	c.finishStage(ctx, log, row, res.Status)
	return res, nil
}

// persistStage saves the settled result so a later stage invoked in a
// separate call can retrieve it. Best-effort.
func (c *Coordinator) persistStage(ctx context.Context, log *zap.Logger, orgKey string, res model.StageResult) {
	if c.bridge == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		log.Warn("pipeline: marshal stage result", zap.String("stage", string(res.Stage)), zap.Error(err))
		return
	}
	if err := c.bridge.SaveStage(ctx, orgKey, string(res.Stage), raw); err != nil {
		log.Warn("pipeline: save stage to bridge failed",
			zap.String("stage", string(res.Stage)), zap.Error(err))
	}
}

func (c *Coordinator) loadBridgeResult(ctx context.Context, log *zap.Logger, orgKey string, stage model.StageID) (model.StageResult, bool) {
	if c.bridge == nil {
		return model.StageResult{}, false
	}
	raw, err := c.bridge.GetStage(ctx, orgKey, string(stage))
	if err != nil {
		log.Warn("pipeline: load stage from bridge failed",
			zap.String("stage", string(stage)), zap.Error(err))
		return model.StageResult{}, false
	}
	if raw == nil {
		return model.StageResult{}, false
	}
	var res model.StageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Warn("pipeline: decode bridged stage failed",
			zap.String("stage", string(stage)), zap.Error(err))
		return model.StageResult{}, false
	}
	if !res.Completed() || res.Output == nil {
		return model.StageResult{}, false
	}
	return res, true
}

// Run-history bookkeeping below is best-effort: the audit store never gates
// pipeline progress.

func (c *Coordinator) beginRun(ctx context.Context, log *zap.Logger, orgKey, mode string) *model.IntelRun {
	if c.store == nil {
		return nil
	}
	run, err := c.store.CreateRun(ctx, orgKey, mode)
	if err != nil {
		log.Warn("pipeline: create run record failed", zap.Error(err))
		return nil
	}
	if err := c.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("pipeline: update run record failed", zap.Error(err))
	}
	return run
}

func (c *Coordinator) recordRequestID(ctx context.Context, log *zap.Logger, run *model.IntelRun, requestID string) {
	if c.store == nil || run == nil {
		return
	}
	if err := c.store.SetRunRequestID(ctx, run.ID, requestID); err != nil {
		log.Warn("pipeline: record request id failed", zap.Error(err))
	}
}

func (c *Coordinator) finishRun(ctx context.Context, log *zap.Logger, run *model.IntelRun, status model.RunStatus, result *model.RunResult) {
	if c.store == nil || run == nil {
		return
	}
	if err := c.store.CompleteRun(ctx, run.ID, status, result); err != nil {
		log.Warn("pipeline: complete run record failed", zap.Error(err))
	}
}

func (c *Coordinator) beginStage(ctx context.Context, log *zap.Logger, run *model.IntelRun, stage model.StageID) *model.RunStage {
	if c.store == nil || run == nil {
		return nil
	}
	row, err := c.store.CreateStage(ctx, run.ID, stage)
	if err != nil {
		log.Warn("pipeline: create stage record failed", zap.Error(err))
		return nil
	}
	return row
}

func (c *Coordinator) finishStage(ctx context.Context, log *zap.Logger, row *model.RunStage, status model.StageStatus) {
	if c.store == nil || row == nil {
		return
	}
	if err := c.store.CompleteStage(ctx, row.ID, status); err != nil {
		log.Warn("pipeline: complete stage record failed", zap.Error(err))
	}
}

func runStatus(report *model.IntelReport) model.RunStatus {
	if len(report.Metadata.Degraded) > 0 {
		return model.RunStatusPartial
	}
	return model.RunStatusComplete
}

func snapshot(results map[model.StageID]model.StageResult) map[model.StageID]model.StageResult {
	out := make(map[model.StageID]model.StageResult, len(results))
	for id, r := range results {
		out[id] = r
	}
	return out
}
