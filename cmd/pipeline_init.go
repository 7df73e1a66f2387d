package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intel-cli/internal/pipeline"
	"github.com/sells-group/intel-cli/internal/resilience"
	"github.com/sells-group/intel-cli/internal/store"
	"github.com/sells-group/intel-cli/pkg/archive"
	"github.com/sells-group/intel-cli/pkg/insight"
	"github.com/sells-group/intel-cli/pkg/statebridge"
)

// pipelineEnv holds the initialized store, clients, and coordinator shared
// by the run/stage/serve commands.
type pipelineEnv struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "intel.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the external service clients, and the
// coordinator. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	stages, err := pipeline.LoadStageFile(cfg.Pipeline.StageFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	insightOpts := []insight.Option{
		insight.WithRateLimit(cfg.Insight.RatePerSecond, cfg.Insight.RateBurst),
	}
	if cfg.Insight.BaseURL != "" {
		insightOpts = append(insightOpts, insight.WithBaseURL(cfg.Insight.BaseURL))
	}
	insightClient := insight.NewClient(cfg.Insight.Key, insightOpts...)

	var bridge statebridge.Client
	if cfg.Bridge.URL != "" {
		bridgeOpts := []statebridge.Option{}
		if cfg.Bridge.Key != "" {
			bridgeOpts = append(bridgeOpts, statebridge.WithKey(cfg.Bridge.Key))
		}
		if cfg.Bridge.TimeoutSecs > 0 {
			bridgeOpts = append(bridgeOpts, statebridge.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Bridge.TimeoutSecs) * time.Second,
			}))
		}
		bridge = statebridge.NewClient(cfg.Bridge.URL, bridgeOpts...)
	} else {
		zap.L().Warn("bridge url not configured, cross-call stage persistence disabled")
	}

	var archiveClient archive.Client
	if cfg.Archive.URL != "" {
		archiveOpts := []archive.Option{}
		if cfg.Archive.TimeoutSecs > 0 {
			archiveOpts = append(archiveOpts, archive.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Archive.TimeoutSecs) * time.Second,
			}))
		}
		archiveClient = archive.NewClient(cfg.Archive.URL, archiveOpts...)
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Pipeline.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Pipeline.RetryAttempts
	}

	exec := pipeline.NewExecutor(insightClient, bridge, archiveClient,
		pipeline.WithStages(stages),
		pipeline.WithRetry(retry),
	)
	coordinator := pipeline.NewCoordinator(exec, bridge, st, pipeline.CoordinatorConfig{
		TTL:        time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		Sequential: cfg.Pipeline.Sequential,
	})

	return &pipelineEnv{Store: st, Coordinator: coordinator}, nil
}
