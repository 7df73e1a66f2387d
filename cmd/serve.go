package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/pipeline"
)

var servePort int

// runRequest is the inbound orchestration contract.
type runRequest struct {
	Organization struct {
		Name     string `json:"name"`
		Industry string `json:"industry,omitempty"`
		Website  string `json:"website,omitempty"`
	} `json:"organization"`
	StageConfig *struct {
		StageID              model.StageID                       `json:"stageId"`
		PreviousStageResults map[model.StageID]model.StageResult `json:"previousStageResults,omitempty"`
	} `json:"stageConfig,omitempty"`
	ForceRefresh bool `json:"forceRefresh,omitempty"`
}

// newRouter builds the HTTP surface: the orchestration entry point plus a
// health check, behind permissive CORS for browser callers.
func newRouter(coordinator *pipeline.Coordinator) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Post("/intel/run", func(w http.ResponseWriter, req *http.Request) {
		var body runRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if body.Organization.Name == "" {
			http.Error(w, `{"error":"organization.name is required"}`, http.StatusBadRequest)
			return
		}

		opts := pipeline.RunOptions{ForceRefresh: body.ForceRefresh}
		if body.StageConfig != nil {
			opts.Stage = body.StageConfig.StageID
			opts.Previous = body.StageConfig.PreviousStageResults
		}

		report, err := coordinator.Run(req.Context(), model.OrganizationProfile{
			Name:     body.Organization.Name,
			Industry: body.Organization.Industry,
			Website:  body.Organization.Website,
		}, opts)
		if err != nil {
			zap.L().Error("run request failed",
				zap.String("organization", body.Organization.Name),
				zap.Error(err))
			http.Error(w, `{"error":"pipeline run failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orchestration entry point over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Coordinator),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
