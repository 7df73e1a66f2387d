package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intel-cli/internal/model"
	"github.com/sells-group/intel-cli/internal/pipeline"
	"github.com/sells-group/intel-cli/pkg/insight"
)

// newAnalysisBackend serves one well-formed payload per stage endpoint.
func newAnalysisBackend(t *testing.T) *httptest.Server {
	t.Helper()
	payloads := map[string]string{
		"extraction":   `{"name":"Acme Corp","industry":"technology","summary":"Acme builds robots."}`,
		"competitive":  `{"competitors":[{"name":"Globex","position":"challenger"}],"summary":"Two-player market."}`,
		"stakeholders": `{"groups":[{"category":"investors","names":["Initech Capital"]}],"summary":"Concentrated."}`,
		"media":        `{"outlets":[{"outlet":"TechWire","sentiment":"positive"}],"summary":"Favorable."}`,
		"regulatory":   `{"bodies":[{"name":"FTC","scrutiny":"low"}],"risk_level":"low","summary":"Quiet."}`,
		"trends":       `{"trends":[{"name":"automation","direction":"up"}],"summary":"Growing."}`,
		"synthesis":    `{"executive_summary":"Acme Corp is well positioned.","key_findings":["Leads automation"]}`,
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stage := strings.TrimPrefix(r.URL.Path, "/analyze/")
		data, ok := payloads[stage]
		if !ok {
			http.Error(w, `{"success":false}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"data":%s,"analysis":"%s analysis"}`, data, stage)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	backend := newAnalysisBackend(t)
	exec := pipeline.NewExecutor(
		insight.NewClient("test-key", insight.WithBaseURL(backend.URL)),
		nil, nil,
	)
	return newRouter(pipeline.NewCoordinator(exec, nil, nil, pipeline.CoordinatorConfig{}))
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_RunFullPipeline(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"organization": map[string]string{"name": "Acme Corp", "industry": "technology"},
	})
	req := httptest.NewRequest(http.MethodPost, "/intel/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report model.IntelReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.NotEmpty(t, report.RequestID)
	assert.Equal(t, model.AllStages(), report.Metadata.PhasesCompleted)
	for _, key := range model.TabKeys() {
		_, ok := report.Tabs[key]
		assert.True(t, ok, "missing tab %s", key)
	}
}

func TestRouter_RunSingleStage(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"organization": map[string]string{"name": "Acme Corp"},
		"stageConfig":  map[string]any{"stageId": "extraction"},
	})
	req := httptest.NewRequest(http.MethodPost, "/intel/run", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report model.IntelReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, []model.StageID{model.StageExtraction}, report.Metadata.PhasesCompleted)
}

func TestRouter_RunMissingName(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/intel/run", strings.NewReader(`{"organization":{}}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_RunInvalidBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/intel/run", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
