package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"obsnote/adapters/postgres"
	"obsnote/app"
	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/domain/sample"
	"obsnote/internal/analysis/bubbleup"
	"obsnote/internal/api"
	"obsnote/internal/metrics"
	"obsnote/internal/migration"
	"obsnote/internal/state"
	"obsnote/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var selectionStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubSearch struct{}

func (stubSearch) Fetch(_ context.Context, req ports.FetchRequest) ([]sample.Document, error) {
	counts := map[string]int{"cart": 2, "checkout": 8}
	if req.Window.Start.Equal(selectionStart) {
		counts = map[string]int{"cart": 8, "checkout": 2}
	}
	var docs []sample.Document
	for value, n := range counts {
		for i := 0; i < n; i++ {
			docs = append(docs, sample.Document{"service": map[string]interface{}{"name": value}})
		}
	}
	return docs, nil
}

type stubMetadata struct{}

func (stubMetadata) GetFields(context.Context, core.IndexName) ([]sample.FieldMetadata, error) {
	return []sample.FieldMetadata{{Name: "service.name", StorageType: sample.StorageTypeKeyword}}, nil
}

type stubLogPattern struct {
	err error
}

func (s stubLogPattern) Analyze(context.Context, logpattern.AnalyzeRequest) (*logpattern.AnalyzeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &logpattern.AnalyzeResponse{LogInsights: []logpattern.LogPattern{{Pattern: "ok", Count: 4}}}, nil
}

type stubMemory struct{}

func (stubMemory) GetTraces(context.Context, string) ([]ports.AgentTrace, bool, error) {
	return []ports.AgentTrace{{ID: "t1", Input: "plan"}}, false, nil
}

func newTestServer(t *testing.T, logPatterns ports.LogPatternPort) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))

	repo := postgres.NewParagraphOutputRepository(db)
	states := state.NewStore()
	m := metrics.New()
	analyzer := bubbleup.NewAnalyzer(bubbleup.NewSampler(stubSearch{}, 0), bubbleup.NewFieldDiscoverer(stubMetadata{}), bubbleup.Options{})

	return NewServer(Services{
		BubbleUp:    app.NewBubbleUpService(analyzer, repo, states, m),
		LogPatterns: app.NewLogPatternService(logPatterns, repo, states, m),
		Paragraphs:  app.NewParagraphService(repo, states),
		AgentTraces: app.NewAgentTraceService(stubMemory{}, time.Hour),
		Events:      api.NewSSEHub(states),
		Metrics:     m,
	})
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func bubbleUpBody(index string) string {
	return fmt.Sprintf(`{"index":%q,"time_field":"@timestamp","start":%q,"end":%q}`,
		index, selectionStart.Format(time.RFC3339), selectionStart.Add(10*time.Minute).Format(time.RFC3339))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestBubbleUpRoundTrip(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})

	w := do(s, http.MethodPost, "/api/paragraphs/p1/bubbleup", bubbleUpBody("logs-*"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"field":"service.name"`)

	w = do(s, http.MethodGet, "/api/paragraphs/p1/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(s, http.MethodGet, "/api/paragraphs/p1/output", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"bubble_up"`)

	w = do(s, http.MethodGet, "/api/paragraphs/p1/report?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "## service.name")

	w = do(s, http.MethodGet, "/api/paragraphs/p1/report?format=xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "p1.xlsx")

	w = do(s, http.MethodDelete, "/api/paragraphs/p1/output", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(s, http.MethodGet, "/api/paragraphs/p1/output", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBubbleUpMissingContext(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})

	w := do(s, http.MethodPost, "/api/paragraphs/p1/bubbleup", bubbleUpBody(""))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PRECONDITION_FAILED", errorCode(t, w))
}

func TestBubbleUpMalformedBody(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})

	w := do(s, http.MethodPost, "/api/paragraphs/p1/bubbleup", `{"start":"yesterday"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))
}

func TestBubbleUpAsync(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})

	w := do(s, http.MethodPost, "/api/paragraphs/p1/bubbleup?async=true", bubbleUpBody("logs-*"))
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		w := do(s, http.MethodGet, "/api/paragraphs/p1/state", "")
		return strings.Contains(w.Body.String(), `"status":"completed"`)
	}, 2*time.Second, 10*time.Millisecond)
	s.runs.wait(context.Background())
}

func TestLogPatternsAgentNotFound(t *testing.T) {
	s := newTestServer(t, stubLogPattern{err: core.ErrAgentNotFound})
	body := fmt.Sprintf(`{"selectionStartTime":%q,"selectionEndTime":%q,"timeField":"@timestamp","logMessageField":"message","indexName":"logs-*"}`,
		selectionStart.Format(time.RFC3339), selectionStart.Add(time.Hour).Format(time.RFC3339))

	w := do(s, http.MethodPost, "/api/paragraphs/p2/logpatterns", body)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "AGENT_NOT_FOUND", errorCode(t, w))

	w = do(s, http.MethodGet, "/api/paragraphs/p2/state", "")
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
	assert.Contains(t, w.Body.String(), "analysis agent not found")
}

func TestLogPatterns(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})
	body := fmt.Sprintf(`{"selectionStartTime":%q,"selectionEndTime":%q,"timeField":"@timestamp","logMessageField":"message","indexName":"logs-*"}`,
		selectionStart.Format(time.RFC3339), selectionStart.Add(time.Hour).Format(time.RFC3339))

	w := do(s, http.MethodPost, "/api/paragraphs/p2/logpatterns", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"pattern":"ok"`)
}

func TestAgentTraceRoutes(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})
	defer s.services.AgentTraces.StopAll()

	w := do(s, http.MethodPost, "/api/agent/traces/m1", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(s, http.MethodPost, "/api/agent/traces/m1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		w := do(s, http.MethodGet, "/api/agent/traces/m1", "")
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"id":"t1"`)
	}, time.Second, 10*time.Millisecond)

	w = do(s, http.MethodDelete, "/api/agent/traces/m1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(s, http.MethodGet, "/api/agent/traces/m1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t, stubLogPattern{})
	do(s, http.MethodPost, "/api/paragraphs/p1/bubbleup", bubbleUpBody("logs-*"))

	w := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "obsnote_analysis_runs_total")

	w = do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}
