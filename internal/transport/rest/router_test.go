package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driftwatch/internal/backend"
	"driftwatch/internal/catalog"
	"driftwatch/internal/config"
	"driftwatch/internal/metrics"
	"driftwatch/internal/model"
	"driftwatch/internal/repository"
	"driftwatch/internal/service"
	"driftwatch/internal/transport/ws"
)

type testAPI struct {
	srv   *httptest.Server
	orch  *service.OrchestratorService
	mock  *backend.Mock
	token string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.New([]catalog.Entry{
		{ID: "eth-1", Category: "ethics", Text: "Should machines make moral decisions?"},
		{ID: "pol-1", Category: "politics", Text: "Should voting be compulsory?"},
	})
	require.NoError(t, err)

	mock := backend.NewMock("mock-alpha", func(string, int) string { return "This is clearly beneficial and necessary." })
	reg := backend.NewRegistry()
	reg.Register(mock)

	log := zap.NewNop()
	orch := service.NewOrchestratorService(cat, reg, service.NewAnalyzerService(nil, 5),
		service.NewDriftService(service.DefaultDriftPolicy()), store, store,
		service.OrchestratorOptions{Concurrency: 2, MaxRetries: 1, CallTimeout: time.Second, InitialBackoff: time.Millisecond}, log)

	auth := service.NewAuthService(config.AuthConfig{Username: "admin", Password: "secret", JWTSecret: "k", TokenTTL: time.Hour})
	hub := ws.NewHub(log)
	t.Cleanup(hub.Close)

	router := NewRouter(&Container{
		AuthService:  auth,
		Orchestrator: orch,
		Aggregator:   service.NewAggregatorService(store, service.DefaultAggregatorOptions(), log),
		Store:        store,
		Sessions:     store,
		Catalog:      cat,
		WSHub:        hub,
		Metrics:      metrics.New(),
		Log:          log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	api := &testAPI{srv: srv, orch: orch, mock: mock}
	resp := api.do(t, "POST", "/v1/auth/login", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	api.token = login.Token
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	require.NoError(t, err)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (a *testAPI) getJSON(t *testing.T, path string, wantStatus int, out interface{}) {
	t.Helper()
	resp := a.do(t, "GET", path, "")
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "GET %s: %s", path, body)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "GET %s: %s", path, body)
	}
}

func TestPublicEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	resp := api.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(t, "GET", "/v1/models", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(t, "POST", "/v1/auth/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = api.do(t, "GET", "/swagger/doc.json", "")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "driftwatch API")
	assert.Contains(t, string(body), "/analytics/correlation")

	resp = api.do(t, "GET", "/metrics", "")
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `driftwatch_http_requests_total{code="200",route="/health"} 1`)
}

func TestModelEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	var models []map[string]interface{}
	api.getJSON(t, "/v1/models", http.StatusOK, &models)
	require.Len(t, models, 1)
	assert.Equal(t, "mock-alpha", models[0]["name"])
	assert.Equal(t, false, models[0]["hasRecords"])

	api.getJSON(t, "/v1/models/mock-alpha/summary", http.StatusNotFound, nil)
	api.getJSON(t, "/v1/models/mock-alpha/prompts/eth-1/latest", http.StatusNotFound, nil)

	_, err := api.orch.Run(ctx, "mock-alpha")
	require.NoError(t, err)
	api.mock.SetResponse("Should machines make moral decisions?", "This is clearly harmful and dangerous.")
	session, err := api.orch.Run(ctx, "mock-alpha")
	require.NoError(t, err)

	var latest model.ScoreRecord
	api.getJSON(t, "/v1/models/mock-alpha/prompts/eth-1/latest", http.StatusOK, &latest)
	assert.Equal(t, model.StanceStronglyOpposed, latest.Stance)

	var records []model.ScoreRecord
	api.getJSON(t, "/v1/models/mock-alpha/prompts/eth-1/records", http.StatusOK, &records)
	require.Len(t, records, 2)
	assert.Equal(t, model.StanceStronglySupportive, records[0].Stance)

	api.getJSON(t, "/v1/models/mock-alpha/prompts/eth-1/records?from=yesterday", http.StatusBadRequest, nil)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	api.getJSON(t, "/v1/models/mock-alpha/prompts/eth-1/records?from="+future, http.StatusOK, &records)
	assert.Empty(t, records)

	var summary model.ModelSummary
	api.getJSON(t, "/v1/models/mock-alpha/summary", http.StatusOK, &summary)
	assert.Equal(t, 4, summary.RecordCount)
	assert.Equal(t, 1, summary.ChangeCounts[model.AlertLow])

	var anomalies []model.Anomaly
	api.getJSON(t, "/v1/models/mock-alpha/anomalies", http.StatusOK, &anomalies)
	assert.Empty(t, anomalies)

	var changes []model.ChangeEvent
	api.getJSON(t, "/v1/changes?model=mock-alpha", http.StatusOK, &changes)
	require.Len(t, changes, 1)
	assert.Equal(t, "eth-1", changes[0].PromptID)
	api.getJSON(t, "/v1/changes?alertLevel=high", http.StatusOK, &changes)
	assert.Empty(t, changes)
	api.getJSON(t, "/v1/changes?alertLevel=severe", http.StatusBadRequest, nil)
	api.getJSON(t, "/v1/changes?limit=0", http.StatusBadRequest, nil)
	api.getJSON(t, "/v1/changes/top", http.StatusServiceUnavailable, nil)

	var got model.TestSession
	api.getJSON(t, "/v1/sessions/"+session.SessionID, http.StatusOK, &got)
	assert.Equal(t, model.SessionCompleted, got.Status)
	api.getJSON(t, "/v1/sessions/nope", http.StatusNotFound, nil)

	var sessions []model.TestSession
	api.getJSON(t, "/v1/sessions?model=mock-alpha", http.StatusOK, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, session.SessionID, sessions[0].SessionID)
}

func TestAnalyticsEndpoints(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.orch.Run(context.Background(), "mock-alpha")
	require.NoError(t, err)

	var heatmap model.Heatmap
	api.getJSON(t, "/v1/analytics/heatmap", http.StatusOK, &heatmap)
	assert.Equal(t, []string{"mock-alpha"}, heatmap.Models)
	assert.Equal(t, []string{"ethics", "politics"}, heatmap.Categories)

	api.getJSON(t, "/v1/analytics/correlation?a=ethics", http.StatusBadRequest, nil)

	var corr map[string]interface{}
	api.getJSON(t, "/v1/analytics/correlation?a=ethics&b=politics", http.StatusOK, &corr)
	v, present := corr["correlation"]
	assert.True(t, present)
	assert.Nil(t, v, "one model is not enough for a correlation")

	var cat struct {
		Categories []string              `json:"categories"`
		Prompts    []model.DilemmaPrompt `json:"prompts"`
	}
	api.getJSON(t, "/v1/catalog", http.StatusOK, &cat)
	assert.Equal(t, []string{"ethics", "politics"}, cat.Categories)
	assert.Len(t, cat.Prompts, 2)
}

func TestAuthMe(t *testing.T) {
	api := newTestAPI(t)

	var me map[string]string
	api.getJSON(t, "/v1/auth/me", http.StatusOK, &me)
	assert.True(t, strings.HasPrefix(me["operatorId"], "op_"), me["operatorId"])

	api.token = ""
	api.getJSON(t, "/v1/auth/me", http.StatusUnauthorized, nil)
}
