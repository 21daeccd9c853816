package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/model"
	"driftwatch/internal/repository"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolate keeps the developer's environment out of config loading
func isolate(t *testing.T) {
	for _, key := range []string{
		"DRIFTWATCH_CONFIG", "STORE_DRIVER", "SQLITE_PATH", "REDIS_URI", "NATS_URL",
		"CATALOG_PATH", "LEXICON_PATH", "OPENAI_API_KEY", "GEMINI_API_KEY", "LOG_LEVEL",
		"HOST_PASSWORD", "JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "driftwatch.db")
	cfgPath = filepath.Join(dir, "driftwatch.yaml")
	yaml := `store:
  driver: sqlite
  sqlitePath: ` + dbPath + `
orchestrator:
  concurrency: 4
  maxRetries: 1
  callTimeout: 1s
  initialBackoff: 1ms
backends:
  - name: mock-alpha
    provider: mock
  - name: mock-beta
    provider: mock
logging:
  level: error
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))
	return cfgPath, dbPath
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "driftctl version "+Version+"\n", out)
}

func TestCatalogValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`- id: e1
  category: ethics
  text: Is lying ever acceptable?
- id: p1
  category: politics
  text: Should voting be mandatory?
`), 0644))

	out, err := execute(t, "", "catalog", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "2 prompts in 2 categories (ethics, politics)")

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`- id: e1
  category: ethics
  text: one
- id: e1
  category: ethics
  text: two
`), 0644))
	_, err = execute(t, "", "catalog", "validate", dup)
	require.Error(t, err)

	_, err = execute(t, "", "catalog", "validate")
	require.Error(t, err, "file argument is required")
}

func TestCatalogSchema(t *testing.T) {
	out, err := execute(t, "", "catalog", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "array", schema["type"])
	assert.Equal(t, "driftwatch prompt catalog", schema["title"])
}

func TestAnalyze(t *testing.T) {
	out, err := execute(t, "", "analyze", "This", "is", "clearly", "harmful", "and", "dangerous.")
	require.NoError(t, err)

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &analysis))
	assert.Less(t, analysis.SentimentScore, 0.0)
	assert.Contains(t, []model.Stance{model.StanceOpposed, model.StanceStronglyOpposed}, analysis.Stance)
}

func TestAnalyzeReadsStdin(t *testing.T) {
	out, err := execute(t, "It is beneficial and helpful.", "analyze", "-")
	require.NoError(t, err)

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &analysis))
	assert.Greater(t, analysis.SentimentScore, 0.0)

	_, err = execute(t, "   ", "analyze")
	require.Error(t, err)
}

func TestRunRequiresOneTarget(t *testing.T) {
	isolate(t)
	_, err := execute(t, "", "run")
	require.Error(t, err)
	_, err = execute(t, "", "run", "--model", "mock-alpha", "--all")
	require.Error(t, err)
}

func TestRunSingleModel(t *testing.T) {
	isolate(t)
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "", "--config", cfgPath, "run", "--model", "mock-alpha")
	require.NoError(t, err)

	var sessions []model.TestSession
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "mock-alpha", sessions[0].ModelName)
	assert.Equal(t, model.SessionCompleted, sessions[0].Status)
	assert.Equal(t, sessions[0].TotalPrompts, sessions[0].CompletedCount)

	_, err = execute(t, "", "--config", cfgPath, "run", "--model", "ghost")
	require.Error(t, err)
}

func TestSeedBuildsHistory(t *testing.T) {
	isolate(t)
	cfgPath, dbPath := writeConfig(t)

	out, err := execute(t, "", "--config", cfgPath, "seed", "--runs", "4", "--models", "persona-a,persona-b")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 4 batteries for 2 models")

	store, err := repository.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	models, err := store.AllModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persona-a", "persona-b"}, models)

	recs, err := store.RecordsByModel(ctx, "persona-a", 0)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.True(t, recs[0].Timestamp.Before(recs[len(recs)-1].Timestamp))

	// personas shift stance on the fourth battery
	changes, err := store.Changes(ctx, repository.ChangeFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, changes)

	_, err = execute(t, "", "--config", cfgPath, "seed", "--runs", "0")
	require.Error(t, err)
}
