package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"driftwatch/internal/config"
	"driftwatch/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.SQLitePath = ":memory:"
	cfg.Orchestrator.InitialBackoff = time.Millisecond
	cfg.Backends = []config.BackendConfig{
		{Name: "mock-alpha", Provider: config.ProviderMock},
		{Name: "mock-beta", Provider: config.ProviderMock},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWiresSQLiteDeployment(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.DriftBoard)
	assert.Equal(t, []string{"mock-alpha", "mock-beta"}, a.Backends.Names())

	sessions, err := a.Orchestrator.RunAll(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.Equal(t, model.SessionCompleted, s.Status)
		assert.Equal(t, a.Catalog.Len(), s.CompletedCount)
	}

	heatmap, err := a.Aggregator.Heatmap(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mock-alpha", "mock-beta"}, heatmap.Models)
	assert.Equal(t, a.Catalog.Categories(), heatmap.Categories)
}

func TestNewRejectsBadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: a\n  category: ethics\n"), 0644))

	cfg := testConfig(t)
	cfg.Catalog.Path = path
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewFailsOnUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "cassandra"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store driver")
}
