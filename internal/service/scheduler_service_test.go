package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

type fakeStarter struct {
	models  []string
	running map[string]bool
	fail    map[string]bool
	started []string
}

func (f *fakeStarter) Models() []string { return f.models }

func (f *fakeStarter) IsRunning(name string) bool { return f.running[name] }

func (f *fakeStarter) Start(_ context.Context, name string) (*model.TestSession, error) {
	if f.fail[name] {
		return nil, errors.New("boom")
	}
	f.started = append(f.started, name)
	return &model.TestSession{ModelName: name, Status: model.SessionPending}, nil
}

func TestSchedulerTriggerSkipsRunningModels(t *testing.T) {
	starter := &fakeStarter{
		models:  []string{"alpha", "beta", "gamma"},
		running: map[string]bool{"beta": true},
		fail:    map[string]bool{"gamma": true},
	}
	s, err := NewSchedulerService("@hourly", starter, zap.NewNop())
	require.NoError(t, err)

	sessions := s.Trigger(context.Background())
	require.Len(t, sessions, 1)
	assert.Equal(t, "alpha", sessions[0].ModelName)
	assert.Equal(t, []string{"alpha"}, starter.started)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewSchedulerService("every tuesday", &fakeStarter{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSchedulerDrivesOrchestrator(t *testing.T) {
	f := newFixture(t, 2, fastOptions())
	s, err := NewSchedulerService("*/5 * * * *", f.orch, zap.NewNop())
	require.NoError(t, err)

	sessions := s.Trigger(context.Background())
	require.Len(t, sessions, 1)
	f.orch.Wait()

	final, err := f.orch.Session(context.Background(), sessions[0].SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, final.Status)
}
