package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

// BatteryStarter is the slice of the orchestrator the scheduler drives
type BatteryStarter interface {
	Models() []string
	IsRunning(modelName string) bool
	Start(ctx context.Context, modelName string) (*model.TestSession, error)
}

// SchedulerService starts a battery for every model on a cron schedule
type SchedulerService struct {
	cron    *cron.Cron
	starter BatteryStarter
	log     *zap.Logger
}

// NewSchedulerService parses a standard five-field cron expression (or a
// descriptor such as "@hourly")
func NewSchedulerService(spec string, starter BatteryStarter, log *zap.Logger) (*SchedulerService, error) {
	s := &SchedulerService{starter: starter, log: log}
	logger := cronLogger{log.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.Trigger(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *SchedulerService) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule; the returned context is done once a running
// trigger returns
func (s *SchedulerService) Stop() context.Context {
	return s.cron.Stop()
}

// Trigger starts a battery for every model that is not already running and
// returns the sessions it launched
func (s *SchedulerService) Trigger(ctx context.Context) []*model.TestSession {
	var started []*model.TestSession
	for _, name := range s.starter.Models() {
		if s.starter.IsRunning(name) {
			s.log.Info("scheduled run skipped, previous session still running", zap.String("model", name))
			continue
		}
		session, err := s.starter.Start(ctx, name)
		if err != nil {
			s.log.Warn("scheduled run failed to start", zap.String("model", name), zap.Error(err))
			continue
		}
		started = append(started, session)
	}
	return started
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
