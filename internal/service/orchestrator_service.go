package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"driftwatch/internal/backend"
	"driftwatch/internal/cache"
	"driftwatch/internal/catalog"
	"driftwatch/internal/metrics"
	"driftwatch/internal/model"
	"driftwatch/internal/repository"
)

var (
	ErrUnknownModel    = errors.New("unknown model")
	ErrSessionRunning  = errors.New("a session is already running for this model")
	ErrSessionNotFound = errors.New("session not found")
)

// OrchestratorOptions bounds concurrency, retries and per-call time
type OrchestratorOptions struct {
	Concurrency    int
	MaxRetries     int
	CallTimeout    time.Duration
	InitialBackoff time.Duration
}

// DefaultOrchestratorOptions returns 4 workers, 2 retries and 30s calls
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		Concurrency:    4,
		MaxRetries:     2,
		CallTimeout:    30 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// OrchestratorService runs the prompt catalog against model backends
type OrchestratorService struct {
	catalog  *catalog.Catalog
	backends *backend.Registry
	analyzer Analyzer
	detector DriftDetector
	store    repository.ScoreStore
	sessions repository.SessionStore
	locks    *KeyedMutex
	opts     OrchestratorOptions
	log      *zap.Logger
	now      func() time.Time

	notifier Notifier
	progress cache.SessionCache
	metrics  *metrics.Metrics

	mu      sync.Mutex
	active  map[string]*sessionRun // by session id
	byModel map[string]string      // model -> active session id
	wg      sync.WaitGroup
}

type sessionRun struct {
	mu      sync.Mutex
	session *model.TestSession
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewOrchestratorService creates a new orchestrator
func NewOrchestratorService(
	cat *catalog.Catalog,
	backends *backend.Registry,
	analyzer Analyzer,
	detector DriftDetector,
	store repository.ScoreStore,
	sessions repository.SessionStore,
	opts OrchestratorOptions,
	log *zap.Logger,
) *OrchestratorService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &OrchestratorService{
		catalog:  cat,
		backends: backends,
		analyzer: analyzer,
		detector: detector,
		store:    store,
		sessions: sessions,
		locks:    NewKeyedMutex(),
		opts:     opts,
		log:      log,
		now:      time.Now,
		active:   make(map[string]*sessionRun),
		byModel:  make(map[string]string),
	}
}

// SetNotifier injects the live push fan-out (avoids circular dependency)
func (s *OrchestratorService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetProgressCache injects the Redis session progress cache
func (s *OrchestratorService) SetProgressCache(c cache.SessionCache) {
	s.progress = c
}

func (s *OrchestratorService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock replaces the record and session timestamp source. Must not be
// called while a session is running.
func (s *OrchestratorService) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes a full battery for one model and returns the final session
func (s *OrchestratorService) Run(ctx context.Context, modelName string) (*model.TestSession, error) {
	runCtx, cancel := context.WithCancel(ctx)
	r, b, err := s.begin(runCtx, cancel, modelName)
	if err != nil {
		cancel()
		return nil, err
	}
	return s.execute(r, b), nil
}

// Start launches a battery in the background and returns the pending session
func (s *OrchestratorService) Start(ctx context.Context, modelName string) (*model.TestSession, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, b, err := s.begin(runCtx, cancel, modelName)
	if err != nil {
		cancel()
		return nil, err
	}
	snapshot := r.snapshot()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(r, b)
	}()
	return snapshot, nil
}

// RunAll runs a battery for every registered model concurrently. Models
// that already have a running session are skipped.
func (s *OrchestratorService) RunAll(ctx context.Context) ([]*model.TestSession, error) {
	names := s.backends.Names()
	results := make([]*model.TestSession, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			session, err := s.Run(ctx, name)
			results[i] = session
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	var out []*model.TestSession
	for _, session := range results {
		if session != nil {
			out = append(out, session)
		}
	}
	return out, errors.Join(errs...)
}

// Cancel stops dispatching new prompts for a running session
func (s *OrchestratorService) Cancel(sessionID string) error {
	s.mu.Lock()
	r, ok := s.active[sessionID]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.log.Info("session cancel requested", zap.String("session", sessionID))
	r.cancel()
	return nil
}

// Session returns the freshest known snapshot of a session, nil if unknown
func (s *OrchestratorService) Session(ctx context.Context, sessionID string) (*model.TestSession, error) {
	s.mu.Lock()
	r, ok := s.active[sessionID]
	s.mu.Unlock()
	if ok {
		return r.snapshot(), nil
	}

	if s.progress != nil {
		session, err := s.progress.Get(ctx, sessionID)
		if err != nil {
			s.log.Warn("session cache get failed", zap.String("session", sessionID), zap.Error(err))
		} else if session != nil {
			return session, nil
		}
	}
	return s.sessions.Get(ctx, sessionID)
}

// IsRunning reports whether a model has an active session
func (s *OrchestratorService) IsRunning(modelName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byModel[modelName]
	return ok
}

// Models returns the registered model names
func (s *OrchestratorService) Models() []string {
	return s.backends.Names()
}

// Wait blocks until every session launched by Start has finished
func (s *OrchestratorService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all active sessions and waits for them to finalize
func (s *OrchestratorService) Shutdown() {
	s.mu.Lock()
	for _, r := range s.active {
		r.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *OrchestratorService) begin(ctx context.Context, cancel context.CancelFunc, modelName string) (*sessionRun, backend.Backend, error) {
	b, ok := s.backends.Get(modelName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	session := &model.TestSession{
		SessionID:    uuid.New().String(),
		ModelName:    modelName,
		Status:       model.SessionPending,
		StartedAt:    s.now().UTC(),
		TotalPrompts: s.catalog.Len(),
		Errors:       []model.SessionError{},
	}
	r := &sessionRun{session: session, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if _, busy := s.byModel[modelName]; busy {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionRunning, modelName)
	}
	s.active[session.SessionID] = r
	s.byModel[modelName] = session.SessionID
	s.mu.Unlock()

	s.persistSession(session.Clone())
	return r, b, nil
}

func (s *OrchestratorService) execute(r *sessionRun, b backend.Backend) *model.TestSession {
	ctx := r.ctx
	defer r.cancel()

	r.mu.Lock()
	r.session.Status = model.SessionRunning
	modelName := r.session.ModelName
	sessionID := r.session.SessionID
	r.mu.Unlock()
	s.publishProgress(r.snapshot())

	log := s.log.With(zap.String("model", modelName), zap.String("session", sessionID))
	log.Info("session started", zap.Int("prompts", s.catalog.Len()))

	prompts := s.catalog.Prompts()
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)

	dispatched := 0
	for _, p := range prompts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// a slot may free up after cancellation
			if ctx.Err() != nil {
				s.recordFailure(r, p.ID, model.ErrorCancelled, "session cancelled before dispatch", 0)
				return nil
			}
			s.runPrompt(ctx, r, b, p, log)
			return nil
		})
		dispatched++
	}
	g.Wait()

	for _, p := range prompts[dispatched:] {
		s.recordFailure(r, p.ID, model.ErrorCancelled, "session cancelled before dispatch", 0)
	}

	r.mu.Lock()
	r.session.Cancelled = ctx.Err() != nil
	r.session.Status = r.session.FinalStatus()
	finished := s.now().UTC()
	r.session.FinishedAt = &finished
	final := r.session.Clone()
	r.mu.Unlock()

	s.mu.Lock()
	delete(s.active, sessionID)
	delete(s.byModel, modelName)
	s.mu.Unlock()

	s.persistSession(final)
	s.metrics.SessionFinished(modelName, string(final.Status))
	if s.notifier != nil {
		s.notifier.SessionFinished(final)
	}

	log.Info("session finished",
		zap.String("status", string(final.Status)),
		zap.Int("completed", final.CompletedCount),
		zap.Int("failed", final.FailedCount),
		zap.Bool("cancelled", final.Cancelled),
	)
	return final
}

func (s *OrchestratorService) runPrompt(ctx context.Context, r *sessionRun, b backend.Backend, p model.DilemmaPrompt, log *zap.Logger) {
	modelName := b.Name()
	attempts := 0
	var text string

	call := func() error {
		attempts++
		// in-flight calls are not interrupted by cancellation, only by the timeout
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		out, err := b.Respond(callCtx, p.Text)
		s.metrics.ObserveBackend(modelName, time.Since(start), err)
		if err != nil {
			err = backend.Classify(modelName, err)
			log.Debug("backend call failed", zap.String("prompt", p.ID), zap.Int("attempt", attempts), zap.Error(err))
			return err
		}
		text = out
		return nil
	}

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.opts.InitialBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	retries := max(0, s.opts.MaxRetries)
	if err := backoff.Retry(call, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)); err != nil {
		s.recordFailure(r, p.ID, failureKind(err), err.Error(), attempts)
		return
	}

	analysis, err := s.analyzer.Analyze(text)
	if err != nil {
		s.recordFailure(r, p.ID, model.ErrorEmptyResponse, err.Error(), attempts)
		return
	}

	rec := &model.ScoreRecord{
		ID:        uuid.New().String(),
		ModelName: modelName,
		PromptID:  p.ID,
		Category:  p.Category,
		SessionID: r.id(),
		RawText:   text,
	}
	rec.ApplyAnalysis(analysis)

	// the computed record is written even if the session is cancelled meanwhile
	ev, kind, err := s.persist(context.WithoutCancel(ctx), rec)
	if err != nil {
		log.Warn("persist failed", zap.String("prompt", p.ID), zap.Error(err))
		s.recordFailure(r, p.ID, kind, err.Error(), attempts)
		return
	}

	if ev != nil {
		log.Info("drift detected",
			zap.String("prompt", p.ID),
			zap.String("from", string(ev.FromStance)),
			zap.String("to", string(ev.ToStance)),
			zap.Float64("adjusted", ev.AdjustedMagnitude),
			zap.String("level", string(ev.AlertLevel)),
		)
		s.metrics.ChangeDetected(modelName, string(ev.AlertLevel))
		if s.notifier != nil {
			s.notifier.DriftDetected(ev)
		}
	}
	s.recordSuccess(r)
}

// persist runs read-prior, append, detect, append-change as one critical
// section per model and prompt
func (s *OrchestratorService) persist(ctx context.Context, rec *model.ScoreRecord) (*model.ChangeEvent, model.ErrorKind, error) {
	unlock := s.locks.Lock(rec.ModelName + "\x00" + rec.PromptID)
	defer unlock()

	prior, err := s.store.Latest(ctx, rec.ModelName, rec.PromptID)
	if err != nil {
		return nil, model.ErrorStoreRead, err
	}

	rec.Timestamp = s.now().UTC()
	if err := s.store.Append(ctx, rec); err != nil {
		return nil, model.ErrorStoreWrite, err
	}

	ev := s.detector.Detect(rec, prior)
	if ev == nil {
		return nil, "", nil
	}
	// the record is already stored, so a lost event would never be detected again
	appendChange := func() error { return s.store.AppendChange(ctx, ev) }
	retry := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.InitialBackoff), 1)
	if err := backoff.Retry(appendChange, backoff.WithContext(retry, ctx)); err != nil {
		return nil, model.ErrorStoreWrite, fmt.Errorf("record %s stored but change event lost: %w", rec.ID, err)
	}
	return ev, "", nil
}

func (s *OrchestratorService) recordSuccess(r *sessionRun) {
	r.mu.Lock()
	r.session.CompletedCount++
	snapshot := r.session.Clone()
	r.mu.Unlock()

	s.metrics.PromptCompleted(snapshot.ModelName)
	s.publishProgress(snapshot)
}

func (s *OrchestratorService) recordFailure(r *sessionRun, promptID string, kind model.ErrorKind, msg string, attempts int) {
	r.mu.Lock()
	r.session.FailedCount++
	r.session.Errors = append(r.session.Errors, model.SessionError{
		PromptID:  promptID,
		ErrorKind: kind,
		Message:   msg,
		Attempts:  attempts,
	})
	snapshot := r.session.Clone()
	r.mu.Unlock()

	s.metrics.PromptFailed(snapshot.ModelName, string(kind))
	s.publishProgress(snapshot)
}

func (s *OrchestratorService) publishProgress(snapshot *model.TestSession) {
	if s.progress != nil {
		if err := s.progress.Set(context.Background(), snapshot); err != nil {
			s.log.Warn("session cache set failed", zap.String("session", snapshot.SessionID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.SessionProgress(snapshot)
	}
}

func (s *OrchestratorService) persistSession(session *model.TestSession) {
	if err := s.sessions.Save(context.Background(), session); err != nil {
		s.log.Warn("session save failed", zap.String("session", session.SessionID), zap.Error(err))
	}
	if s.progress != nil {
		if err := s.progress.Set(context.Background(), session); err != nil {
			s.log.Warn("session cache set failed", zap.String("session", session.SessionID), zap.Error(err))
		}
	}
}

func (r *sessionRun) snapshot() *model.TestSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

func (r *sessionRun) id() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.SessionID
}

// failureKind maps a backend or retry error onto a session error kind
func failureKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return model.ErrorCancelled
	case errors.Is(err, backend.ErrTimeout):
		return model.ErrorBackendTimeout
	case errors.Is(err, backend.ErrRateLimited):
		return model.ErrorBackendRateLimited
	case errors.Is(err, backend.ErrInvalidResponse):
		return model.ErrorBackendInvalidResponse
	default:
		return model.ErrorBackendUnavailable
	}
}
