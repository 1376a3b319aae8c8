package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/metrics"
)

// Handler runs one job. A returned error is classified for retry.
type Handler func(ctx context.Context, job *Job) error

// Worker drains a Store one job at a time, retrying classified-transient
// failures with exponential backoff until the provider policy is exhausted.
type Worker struct {
	store    Store
	logger   *zap.Logger
	policies map[Provider]Policy
	poll     time.Duration
	now      func() time.Time
	rnd      func() float64

	mu       sync.RWMutex
	handlers map[JobType]Handler
}

type Option func(*Worker)

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithJitter replaces the jitter source; f must return values in [0, 1).
func WithJitter(f func() float64) Option {
	return func(w *Worker) { w.rnd = f }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

func WithPolicy(p Provider, policy Policy) Option {
	return func(w *Worker) { w.policies[p] = policy }
}

func NewWorker(store Store, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		logger:   logger,
		policies: DefaultPolicies(),
		poll:     time.Second,
		now:      time.Now,
		rnd:      rand.Float64,
		handlers: make(map[JobType]Handler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle registers the handler for a job type, replacing any previous one.
func (w *Worker) Handle(t JobType, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[t] = h
}

func (w *Worker) handler(t JobType) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[t]
	return h, ok
}

func (w *Worker) policy(p Provider) Policy {
	if policy, ok := w.policies[p]; ok {
		return policy
	}
	return DefaultPolicy
}

func (w *Worker) retryLimit(job *Job) int {
	if job.MaxRetries != nil {
		return *job.MaxRetries
	}
	return w.policy(job.Type.Provider()).MaxRetries()
}

// Enqueue stores job, filling creation time, due time and retry bound.
func (w *Worker) Enqueue(ctx context.Context, job Job) error {
	if !job.Type.Valid() {
		return fmt.Errorf("enqueue: unknown job type %q", job.Type)
	}
	now := w.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	if job.MaxRetries == nil {
		limit := w.policy(job.Type.Provider()).MaxRetries()
		job.MaxRetries = &limit
	}
	if err := w.store.Push(ctx, &job); err != nil {
		return err
	}
	w.logger.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Uint("user_id", job.UserID),
		zap.Float64("priority", job.Priority),
	)
	return nil
}

// ProcessNext runs the next due job. It reports false when nothing was due.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.store.PopDue(ctx, w.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Uint("user_id", job.UserID),
		zap.Int("attempt", job.Retries+1),
	)

	h, ok := w.handler(job.Type)
	if !ok {
		log.Warn("no handler for job type, dropping")
		metrics.RecordJob(string(job.Type), "unhandled", 0)
		w.bury(ctx, job, "no handler", log)
		return true, nil
	}

	start := time.Now()
	err = w.run(ctx, h, job)
	took := time.Since(start)
	if err == nil {
		metrics.RecordJob(string(job.Type), "success", took)
		log.Debug("job done", zap.Duration("took", took))
		return true, nil
	}

	provider := job.Type.Provider()
	retryable, reason := Classify(provider, err)
	metrics.RecordJobFailure(string(provider), reason)
	job.LastError = err.Error()

	maxRetries := w.retryLimit(job)
	if retryable && job.Retries < maxRetries {
		delay := w.policy(provider).Backoff(job.Retries, w.rnd)
		job.Retries++
		job.ScheduledFor = w.now().Add(delay).UTC()
		if perr := w.store.Push(ctx, job); perr != nil {
			log.Error("job retry not re-enqueued", zap.Error(err), zap.NamedError("push_error", perr))
			metrics.RecordJob(string(job.Type), "dropped", took)
			return true, perr
		}
		metrics.RecordJob(string(job.Type), "retry", took)
		log.Warn("job failed, retry scheduled",
			zap.String("reason", reason),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		return true, nil
	}

	metrics.RecordJob(string(job.Type), "dropped", took)
	log.Error("job dropped",
		zap.String("reason", reason),
		zap.Bool("retryable", retryable),
		zap.Int("max_retries", maxRetries),
		zap.Error(err),
	)
	w.bury(ctx, job, reason, log)
	return true, nil
}

func (w *Worker) run(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return h(ctx, job)
}

func (w *Worker) bury(ctx context.Context, job *Job, reason string, log *zap.Logger) {
	dl, ok := w.store.(DeadLetterStore)
	if !ok {
		return
	}
	if err := dl.Bury(ctx, job, reason); err != nil {
		log.Error("dead letter not stored", zap.Error(err))
	}
}

// Drain processes due jobs until none is left.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := w.ProcessNext(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Run drains the queue every poll interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("queue worker started", zap.Duration("poll_interval", w.poll))
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("queue drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}
