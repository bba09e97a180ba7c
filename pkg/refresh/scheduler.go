package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduling defaults. The expiration margin places re-validations just
// before and just after the expected subscription transition, catching both
// early-renewal and confirmed-lapse cases without a single poorly-timed call.
const (
	DefaultPollInterval = time.Second
	DefaultRetryDelay   = 30 * time.Second
	ExpirationMargin    = 10 * time.Second
	VerificationDelay   = 10 * time.Second
)

// ExecuteFunc performs one purchase-status lookup for a subscription.
// The scheduler reuses the client's ordinary lookup call; it has no wire
// contract of its own.
type ExecuteFunc func(ctx context.Context, subscriptionID string) error

// Scheduler maintains the set of timed re-validation tasks and executes
// them as their instants elapse. Per subscription, executions are mutually
// exclusive: a task whose subscription already has a refresh in flight is
// skipped outright, on the assumption the in-flight call reflects
// sufficiently current state.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*Task
	inFlight map[string]bool

	exec         ExecuteFunc
	logger       *slog.Logger
	now          func() time.Time
	pollInterval time.Duration
	retryDelay   time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for task diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval overrides how often due tasks are checked.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithRetryDelay overrides the delay before the single retry of a failed
// task.
func WithRetryDelay(delay time.Duration) Option {
	return func(s *Scheduler) {
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a scheduler that runs exec for each due task.
// Panics if exec is nil to fail fast during initialization.
func NewScheduler(exec ExecuteFunc, opts ...Option) *Scheduler {
	if exec == nil {
		panic("refresh: ExecuteFunc is required")
	}

	s := &Scheduler{
		tasks:        make(map[uuid.UUID]*Task),
		inFlight:     make(map[string]bool),
		exec:         exec,
		logger:       slog.Default(),
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		retryDelay:   DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Schedule registers a re-validation of subscriptionID at the given instant.
// Returns false when the task was dropped: past instants are discarded
// silently (no catch-up execution), and a duplicate (subscription, instant)
// pair is a no-op.
func (s *Scheduler) Schedule(subscriptionID string, at time.Time, reason Reason) bool {
	if subscriptionID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scheduleLocked(subscriptionID, at, reason)
}

// ScheduleAroundExpiration registers the pre- and post-expiration tasks for
// a purchase expiring at expiresAt. Each instant is registered only if it is
// still in the future; a purchase expired more than the margin ago produces
// no tasks at all.
func (s *Scheduler) ScheduleAroundExpiration(subscriptionID string, expiresAt time.Time) {
	if subscriptionID == "" || expiresAt.IsZero() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleLocked(subscriptionID, expiresAt.Add(-ExpirationMargin), ReasonPreExpiration)
	s.scheduleLocked(subscriptionID, expiresAt.Add(ExpirationMargin), ReasonPostExpiration)
}

// ScheduleVerification registers a single-shot re-validation shortly after
// an explicit plan change.
func (s *Scheduler) ScheduleVerification(subscriptionID string) {
	if subscriptionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleLocked(subscriptionID, s.now().Add(VerificationDelay), ReasonPostChange)
}

// scheduleLocked must be called with the lock held.
func (s *Scheduler) scheduleLocked(subscriptionID string, at time.Time, reason Reason) bool {
	if !at.After(s.now()) {
		s.logger.Debug("dropping refresh scheduled in the past",
			slog.String("subscription_id", subscriptionID),
			slog.String("reason", string(reason)),
			slog.Time("scheduled_at", at))
		return false
	}

	id := TaskID(subscriptionID, at)
	if _, exists := s.tasks[id]; exists {
		return false
	}

	s.tasks[id] = &Task{
		ID:             id,
		SubscriptionID: subscriptionID,
		Reason:         reason,
		ScheduledAt:    at,
		Status:         StatusPending,
	}

	s.logger.Debug("scheduled refresh",
		slog.String("subscription_id", subscriptionID),
		slog.String("reason", string(reason)),
		slog.Time("scheduled_at", at))

	return true
}

// Start runs the scheduler loop until ctx is cancelled. Due tasks are
// dispatched on every tick; task failures never propagate out of the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue transitions due pending tasks to Running and executes them,
// one goroutine per task. Tasks whose subscription already has a refresh in
// flight are absorbed without executing and never rescheduled.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	s.mu.Lock()

	now := s.now()
	due := make([]*Task, 0)
	for _, task := range s.tasks {
		if task.Status == StatusPending && !task.ScheduledAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})

	for _, task := range due {
		if s.inFlight[task.SubscriptionID] {
			task.Status = StatusCompleted
			s.logger.Debug("skipping refresh, subscription already in flight",
				slog.String("subscription_id", task.SubscriptionID),
				slog.String("reason", string(task.Reason)))
			continue
		}

		task.Status = StatusRunning
		s.inFlight[task.SubscriptionID] = true
		go s.run(ctx, task)
	}

	s.mu.Unlock()
}

// run executes one task and applies the retry rule. Failures are absorbed
// here: a first failure spawns exactly one retry task, a failed retry is
// dropped.
func (s *Scheduler) run(ctx context.Context, task *Task) {
	err := s.execute(ctx, task.SubscriptionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	task.Status = StatusCompleted
	delete(s.inFlight, task.SubscriptionID)

	if err == nil {
		s.logger.Debug("refresh completed",
			slog.String("subscription_id", task.SubscriptionID),
			slog.String("reason", string(task.Reason)))
		return
	}

	s.logger.Warn("refresh failed",
		slog.String("subscription_id", task.SubscriptionID),
		slog.String("reason", string(task.Reason)),
		slog.String("error", err.Error()))

	if task.Reason.IsRetry() {
		// One retry lineage per trigger; a retry that fails is dropped.
		return
	}

	s.scheduleLocked(task.SubscriptionID, s.now().Add(s.retryDelay), task.Reason.Retry())
}

// execute shields the scheduler loop from a panicking executor.
func (s *Scheduler) execute(ctx context.Context, subscriptionID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh executor panicked: %v", r)
		}
	}()
	return s.exec(ctx, subscriptionID)
}

// Tasks returns a snapshot of all tasks, pending and completed, ordered by
// scheduled instant.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// Reset bulk-clears all tasks and in-flight state. There is no per-task
// cancellation; this is the only way to stop pending work.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[uuid.UUID]*Task)
	s.inFlight = make(map[string]bool)
}
