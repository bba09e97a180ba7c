package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purchasekit/purchasekit/pkg/refresh"
)

func noopExec(ctx context.Context, subscriptionID string) error { return nil }

// startScheduler runs the scheduler loop for the duration of the test.
func startScheduler(t *testing.T, s *refresh.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Start(ctx) }()
}

func TestScheduler_Schedule(t *testing.T) {
	t.Parallel()

	t.Run("same subscription and instant schedules once", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)
		at := time.Now().Add(time.Hour)

		assert.True(t, s.Schedule("sub_abc", at, refresh.ReasonPreExpiration))
		assert.False(t, s.Schedule("sub_abc", at, refresh.ReasonPreExpiration))
		assert.Len(t, s.Tasks(), 1)
	})

	t.Run("past instants are dropped silently", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)

		assert.False(t, s.Schedule("sub_abc", time.Now().Add(-time.Second), refresh.ReasonPreExpiration))
		assert.Empty(t, s.Tasks())
	})

	t.Run("empty subscription id is dropped", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)

		assert.False(t, s.Schedule("", time.Now().Add(time.Hour), refresh.ReasonPreExpiration))
		assert.Empty(t, s.Tasks())
	})

	t.Run("different instants for the same subscription both schedule", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)
		at := time.Now().Add(time.Hour)

		assert.True(t, s.Schedule("sub_abc", at, refresh.ReasonPreExpiration))
		assert.True(t, s.Schedule("sub_abc", at.Add(20*time.Second), refresh.ReasonPostExpiration))
		assert.Len(t, s.Tasks(), 2)
	})
}

func TestScheduler_ScheduleAroundExpiration(t *testing.T) {
	t.Parallel()

	t.Run("future expiration yields both margin tasks", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)
		expiresAt := time.Now().Add(time.Hour)

		s.ScheduleAroundExpiration("sub_abc", expiresAt)

		tasks := s.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, refresh.ReasonPreExpiration, tasks[0].Reason)
		assert.True(t, tasks[0].ScheduledAt.Equal(expiresAt.Add(-refresh.ExpirationMargin)))
		assert.Equal(t, refresh.ReasonPostExpiration, tasks[1].Reason)
		assert.True(t, tasks[1].ScheduledAt.Equal(expiresAt.Add(refresh.ExpirationMargin)))
	})

	t.Run("expiration inside the margin yields only the post task", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)

		// Pre-expiration instant already passed, post is still future.
		s.ScheduleAroundExpiration("sub_abc", time.Now().Add(refresh.ExpirationMargin/2))

		tasks := s.Tasks()
		require.Len(t, tasks, 1)
		assert.Equal(t, refresh.ReasonPostExpiration, tasks[0].Reason)
	})

	t.Run("long-expired purchase yields no tasks", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)

		s.ScheduleAroundExpiration("sub_abc", time.Now().Add(-time.Minute))
		assert.Empty(t, s.Tasks())
	})

	t.Run("zero expiration yields no tasks", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)

		s.ScheduleAroundExpiration("sub_abc", time.Time{})
		assert.Empty(t, s.Tasks())
	})

	t.Run("re-observing the same purchase is idempotent", func(t *testing.T) {
		t.Parallel()
		s := refresh.NewScheduler(noopExec)
		expiresAt := time.Now().Add(time.Hour)

		s.ScheduleAroundExpiration("sub_abc", expiresAt)
		s.ScheduleAroundExpiration("sub_abc", expiresAt)

		assert.Len(t, s.Tasks(), 2)
	})
}

func TestScheduler_Execution(t *testing.T) {
	t.Parallel()

	t.Run("due task executes exactly once and completes", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		s := refresh.NewScheduler(func(ctx context.Context, subscriptionID string) error {
			calls.Add(1)
			assert.Equal(t, "sub_abc", subscriptionID)
			return nil
		}, refresh.WithPollInterval(5*time.Millisecond))

		require.True(t, s.Schedule("sub_abc", time.Now().Add(20*time.Millisecond), refresh.ReasonPreExpiration))
		startScheduler(t, s)

		require.Eventually(t, func() bool {
			tasks := s.Tasks()
			return len(tasks) == 1 && tasks[0].Status == refresh.StatusCompleted
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("failure spawns one retry and a failed retry is dropped", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		s := refresh.NewScheduler(func(ctx context.Context, subscriptionID string) error {
			calls.Add(1)
			return errors.New("validation unavailable")
		},
			refresh.WithPollInterval(5*time.Millisecond),
			refresh.WithRetryDelay(20*time.Millisecond))

		require.True(t, s.Schedule("sub_abc", time.Now().Add(10*time.Millisecond), refresh.ReasonPreExpiration))
		startScheduler(t, s)

		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

		// Give a failed retry every chance to (incorrectly) spawn another.
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(2), calls.Load())

		tasks := s.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, refresh.ReasonPreExpiration, tasks[0].Reason)
		assert.Equal(t, refresh.Reason("retry-pre-expiration"), tasks[1].Reason)
		for _, task := range tasks {
			assert.Equal(t, refresh.StatusCompleted, task.Status)
		}
	})

	t.Run("overlapping task for the same subscription is skipped", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		var calls atomic.Int32
		s := refresh.NewScheduler(func(ctx context.Context, subscriptionID string) error {
			calls.Add(1)
			<-release
			return nil
		}, refresh.WithPollInterval(5*time.Millisecond))

		now := time.Now()
		require.True(t, s.Schedule("sub_abc", now.Add(10*time.Millisecond), refresh.ReasonPreExpiration))
		require.True(t, s.Schedule("sub_abc", now.Add(30*time.Millisecond), refresh.ReasonPostExpiration))
		startScheduler(t, s)

		// The first task is running and holding the subscription; the second
		// comes due and must be absorbed without executing.
		require.Eventually(t, func() bool {
			for _, task := range s.Tasks() {
				if task.Reason == refresh.ReasonPostExpiration && task.Status == refresh.StatusCompleted {
					return true
				}
			}
			return false
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, int32(1), calls.Load())
		close(release)

		require.Eventually(t, func() bool {
			for _, task := range s.Tasks() {
				if task.Status != refresh.StatusCompleted {
					return false
				}
			}
			return true
		}, time.Second, 5*time.Millisecond)

		// The skipped task is gone for good, not rescheduled.
		assert.Equal(t, int32(1), calls.Load())
		assert.Len(t, s.Tasks(), 2)
	})

	t.Run("tasks for different subscriptions run concurrently", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		started := make(map[string]bool)
		release := make(chan struct{})

		s := refresh.NewScheduler(func(ctx context.Context, subscriptionID string) error {
			mu.Lock()
			started[subscriptionID] = true
			mu.Unlock()
			<-release
			return nil
		}, refresh.WithPollInterval(5*time.Millisecond))

		now := time.Now()
		require.True(t, s.Schedule("sub_a", now.Add(10*time.Millisecond), refresh.ReasonPreExpiration))
		require.True(t, s.Schedule("sub_b", now.Add(10*time.Millisecond), refresh.ReasonPreExpiration))
		startScheduler(t, s)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return started["sub_a"] && started["sub_b"]
		}, time.Second, 5*time.Millisecond)

		close(release)
	})

	t.Run("panicking executor is absorbed and retried once", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		s := refresh.NewScheduler(func(ctx context.Context, subscriptionID string) error {
			calls.Add(1)
			panic("boom")
		},
			refresh.WithPollInterval(5*time.Millisecond),
			refresh.WithRetryDelay(20*time.Millisecond))

		require.True(t, s.Schedule("sub_abc", time.Now().Add(10*time.Millisecond), refresh.ReasonPostChange))
		startScheduler(t, s)

		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestScheduler_Reset(t *testing.T) {
	t.Parallel()

	s := refresh.NewScheduler(noopExec)
	s.ScheduleAroundExpiration("sub_abc", time.Now().Add(time.Hour))
	require.NotEmpty(t, s.Tasks())

	s.Reset()
	assert.Empty(t, s.Tasks())
}

func TestTaskID(t *testing.T) {
	t.Parallel()

	at := time.Now().Add(time.Hour)

	assert.Equal(t, refresh.TaskID("sub_abc", at), refresh.TaskID("sub_abc", at))
	assert.NotEqual(t, refresh.TaskID("sub_abc", at), refresh.TaskID("sub_def", at))
	assert.NotEqual(t, refresh.TaskID("sub_abc", at), refresh.TaskID("sub_abc", at.Add(time.Nanosecond)))
}
