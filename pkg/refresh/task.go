package refresh

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a scheduled refresh task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Reason records why a refresh task was scheduled.
type Reason string

const (
	// ReasonPreExpiration re-validates shortly before an expected
	// subscription expiry to catch an early renewal.
	ReasonPreExpiration Reason = "pre-expiration"

	// ReasonPostExpiration re-validates shortly after the expected expiry
	// to confirm a lapse or a renewal.
	ReasonPostExpiration Reason = "post-expiration"

	// ReasonPostChange re-validates shortly after an explicit plan change
	// to catch delayed server-side settlement.
	ReasonPostChange Reason = "post-change-verification"
)

const retryPrefix = "retry-"

// Retry derives the reason for the single retry of a failed task.
func (r Reason) Retry() Reason {
	return Reason(retryPrefix) + r
}

// IsRetry reports whether this reason already marks a retry. A failed retry
// is never retried again, which caps the load per original trigger at one
// extra attempt.
func (r Reason) IsRetry() bool {
	return strings.HasPrefix(string(r), retryPrefix)
}

// Task is one pending or finished re-validation of a subscription.
// Completed tasks are retained for the scheduler's lifetime as a diagnostic
// record.
type Task struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	Reason         Reason    `json:"reason"`
	ScheduledAt    time.Time `json:"scheduledAt"`
	Status         Status    `json:"status"`
}

// TaskID derives a deterministic task identity from the subscription and the
// scheduled instant, so scheduling the same pair twice is idempotent.
func TaskID(subscriptionID string, at time.Time) uuid.UUID {
	data := subscriptionID + "|" + strconv.FormatInt(at.UnixNano(), 10)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(data))
}
