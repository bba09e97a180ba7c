// Package refresh schedules and executes background re-validations of
// subscription status around known state-transition instants.
//
// A purchase snapshot with a future expiration yields two tasks, one just
// before and one just after the expected expiry. An explicit plan change
// yields a single verification task shortly after the call. Each task runs
// exactly one purchase-status lookup through the client; a first failure is
// retried once after a fixed delay, and a failing retry is dropped.
//
// Task identity is derived from the (subscription, instant) pair, so
// re-observing the same purchase never duplicates work. Executions for the
// same subscription are mutually exclusive in time; tasks for different
// subscriptions may run concurrently. Failures never escape the scheduler:
// they are only observable through logs or through a later purchase lookup.
package refresh
