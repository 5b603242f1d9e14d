// Package retry runs flaky operations under a bounded attempt policy.
//
// A policy is an ordered list of TaskAttempt values. Each attempt is started
// after its delay and abandoned once its budget elapses, after which the next
// attempt begins. Attempt errors are absorbed and logged; the caller only sees
// the first successful result or a terminal error once the policy is spent.
// Cancelling the caller's context is the only way to abort a sequence
// mid-flight and is reported immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of retryable work. The context is cancelled when the
// attempt's budget elapses or the caller gives up.
type Task[T any] func(ctx context.Context) (T, error)

// Stats is a snapshot of an Executor's counters
type Stats struct {
	TasksSubmitted int64 `json:"tasks_submitted"`
	Retries        int64 `json:"retries"`
	Timeouts       int64 `json:"timeouts"`
	FailedTasks    int64 `json:"failed_tasks"`
}

// Executor owns the retry counters. Counters only grow; create a new Executor
// for an isolated set.
type Executor struct {
	tasksSubmitted atomic.Int64
	retries        atomic.Int64
	timeouts       atomic.Int64
	failedTasks    atomic.Int64
}

// NewExecutor creates an executor with zeroed counters
func NewExecutor() *Executor {
	return &Executor{}
}

// Stats returns the current counter values
func (e *Executor) Stats() Stats {
	return Stats{
		TasksSubmitted: e.tasksSubmitted.Load(),
		Retries:        e.retries.Load(),
		Timeouts:       e.timeouts.Load(),
		FailedTasks:    e.failedTasks.Load(),
	}
}

// Do runs a task that produces no value
func (e *Executor) Do(ctx context.Context, task func(ctx context.Context) error, attempts []TaskAttempt, terminator Terminator, logger *zap.SugaredLogger) error {
	_, err := Attempt(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	}, attempts, terminator, logger)
	return err
}

type outcome[T any] struct {
	value T
	err   error
}

// Attempt runs task under the attempts policy and returns the first
// successful, non-nil result.
//
// It returns ErrAttemptsExhausted (wrapping the last attempt error) when every
// attempt failed, and ErrAttemptsStopped when terminator asked to stop before
// an attempt began. If ctx is cancelled, ctx.Err() is returned at once and no
// further attempts are started. terminator and logger may be nil.
func Attempt[T any](ctx context.Context, e *Executor, task Task[T], attempts []TaskAttempt, terminator Terminator, logger *zap.SugaredLogger) (T, error) {
	var zero T

	if err := ValidatePolicy(attempts); err != nil {
		return zero, err
	}

	e.tasksSubmitted.Add(1)

	var lastErr error
	for i, attempt := range attempts {
		if terminator != nil && terminator.StopTaskAttempts() {
			if logger != nil {
				logger.Infow("Task attempts stopped by terminator",
					"attempt", i+1,
					"attempts", len(attempts))
			}
			return zero, ErrAttemptsStopped
		}

		if i > 0 {
			e.retries.Add(1)
		}

		value, timedOut, err := runAttempt(ctx, task, attempt)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if err == nil {
			if i > 0 && logger != nil {
				logger.Infof("Task succeeded after %d retries", i)
			}
			return value, nil
		}

		if timedOut {
			e.timeouts.Add(1)
		}
		lastErr = err

		if logger != nil {
			logger.Warnw("Task attempt failed",
				"attempt", i+1,
				"attempts", len(attempts),
				"error_type", ClassifyError(err),
				"error", err)
		}
	}

	e.failedTasks.Add(1)
	if logger != nil {
		logger.Errorw("All task attempts failed",
			"attempts", len(attempts),
			"error", lastErr)
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, len(attempts), lastErr)
}

// runAttempt waits out the attempt's delay, then runs task until it returns
// or the budget elapses. timedOut is set only when the budget elapsed.
func runAttempt[T any](ctx context.Context, task Task[T], attempt TaskAttempt) (value T, timedOut bool, err error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if budget := attempt.Budget(); budget > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, budget)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if attempt.Delay > 0 {
		timer := time.NewTimer(attempt.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return value, false, ctx.Err()
		}
	}

	results := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- outcome[T]{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		v, err := task(attemptCtx)
		results <- outcome[T]{value: v, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			// the task may notice its deadline before we do
			timedOut := ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
			return value, timedOut, res.err
		}
		if isNil(res.value) {
			return value, false, errEmptyResult
		}
		return res.value, false, nil
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return value, false, ctx.Err()
		}
		return value, true, fmt.Errorf("attempt timed out after %v: %w", attempt.Budget(), context.DeadlineExceeded)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
