// Package probe implements the MonitoredService probes for the multi-user
// dependencies: case database, keyword search index server, messaging broker
// and coordination service.
//
// Every probe opens a throwaway connection per check, runs the smallest
// request that proves the service is usable and closes the connection again.
// Transient failures are smoothed over by the retry executor; whatever is
// left is reported as a DOWN status carrying the error text.
package probe

import (
	"context"
	"time"

	"casehub/core"
	"casehub/retry"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single probe attempt
const DefaultTimeout = 5 * time.Second

// Options are shared by all probes
type Options struct {
	// Executor counts probe attempts. Required.
	Executor *retry.Executor
	// Attempts is the retry policy of one check. Defaults to a single attempt
	// bounded by DefaultTimeout.
	Attempts []retry.TaskAttempt
	Logger   *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Executor == nil {
		o.Executor = retry.NewExecutor()
	}
	if len(o.Attempts) == 0 {
		o.Attempts = []retry.TaskAttempt{{Timeout: DefaultTimeout}}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// check runs fn under the retry policy and turns the outcome into a report
func check(ctx context.Context, id core.ServiceID, opts Options, fn func(ctx context.Context) error) core.ServiceStatusReport {
	err := opts.Executor.Do(ctx, fn, opts.Attempts, nil, opts.Logger.With("service", id))
	if err != nil {
		return core.NewDownReport(id, unwrapAttempts(err))
	}
	return core.NewUpReport(id)
}

// unwrapAttempts strips the retry wrapper so DOWN messages show the cause
func unwrapAttempts(err error) error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) == 2 && errs[0] == retry.ErrAttemptsExhausted {
			return errs[1]
		}
	}
	return err
}
