package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casehub/core"
	"casehub/retry"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultCoordinationTimeout is how long the coordination probe waits for a
// member to answer
const DefaultCoordinationTimeout = 15 * time.Second

// coordinationGrace keeps the attempt deadline behind the member wait so the
// wait ends first and reports its own error
const coordinationGrace = time.Second

// CoordinationTarget describes the coordination service cluster
type CoordinationTarget struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Coordination probes the etcd cluster used for case locks
type Coordination struct {
	target CoordinationTarget
	opts   Options
}

// NewCoordination creates the probe
func NewCoordination(target CoordinationTarget, opts Options) *Coordination {
	if target.DialTimeout <= 0 {
		target.DialTimeout = DefaultCoordinationTimeout
	}
	opts = opts.withDefaults()
	opts.Attempts = stretchAttempts(opts.Attempts, target.DialTimeout+coordinationGrace)
	return &Coordination{target: target, opts: opts}
}

// stretchAttempts raises every bounded attempt timeout to at least floor
func stretchAttempts(attempts []retry.TaskAttempt, floor time.Duration) []retry.TaskAttempt {
	out := make([]retry.TaskAttempt, len(attempts))
	for i, a := range attempts {
		if a.Timeout > 0 && a.Timeout < floor {
			a.Timeout = floor
		}
		out[i] = a
	}
	return out
}

// CheckStatus implements monitor.MonitoredService
func (c *Coordination) CheckStatus(ctx context.Context) core.ServiceStatusReport {
	return check(ctx, core.ServiceCoordination, c.opts, c.ping)
}

// ping succeeds as soon as any endpoint reports its member status
func (c *Coordination) ping(ctx context.Context) error {
	if len(c.target.Endpoints) == 0 {
		return errors.New("no coordination service endpoints configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.target.DialTimeout)
	defer cancel()

	client, err := clientv3.New(c.clientConfig(ctx))
	if err != nil {
		return fmt.Errorf("failed to create coordination service client: %w", err)
	}
	defer client.Close()

	var errs []error
	for _, endpoint := range c.target.Endpoints {
		if _, err := client.Status(ctx, endpoint); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("coordination service unreachable: %w", errors.Join(errs...))
}

// clientConfig binds the etcd client to ctx and to the probe's logger
func (c *Coordination) clientConfig(ctx context.Context) clientv3.Config {
	return clientv3.Config{
		Endpoints:   c.target.Endpoints,
		DialTimeout: c.target.DialTimeout,
		Username:    c.target.Username,
		Password:    c.target.Password,
		Context:     ctx,
		Logger:      c.opts.Logger.Desugar().Named("etcd-client"),
	}
}
