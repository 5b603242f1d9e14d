package monitor

import (
	"context"
	"time"

	"casehub/util/goroutine"
)

// PollInterval returns the background polling interval, or a negative value
// when polling is disabled
func (m *Monitor) PollInterval() time.Duration {
	return m.pollInterval
}

// Start launches the background polling loop. The first round of checks runs
// immediately. Listeners are notified from polling exactly as from on-demand
// checks. Start returns ErrMonitorStarted if called twice.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.started {
		return ErrMonitorStarted
	}
	m.started = true

	if m.pollInterval < 0 {
		m.logger.Infow("Services monitor started without polling")
		return nil
	}

	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	done := m.done
	goroutine.Go("services-monitor-poller", m.logger, nil, func() {
		defer close(done)
		m.poll(pollCtx)
	})

	m.logger.Infow("Services monitor started",
		"services", len(m.Services()),
		"poll_interval", m.pollInterval)
	return nil
}

func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := m.CheckAll(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warnw("Periodic service check failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop ends background polling and waits for an in-flight round to finish.
// It is safe to call more than once.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Infow("Services monitor stopped")
}
