// Package monitor tracks the liveness of the services a multi-user case
// depends on.
//
// A Monitor holds one MonitoredService per service id, registered at startup.
// Checks always run the probe; the most recent completed report of every
// service is cached and listeners hear about transitions only. Start adds a
// fixed-interval polling loop on top of on-demand checks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"casehub/core"
	"casehub/metrics"
	"casehub/util/goroutine"

	"go.uber.org/zap"
)

// DefaultPollInterval is used when Config.PollInterval is zero
const DefaultPollInterval = 15 * time.Second

// Config configures a Monitor
type Config struct {
	// PollInterval between background checks of all services.
	// Negative disables polling; zero selects DefaultPollInterval.
	PollInterval time.Duration
}

type listenerEntry struct {
	fn       StatusChangeListener
	services map[core.ServiceID]struct{}
}

func (l listenerEntry) wants(id core.ServiceID) bool {
	if len(l.services) == 0 {
		return true
	}
	_, ok := l.services[id]
	return ok
}

// Monitor is the registry of monitored services and their last known status
type Monitor struct {
	pollInterval time.Duration
	logger       *zap.SugaredLogger

	mu       sync.RWMutex
	services map[core.ServiceID]MonitoredService
	order    []core.ServiceID
	cache    map[core.ServiceID]core.ServiceStatusReport

	listenersMu  sync.RWMutex
	listeners    map[ListenerID]listenerEntry
	nextListener atomic.Uint64

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates an empty monitor
func New(cfg Config, logger *zap.SugaredLogger) *Monitor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		pollInterval: interval,
		logger:       logger,
		services:     make(map[core.ServiceID]MonitoredService),
		cache:        make(map[core.ServiceID]core.ServiceStatusReport),
		listeners:    make(map[ListenerID]listenerEntry),
	}
}

// Register adds the probe for a service. Each id may be registered once,
// before Start.
func (m *Monitor) Register(id core.ServiceID, svc MonitoredService) error {
	if id == "" {
		return fmt.Errorf("%w: empty service id", ErrUnknownService)
	}
	if svc == nil {
		return fmt.Errorf("nil probe for service %s", id)
	}

	m.lifecycleMu.Lock()
	started := m.started
	m.lifecycleMu.Unlock()
	if started {
		return ErrMonitorStarted
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.services[id]; exists {
		return fmt.Errorf("%w: %s", ErrServiceAlreadyRegistered, id)
	}
	m.services[id] = svc
	m.order = append(m.order, id)
	return nil
}

// Services returns the registered service ids in registration order
func (m *Monitor) Services() []core.ServiceID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ServiceID, len(m.order))
	copy(out, m.order)
	return out
}

// CheckService probes a service, caches the result and returns it.
// A cached report is never served in place of a probe. If ctx is cancelled
// while the probe runs, the result is discarded and ctx.Err() is returned.
func (m *Monitor) CheckService(ctx context.Context, id core.ServiceID) (core.ServiceStatusReport, error) {
	m.mu.RLock()
	svc, ok := m.services[id]
	m.mu.RUnlock()
	if !ok {
		return core.ServiceStatusReport{}, fmt.Errorf("%w: %s", ErrUnknownService, id)
	}

	start := time.Now()
	report := m.probe(ctx, id, svc)
	metrics.ServiceCheckDuration.WithLabelValues(id.String()).Observe(time.Since(start).Seconds())

	if err := ctx.Err(); err != nil {
		return core.ServiceStatusReport{}, err
	}

	m.mu.Lock()
	previous, hadPrevious := m.cache[id]
	m.cache[id] = report
	m.mu.Unlock()

	metrics.ObserveServiceStatus(id.String(), report.IsUp())

	if !hadPrevious || previous.Status != report.Status {
		m.statusChanged(StatusChange{
			Service:   id,
			OldStatus: previous.Status,
			NewStatus: report.Status,
			Report:    report,
		})
	}
	return report, nil
}

// probe runs svc and normalizes the report it produced
func (m *Monitor) probe(ctx context.Context, id core.ServiceID, svc MonitoredService) core.ServiceStatusReport {
	var report core.ServiceStatusReport
	if !goroutine.SafeCall("probe-"+id.String(), m.logger, func() {
		report = svc.CheckStatus(ctx)
	}) {
		return core.NewDownReportf(id, "probe for %s panicked", id)
	}

	report.Service = id
	if !report.Status.IsValid() {
		return core.NewDownReportf(id, "probe returned invalid status %q", report.Status)
	}
	if report.CheckedAt.IsZero() {
		report.CheckedAt = time.Now().UTC()
	}
	return report
}

// CheckAll probes every registered service concurrently and returns the
// reports in registration order
func (m *Monitor) CheckAll(ctx context.Context) ([]core.ServiceStatusReport, error) {
	ids := m.Services()
	reports := make([]core.ServiceStatusReport, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		goroutine.Go("check-"+id.String(), m.logger, &wg, func() {
			reports[i], errs[i] = m.CheckService(ctx, id)
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reports, nil
}

// RequireUp checks the given services one at a time, in order, and returns a
// *ServiceDownError for the first one that is DOWN. With no ids every
// registered service is checked.
func (m *Monitor) RequireUp(ctx context.Context, ids ...core.ServiceID) error {
	if len(ids) == 0 {
		ids = m.Services()
	}
	for _, id := range ids {
		report, err := m.CheckService(ctx, id)
		if err != nil {
			return err
		}
		if !report.IsUp() {
			return &ServiceDownError{Report: report}
		}
	}
	return nil
}

// LastKnownStatus returns the cached report of a service without probing.
// ok is false if the service has never been checked.
func (m *Monitor) LastKnownStatus(id core.ServiceID) (report core.ServiceStatusReport, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok = m.cache[id]
	return report, ok
}

// Snapshot returns every cached report, sorted by service id
func (m *Monitor) Snapshot() []core.ServiceStatusReport {
	m.mu.RLock()
	out := make([]core.ServiceStatusReport, 0, len(m.cache))
	for _, r := range m.cache {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// AddStatusChangeListener registers fn for transitions of the given services,
// or of every service when none are given.
//
// Listeners run synchronously on the goroutine that completed the check and
// must not block.
func (m *Monitor) AddStatusChangeListener(fn StatusChangeListener, ids ...core.ServiceID) ListenerID {
	entry := listenerEntry{fn: fn}
	if len(ids) > 0 {
		entry.services = make(map[core.ServiceID]struct{}, len(ids))
		for _, id := range ids {
			entry.services[id] = struct{}{}
		}
	}

	id := ListenerID(m.nextListener.Add(1))
	m.listenersMu.Lock()
	m.listeners[id] = entry
	m.listenersMu.Unlock()
	return id
}

// RemoveStatusChangeListener unregisters a listener. It reports whether the
// listener was registered.
func (m *Monitor) RemoveStatusChangeListener(id ListenerID) bool {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	if _, ok := m.listeners[id]; !ok {
		return false
	}
	delete(m.listeners, id)
	return true
}

func (m *Monitor) statusChanged(change StatusChange) {
	metrics.ServiceStatusTransitions.WithLabelValues(change.Service.String(), change.NewStatus.String()).Inc()

	if change.NewStatus == core.ServiceStatusDown {
		m.logger.Warnw("Service status changed",
			"service", change.Service,
			"old_status", change.OldStatus,
			"new_status", change.NewStatus,
			"message", change.Report.Message)
	} else {
		m.logger.Infow("Service status changed",
			"service", change.Service,
			"old_status", change.OldStatus,
			"new_status", change.NewStatus)
	}

	m.listenersMu.RLock()
	ids := make([]ListenerID, 0, len(m.listeners))
	for id, l := range m.listeners {
		if l.wants(change.Service) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]StatusChangeListener, len(ids))
	for i, id := range ids {
		fns[i] = m.listeners[id].fn
	}
	m.listenersMu.RUnlock()

	for _, fn := range fns {
		goroutine.SafeCall("status-listener", m.logger, func() { fn(change) })
	}
}
