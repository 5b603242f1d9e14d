package monitor

import (
	"context"
	"errors"
	"fmt"

	"casehub/core"
)

var (
	// ErrUnknownService is returned for a service id with no registered probe
	ErrUnknownService = errors.New("unknown service")
	// ErrServiceAlreadyRegistered is returned when a service id is registered twice
	ErrServiceAlreadyRegistered = errors.New("service already registered")
	// ErrMonitorStarted is returned when registering or starting a running monitor
	ErrMonitorStarted = errors.New("services monitor already started")
)

// MonitoredService probes one dependency.
//
// CheckStatus never fails: connection, authentication and protocol errors are
// reported as a DOWN report carrying the error text. Implementations should
// honour ctx so a probe can be abandoned on shutdown.
type MonitoredService interface {
	CheckStatus(ctx context.Context) core.ServiceStatusReport
}

// ServiceFunc adapts a function to the MonitoredService interface
type ServiceFunc func(ctx context.Context) core.ServiceStatusReport

// CheckStatus calls f
func (f ServiceFunc) CheckStatus(ctx context.Context) core.ServiceStatusReport {
	return f(ctx)
}

// StatusChange describes a service status transition.
// OldStatus is empty for the first report of a service.
type StatusChange struct {
	Service   core.ServiceID
	OldStatus core.ServiceStatus
	NewStatus core.ServiceStatus
	Report    core.ServiceStatusReport
}

// StatusChangeListener is notified of status transitions
type StatusChangeListener func(change StatusChange)

// ListenerID identifies a registered listener for removal
type ListenerID uint64

// ServiceDownError reports the first service found DOWN by RequireUp
type ServiceDownError struct {
	Report core.ServiceStatusReport
}

func (e *ServiceDownError) Error() string {
	if e.Report.Message == "" {
		return fmt.Sprintf("%s is down", e.Report.Service.DisplayName())
	}
	return fmt.Sprintf("%s is down: %s", e.Report.Service.DisplayName(), e.Report.Message)
}
