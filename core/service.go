package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidServiceID is returned when a service name cannot be resolved
var ErrInvalidServiceID = errors.New("invalid service id")

// ServiceID identifies a dependency monitored by the services monitor
type ServiceID string

const (
	// ServiceCaseDatabase is the shared relational case database server
	ServiceCaseDatabase ServiceID = "REMOTE_CASE_DATABASE"
	// ServiceKeywordSearch is the full-text index server
	ServiceKeywordSearch ServiceID = "REMOTE_KEYWORD_SEARCH"
	// ServiceMessaging is the message broker carrying case events
	ServiceMessaging ServiceID = "MESSAGING"
	// ServiceCoordination is the distributed coordination service
	ServiceCoordination ServiceID = "COORDINATION_SERVICE"
)

var allServices = []ServiceID{
	ServiceCaseDatabase,
	ServiceKeywordSearch,
	ServiceMessaging,
	ServiceCoordination,
}

var serviceDisplayNames = map[ServiceID]string{
	ServiceCaseDatabase:  "Multi-user case database service",
	ServiceKeywordSearch: "Multi-user keyword search service",
	ServiceMessaging:     "Messaging service",
	ServiceCoordination:  "Coordination service",
}

// AllServices returns every known service in declaration order
func AllServices() []ServiceID {
	out := make([]ServiceID, len(allServices))
	copy(out, allServices)
	return out
}

// String returns the string representation
func (s ServiceID) String() string {
	return string(s)
}

// DisplayName returns the human readable name of the service
func (s ServiceID) DisplayName() string {
	if name, ok := serviceDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// IsValid checks if the service id is one of the known services
func (s ServiceID) IsValid() bool {
	_, ok := serviceDisplayNames[s]
	return ok
}

// ParseServiceID resolves a service name, ignoring case.
// Short aliases used on the command line ("database", "search", "messaging",
// "coordination") are accepted as well.
func ParseServiceID(name string) (ServiceID, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if id := ServiceID(normalized); id.IsValid() {
		return id, nil
	}
	switch strings.ToLower(normalized) {
	case "database", "db":
		return ServiceCaseDatabase, nil
	case "search", "keyword_search", "solr":
		return ServiceKeywordSearch, nil
	case "messaging", "broker":
		return ServiceMessaging, nil
	case "coordination", "etcd":
		return ServiceCoordination, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidServiceID, name)
}

// ServiceStatus is the liveness of a monitored service.
// The zero value means no report has been produced yet.
type ServiceStatus string

const (
	ServiceStatusUp   ServiceStatus = "UP"
	ServiceStatusDown ServiceStatus = "DOWN"
)

// String returns the string representation
func (s ServiceStatus) String() string {
	return string(s)
}

// IsValid checks if the status is UP or DOWN
func (s ServiceStatus) IsValid() bool {
	return s == ServiceStatusUp || s == ServiceStatusDown
}

// ServiceStatusReport is the outcome of a single health check.
// Reports are values: they are built once by a probe and never mutated.
type ServiceStatusReport struct {
	Service   ServiceID     `json:"service" yaml:"service"`
	Status    ServiceStatus `json:"status" yaml:"status"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
}

// NewUpReport creates a report for a healthy service
func NewUpReport(service ServiceID) ServiceStatusReport {
	return ServiceStatusReport{
		Service:   service,
		Status:    ServiceStatusUp,
		CheckedAt: time.Now().UTC(),
	}
}

// NewDownReport creates a report for an unreachable service.
// The message is the text of err, or "unknown error" when err is nil.
func NewDownReport(service ServiceID, err error) ServiceStatusReport {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return NewDownReportf(service, "%s", msg)
}

// NewDownReportf creates a DOWN report with a formatted message
func NewDownReportf(service ServiceID, format string, args ...interface{}) ServiceStatusReport {
	return ServiceStatusReport{
		Service:   service,
		Status:    ServiceStatusDown,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: time.Now().UTC(),
	}
}

// IsUp reports whether the service was reachable
func (r ServiceStatusReport) IsUp() bool {
	return r.Status == ServiceStatusUp
}

// String formats the report for logs and CLI output
func (r ServiceStatusReport) String() string {
	if r.Message == "" {
		return fmt.Sprintf("%s: %s", r.Service, r.Status)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Service, r.Status, r.Message)
}
