package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServiceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "casehub_service_up",
			Help: "Last known status of a monitored service (1 = up, 0 = down)",
		},
		[]string{"service"},
	)

	ServiceStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casehub_service_status_transitions_total",
			Help: "Total number of service status changes, labelled by the new status",
		},
		[]string{"service", "status"},
	)

	ServiceCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casehub_service_check_duration_seconds",
			Help:    "Time taken to probe a monitored service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casehub_events_published_total",
			Help: "Total number of case events sent to other instances",
		},
		[]string{"type"},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casehub_events_received_total",
			Help: "Total number of case events received from other instances",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casehub_events_dropped_total",
			Help: "Total number of inbound messages dropped before delivery",
		},
		[]string{"reason"},
	)

	EventSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casehub_event_send_failures_total",
			Help: "Total number of case events that could not be sent",
		},
	)

	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "casehub_event_channel_connected",
			Help: "Whether the event channel for a topic is connected (1) or not (0)",
		},
		[]string{"topic"},
	)
)

// Drop reasons for EventsDropped
const (
	DropReasonDecode      = "decode"
	DropReasonSelector    = "selector"
	DropReasonOwnMessage  = "own_message"
	DropReasonUnknownType = "unknown_type"
	DropReasonDuplicate   = "duplicate"
	DropReasonStopped     = "stopped"
)

// ObserveServiceStatus records a status for the service gauge
func ObserveServiceStatus(service string, up bool) {
	if up {
		ServiceUp.WithLabelValues(service).Set(1)
		return
	}
	ServiceUp.WithLabelValues(service).Set(0)
}
