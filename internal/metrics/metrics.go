// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts playback events fanned out on the bus, by type.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_events_published_total",
			Help: "Playback events published on the bus by event type",
		},
		[]string{"event"},
	)

	// EventsSuppressed counts raw AV-change signals dropped by the debouncer.
	EventsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "av_change_suppressed_total",
			Help: "Raw AV-change signals dropped by the debouncer, by reason",
		},
		[]string{"reason"},
	)

	// OffsetsApplied counts learned offsets applied to the player.
	OffsetsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_offsets_applied_total",
			Help: "Learned audio offsets applied to the player",
		},
	)

	// SeeksIssued counts seek-back commands by trigger class and outcome.
	SeeksIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seek_backs_total",
			Help: "Seek-back commands by trigger class and status",
		},
		[]string{"class", "status"},
	)

	// AdjustmentsCommitted counts manual offset changes persisted by the poller.
	AdjustmentsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "user_adjustments_committed_total",
			Help: "Manual audio offset adjustments persisted by the poller",
		},
	)

	// PollerArmed reports whether the live-adjustment poller is running.
	PollerArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adjustment_poller_armed",
			Help: "Whether the live-adjustment poller is running (0/1)",
		},
	)

	// RPCCalls counts JSON-RPC requests to the host by method and status.
	RPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "host_rpc_calls_total",
			Help: "JSON-RPC calls to the host by method and status",
		},
		[]string{"method", "status"},
	)

	// RPCDuration tracks JSON-RPC round-trip latency in seconds.
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "host_rpc_duration_seconds",
			Help:    "JSON-RPC round-trip duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method"},
	)

	// NotificationsDropped counts host notifications dropped because the
	// fan-in buffer was full.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "host_notifications_dropped_total",
			Help: "Host notifications dropped due to a full fan-in buffer",
		},
	)
)
