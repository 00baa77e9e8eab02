// Package metrics defines and registers the custom Prometheus metrics of the
// SocialLab app server. Metrics are registered with the default registry on
// package init through promauto and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sociallab"

// ── Auth operation metrics ───────────────────────────────────────────────────

// AuthOperationsTotal counts auth operations by outcome.
// Labels:
//   - operation: sign_in, sign_up, sign_in_oauth, sign_out, oauth_callback
//   - result: ok, auth_rejected, network_error, configuration_error
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// AuthOperationDuration measures backend round-trip time of an auth operation.
var AuthOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "auth_operation_duration_seconds",
		Help:      "Duration of auth operations including storage cleanup.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// AuthEventsTotal counts auth-change notifications received from the backend.
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Total number of auth-change notifications handled, by event.",
	},
	[]string{"event"},
)

// ── Profile and storage metrics ──────────────────────────────────────────────

// ProfileLoadsTotal counts profile fetches.
// Label:
//   - result: found, missing, error
var ProfileLoadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_loads_total",
		Help:      "Total number of profile loads, labelled by result (found/missing/error).",
	},
	[]string{"result"},
)

// StorageKeysRemovedTotal counts auth-token keys scrubbed from local stores.
var StorageKeysRemovedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_storage_keys_removed_total",
		Help:      "Total number of auth-token keys removed from local stores, by store.",
	},
	[]string{"store"},
)

// DeferredQueueDepth tracks tasks waiting in each deferred-dispatch worker.
var DeferredQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deferred_queue_depth",
		Help:      "Current number of tasks pending in each deferred-dispatch worker channel.",
	},
	[]string{"worker_id"},
)
