// Package metrics defines and registers all custom Prometheus metrics for the
// two-factor authentication service. It is the single source of truth for
// metric names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Flow metrics ──────────────────────────────────────────────────────────────

// FlowAttemptsTotal counts completed flow attempts.
// Labels:
//   - flow: "register", "login" or "verify_2fa"
//   - outcome: "success", "missing_field", "invalid_credentials", … (see domain.Outcome*)
var FlowAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flow_attempts_total",
		Help:      "Total number of authentication flow attempts, by flow and outcome.",
	},
	[]string{"flow", "outcome"},
)

// FlowDuration measures end-to-end latency of a flow, including hashing.
// Label:
//   - flow: "register", "login" or "verify_2fa"
var FlowDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flow_duration_seconds",
		Help:      "Duration of authentication flows from request to result.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"flow"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditDroppedTotal counts audit events discarded because a worker queue was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped because the dispatcher queue was full.",
	},
)

// AuditQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWriteErrorsTotal counts audit events the repository failed to persist.
var AuditWriteErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_errors_total",
		Help:      "Total number of audit events that could not be persisted.",
	},
)

// ── TOTP metrics ──────────────────────────────────────────────────────────────

// TOTPReplaysTotal counts codes rejected because their step was already used.
var TOTPReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "totp_replays_total",
		Help:      "Total number of TOTP codes rejected as replays of an already accepted step.",
	},
)
