// Package metrics provides in-process observability counters/gauges for
// Process state transitions. There is no HTTP exposition here: serving
// /metrics would be a remote network surface, which spec.md's Non-goals
// explicitly exclude (no remote protocol). These collectors exist purely so
// a daemon embedder or a future in-process inspection command could read
// them directly off the registry; nothing in this repo scrapes them over
// the network.
package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	regOK atomic.Bool

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "process",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions a managed process has gone through.",
		}, []string{"job", "from", "to"},
	)

	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "taskmasterd",
			Subsystem: "process",
			Name:      "current_state",
			Help:      "Current state of a managed process (1 = active, 0 = inactive).",
		}, []string{"job", "state"},
	)

	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskmasterd",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of times a process was respawned, whether auto-restarted or operator-requested.",
		}, []string{"job"},
	)
)

// Register registers every collector with r. Safe to call more than once;
// an AlreadyRegisteredError from a repeat call is swallowed.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{stateTransitions, currentStates, restarts} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RecordStateTransition records a job's process moving from one status
// label to another (e.g. "STARTING" -> "RUNNING"). No-op until Register has
// succeeded.
func RecordStateTransition(job, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(job, from, to).Inc()
	}
}

// SetCurrentState marks whether job is currently in state. No-op until
// Register has succeeded.
func SetCurrentState(job, state string, active bool) {
	if !regOK.Load() {
		return
	}
	var v float64
	if active {
		v = 1
	}
	currentStates.WithLabelValues(job, state).Set(v)
}

// IncRestart counts one respawn of job's process. No-op until Register has
// succeeded.
func IncRestart(job string) {
	if regOK.Load() {
		restarts.WithLabelValues(job).Inc()
	}
}
