// Package metrics exposes this module's Prometheus collectors, in the
// package-level-vars-plus-init-registration idiom the teacher's
// pkg/metrics uses.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = not leader)",
		},
	)

	CurrentTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_current_term",
			Help: "Current Raft term",
		},
	)

	CommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_commit_index",
			Help: "Current committed log index",
		},
	)

	AppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_applied_index",
			Help: "Last applied log index",
		},
	)

	LogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_log_entries",
			Help: "Number of in-memory log entries not yet snapshotted",
		},
	)

	ElectionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_elections_started_total",
			Help: "Total number of elections (including pre-vote rounds) this node started",
		},
	)

	AppendEntriesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftcore_append_entries_sent_total",
			Help: "Total AppendEntries RPCs sent by outcome",
		},
		[]string{"result"},
	)

	InstallSnapshotSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_install_snapshot_sent_total",
			Help: "Total InstallSnapshot RPCs sent",
		},
	)

	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_apply_duration_seconds",
			Help:    "Time taken to apply one batch of committed entries",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_snapshot_duration_seconds",
			Help:    "Time taken to build and persist a snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConfigurationChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftcore_configuration_changes_total",
			Help: "Total membership changes by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		IsLeader,
		CurrentTerm,
		CommitIndex,
		AppliedIndex,
		LogSize,
		ElectionsStarted,
		AppendEntriesSent,
		InstallSnapshotSent,
		ApplyDuration,
		SnapshotDuration,
		ConfigurationChangesTotal,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small stopwatch helper matching the teacher's pkg/metrics
// Timer, used to feed the histograms above.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration { return time.Since(t.start) }
