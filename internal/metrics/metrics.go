// Package metrics exposes batch results as Prometheus metrics.
//
// libsync runs as a short-lived command, so metrics are written in the text exposition format to a
// file picked up by the node exporter textfile collector rather than served over HTTP.
package metrics

import (
	"fmt"

	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "libsync"

// Recorder holds the batch metrics in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	batches      *prometheus.CounterVec
	tracks       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     prometheus.Gauge
	lastFinished prometheus.Gauge
	playlistSize *prometheus.GaugeVec
}

// NewRecorder creates and registers every metric.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Reconciliation batches by mode and terminal status.",
		}, []string{"mode", "status"}),
		tracks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_total",
			Help:      "Tracks processed by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_failures_total",
			Help:      "Unresolved tracks by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_duration_seconds",
			Help:      "Wall time of the most recent batch.",
		}),
		lastFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_finished_timestamp_seconds",
			Help:      "Unix time the most recent batch finished.",
		}),
		playlistSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playlist_tracks",
			Help:      "Member count of each playlist after its last sync.",
		}, []string{"playlist"}),
	}

	r.registry.MustRegister(r.batches, r.tracks, r.failures, r.duration, r.lastFinished, r.playlistSize)
	return r
}

// Registry returns the registry holding the batch metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe records one finished batch.
func (r *Recorder) Observe(result *tasks.BatchResult) {
	r.batches.WithLabelValues(string(result.Mode), string(result.Status())).Inc()

	resolved, failed := len(result.Resolved()), len(result.Failed())
	r.tracks.WithLabelValues("resolved").Add(float64(resolved))
	r.tracks.WithLabelValues("failed").Add(float64(failed))
	for _, o := range result.Failed() {
		r.failures.WithLabelValues(o.Kind()).Inc()
	}

	r.duration.Set(result.Duration().Seconds())
	if !result.FinishedAt.IsZero() {
		r.lastFinished.Set(float64(result.FinishedAt.Unix()))
	}
	if result.PlaylistID != "" {
		r.playlistSize.WithLabelValues(result.PlaylistName).Set(float64(result.FinalCount))
	}
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
