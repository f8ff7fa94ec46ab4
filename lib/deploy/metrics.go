// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver records deploy metrics in its own registry and, when
// Path is set, writes them to a node-exporter textfile after each run.
type MetricsObserver struct {
	Path   string
	Logger *slog.Logger

	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	deploys        *prometheus.CounterVec
	uploadAttempts prometheus.Gauge
}

// NewMetricsObserver registers the deploy metrics for app.
func NewMetricsObserver(app, path string, logger *slog.Logger) *MetricsObserver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	labels := prometheus.Labels{"app": app}
	observer := &MetricsObserver{
		Path:     path,
		Logger:   logger,
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "drydock_stage_duration_seconds",
			Help:        "Duration of deploy pipeline stages.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"stage"}),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "drydock_deploys_total",
			Help:        "Deploys by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		uploadAttempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "drydock_upload_attempts",
			Help:        "Upload attempts used by the last deploy.",
			ConstLabels: labels,
		}),
	}
	observer.registry.MustRegister(observer.stageDuration, observer.deploys, observer.uploadAttempts)
	return observer
}

// Registry exposes the collectors, for tests and embedding.
func (o *MetricsObserver) Registry() *prometheus.Registry { return o.registry }

func (o *MetricsObserver) StateChanged(State, State) {}

func (o *MetricsObserver) StageStarted(Stage) {}

func (o *MetricsObserver) StageFinished(stage Stage, elapsed time.Duration, _ error) {
	o.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

func (o *MetricsObserver) Finished(result Result) {
	o.deploys.WithLabelValues(string(result.Outcome)).Inc()
	o.uploadAttempts.Set(float64(result.UploadAttempts))
	if err := o.Write(); err != nil {
		o.Logger.Warn("writing metrics textfile", "path", o.Path, "error", err)
	}
}

// Write writes the textfile. It does nothing when Path is empty.
func (o *MetricsObserver) Write() error {
	if o.Path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(o.Path, o.registry); err != nil {
		return fmt.Errorf("writing %s: %w", o.Path, err)
	}
	return nil
}
