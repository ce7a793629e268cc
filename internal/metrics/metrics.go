// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"time"

	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subrelay_submissions_total",
		Help: "Job submissions by outcome (accepted, invalid, conflict)",
	}, []string{"outcome"})

	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subrelay_jobs_running",
		Help: "1 while a job is running, 0 otherwise",
	})

	JobsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subrelay_jobs_finished_total",
		Help: "Jobs that reached a terminal state, by status",
	}, []string{"status"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subrelay_stage_duration_seconds",
		Help:    "Wall time spent in each stage",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
	}, []string{"stage"})

	StageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subrelay_stage_failures_total",
		Help: "Stage failures by stage and error kind",
	}, []string{"stage", "kind"})

	JobProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subrelay_job_progress_percent",
		Help: "Progress of the tracked job",
	})

	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subrelay_stream_clients",
		Help: "Connected status stream clients",
	})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		JobsRunning,
		JobsFinishedTotal,
		StageDuration,
		StageFailuresTotal,
		JobProgress,
		StreamClients,
	)
}

// ObserveStage records one stage execution.
func ObserveStage(stage string, elapsed time.Duration, kind models.ErrorKind) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if kind != "" {
		StageFailuresTotal.WithLabelValues(stage, string(kind)).Inc()
	}
}

// ObserveJob is a job state observer that keeps the job gauges current.
func ObserveJob(v models.JobView) {
	JobProgress.Set(float64(v.Progress))
	if v.IsProcessing() {
		JobsRunning.Set(1)
		return
	}
	JobsRunning.Set(0)
	if v.Status.Terminal() {
		JobsFinishedTotal.WithLabelValues(string(v.Status)).Inc()
	}
}
