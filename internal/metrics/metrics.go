// Package metrics exposes Prometheus instrumentation for inference calls,
// the detection loops and the HTTP API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "facecheck"

// Inference and pipeline metrics.
var (
	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of inference server requests",
		},
		[]string{"endpoint", "status"},
	)

	InferenceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_request_duration_seconds",
			Help:      "Inference server request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	LoopTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Detection loop iterations by loop and outcome",
		},
		[]string{"loop", "outcome"},
	)

	PipelineRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_restarts_total",
			Help:      "Pipeline restarts by error kind",
		},
		[]string{"kind"},
	)

	CaptureFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_total",
			Help:      "Webcam frames received from streaming clients",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers inference and pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(InferenceRequestsTotal)
	prometheus.MustRegister(InferenceRequestDuration)
	prometheus.MustRegister(LoopTicksTotal)
	prometheus.MustRegister(PipelineRestartsTotal)
	prometheus.MustRegister(CaptureFramesTotal)
	pipelineMetricsRegistered = true
}
