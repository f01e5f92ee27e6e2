package ffmpeg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verdictTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fftransform_directive_verdicts_total",
		Help: "Directive validations by result (accepted or the rejecting rule)",
	}, []string{"result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fftransform_ffmpeg_exit_total",
		Help: "Total number of ffmpeg process exits by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fftransform_ffmpeg_duration_seconds",
		Help:    "Wall-clock duration of ffmpeg invocations",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})
)
