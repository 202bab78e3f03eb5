package blogsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures pipeline telemetry.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes int, err error)
	RecordOptimization(res OptimizationResult)
	RecordCheck(res CheckResult)
}

type nopObserver struct{}

func (nopObserver) RecordUpload(time.Duration, int, error) {}
func (nopObserver) RecordOptimization(OptimizationResult)  {}
func (nopObserver) RecordCheck(CheckResult)                {}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	uploadDuration prometheus.Histogram
	uploadErrors   prometheus.Counter
	uploadBytes    prometheus.Counter
	optimized      *prometheus.CounterVec
	savedBytes     prometheus.Counter
	checks         *prometheus.CounterVec
	checkDuration  *prometheus.HistogramVec
}

// NewPrometheusObserver registers the blogsync metrics with reg, reusing
// collectors that are already registered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "blogsync"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of object storage uploads.",
			Buckets:   prometheus.DefBuckets,
		}),
		uploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_errors_total",
			Help:      "Failed object storage uploads.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Payload bytes successfully uploaded.",
		}),
		optimized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_transformed_total",
			Help:      "Images transcoded or recompressed, by transform.",
		}, []string{"transform"}),
		savedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimization_saved_bytes_total",
			Help:      "Bytes removed by transcoding and recompression.",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reachability_checks_total",
			Help:      "Reachability checks by source class and outcome.",
		}, []string{"class", "outcome"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reachability_check_duration_seconds",
			Help:      "Latency of reachability checks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
	}

	var err error
	if o.uploadDuration, err = register(reg, o.uploadDuration); err != nil {
		return nil, err
	}
	if o.uploadErrors, err = register(reg, o.uploadErrors); err != nil {
		return nil, err
	}
	if o.uploadBytes, err = register(reg, o.uploadBytes); err != nil {
		return nil, err
	}
	if o.optimized, err = register(reg, o.optimized); err != nil {
		return nil, err
	}
	if o.savedBytes, err = register(reg, o.savedBytes); err != nil {
		return nil, err
	}
	if o.checks, err = register(reg, o.checks); err != nil {
		return nil, err
	}
	if o.checkDuration, err = register(reg, o.checkDuration); err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register blogsync metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int, err error) {
	o.uploadDuration.Observe(duration.Seconds())
	if err != nil {
		o.uploadErrors.Inc()
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordOptimization(res OptimizationResult) {
	if res.Converted {
		o.optimized.WithLabelValues("png_to_jpeg").Inc()
	}
	if res.Optimized {
		o.optimized.WithLabelValues("recompress").Inc()
	}
	if saved := res.BeforeBytes - res.AfterBytes; saved > 0 {
		o.savedBytes.Add(float64(saved))
	}
}

func (o *PrometheusObserver) RecordCheck(res CheckResult) {
	outcome := "ok"
	if !res.Success {
		outcome = string(res.ErrorClass)
	}
	o.checks.WithLabelValues(string(res.Class), outcome).Inc()
	o.checkDuration.WithLabelValues(string(res.Class)).Observe(res.Duration.Seconds())
}
