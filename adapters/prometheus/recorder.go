// Package prometheus exposes core.MetricsRecorder on a client_golang
// registry. Metric vectors are created lazily on first use; the label set of
// a metric is fixed by the tags of its first observation.
package prometheus

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-custom-sender/core"
)

// DefaultBuckets are tuned for millisecond durations of remote calls.
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type Recorder struct {
	registry   *prometheus.Registry
	namespace  string
	buckets    []float64
	mu         sync.Mutex
	counters   map[string]*counterVec
	histograms map[string]*histogramVec
}

type counterVec struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramVec struct {
	vec    *prometheus.HistogramVec
	labels []string
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// NewRecorder registers metrics on registry, or on a fresh registry when nil.
func NewRecorder(registry *prometheus.Registry, opts ...Option) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := &Recorder{
		registry:   registry,
		buckets:    DefaultBuckets,
		counters:   map[string]*counterVec{},
		histograms: map[string]*histogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	name = r.metricName(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.counters[name]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: "Counter " + name + ".",
		}, labels)
		entry = &counterVec{vec: registerOrExisting(r.registry, vec), labels: labels}
		r.counters[name] = entry
	}
	r.mu.Unlock()

	counter, err := entry.vec.GetMetricWithLabelValues(labelValues(entry.labels, tags)...)
	if err != nil {
		return
	}
	counter.Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	name = r.metricName(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.histograms[name]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "Histogram " + name + ".",
			Buckets: r.buckets,
		}, labels)
		entry = &histogramVec{vec: registerOrExisting(r.registry, vec), labels: labels}
		r.histograms[name] = entry
	}
	r.mu.Unlock()

	observer, err := entry.vec.GetMetricWithLabelValues(labelValues(entry.labels, tags)...)
	if err != nil {
		return
	}
	observer.Observe(value)
}

func (r *Recorder) metricName(name string) string {
	name = sanitizeName(name)
	if name == "" {
		return ""
	}
	if r.namespace != "" {
		return r.namespace + "_" + name
	}
	return name
}

func registerOrExisting[T prometheus.Collector](registry *prometheus.Registry, collector T) T {
	if err := registry.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		if sanitized := sanitizeName(key); sanitized != "" {
			names = append(names, sanitized)
		}
	}
	sort.Strings(names)
	return names
}

// labelValues fills missing labels with "" and ignores tags outside the
// registered label set.
func labelValues(names []string, tags map[string]string) []string {
	sanitized := make(map[string]string, len(tags))
	for key, value := range tags {
		sanitized[sanitizeName(key)] = value
	}
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = sanitized[name]
	}
	return values
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
