// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Observations are buffered in memory, flushed periodically on a ticker, and
// flushed one final time on Close. Counters become Datadog COUNT series;
// duration samples become p50/p95/max gauges. Pipeline code depends only on
// metrics.Backend and never sees the Datadog SDK.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "retaildw".
	JobName string

	// Tags are extra Datadog tags, e.g. []string{"warehouse:postgres"}.
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams; production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal surface needed to submit metrics. The SDK
// exposes a concrete *datadogV2.MetricsApi; depending on this interface lets
// tests substitute a fake with no network.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewBackend constructs a Datadog backend using the official client and
// starts its periodic flush goroutine. Credentials come from the standard
// DD_API_KEY environment variable; network errors surface from Flush, not
// from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "retaildw"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags ...string) {
	if delta <= 0 {
		return
	}
	k := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[k] += delta
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, d time.Duration, tags ...string) {
	if d < 0 {
		return
	}
	k := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[k] = append(b.samples[k], d.Seconds())
}

// snapshotAndReset detaches the current buffers under the lock. Buffers are
// reset even if the subsequent submission fails, so a slow or broken metrics
// endpoint cannot grow memory without bound.
func (b *Backend) snapshotAndReset() (map[string]float64, map[string][]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counters, samples := b.counters, b.samples
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	return counters, samples
}

// Flush submits buffered metrics to Datadog. Returns nil when there is
// nothing to submit.
func (b *Backend) Flush() error {
	counters, samples := b.snapshotAndReset()
	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := b.buildSeries(counters, samples, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, clocks, or network) so naming and tagging
// behavior can be unit tested.
func (b *Backend) buildSeries(counters map[string]float64, samples map[string][]float64, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counters)+4*len(samples))

	for k, v := range counters {
		if v == 0 {
			continue
		}
		name, tags := splitBufferKey(k)
		series = append(series, datadogV2.MetricSeries{
			Metric: name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)},
			},
			Tags: withTags(b.baseTags, tags...),
		})
	}

	for k, s := range samples {
		if len(s) == 0 {
			continue
		}
		name, tags := splitBufferKey(k)
		cp := append([]float64(nil), s...)
		sort.Float64s(cp)

		full := withTags(b.baseTags, tags...)
		series = append(series,
			gaugeSeries(name+".p50", percentileNearestRank(cp, 0.50), full, nowUnix),
			gaugeSeries(name+".p95", percentileNearestRank(cp, 0.95), full, nowUnix),
			gaugeSeries(name+".max", cp[len(cp)-1], full, nowUnix),
			gaugeSeries(name+".samples", float64(len(cp)), full, nowUnix),
		)
	}

	return series
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// percentileNearestRank picks the nearest-rank percentile from sorted
// samples.
func percentileNearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func withTags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return out
}

// bufferKey joins metric name and tags into one map key. Tags are sorted so
// tag order cannot split a buffer.
func bufferKey(name string, tags []string) string {
	if len(tags) == 0 {
		return name
	}
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	return name + "|" + strings.Join(cp, ",")
}

func splitBufferKey(k string) (name string, tags []string) {
	name, rest, found := strings.Cut(k, "|")
	if !found || rest == "" {
		return name, nil
	}
	return name, strings.Split(rest, ",")
}
