package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, fake *fakeSubmitter) *Backend {
	t.Helper()

	b, err := NewBackend(context.Background(), Options{
		JobName:    "retaildw-test",
		FlushEvery: time.Hour, // never fires during a test
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  fake,
	})
	if err != nil {
		t.Fatalf("NewBackend error: %v", err)
	}
	return b
}

func seriesByMetric(p datadogV2.MetricPayload) map[string]datadogV2.MetricSeries {
	out := make(map[string]datadogV2.MetricSeries, len(p.Series))
	for _, s := range p.Series {
		out[s.Metric] = s
	}
	return out
}

func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFlush_EmptyBuffersSubmitNothing(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if fake.count() != 0 {
		t.Fatalf("expected no submission for empty buffers, got %d", fake.count())
	}
}

func TestFlush_CountersAccumulateAndReset(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	b.IncCounter("rows.read", 3)
	b.IncCounter("rows.read", 2)
	b.IncCounter("rows.dropped", 1, "reason:invalid")

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	payload, ok := fake.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}
	series := seriesByMetric(payload)

	read, ok := series["rows.read"]
	if !ok {
		t.Fatalf("rows.read missing from payload: %v", payload)
	}
	if got := *read.Points[0].Value; got != 5 {
		t.Fatalf("rows.read = %v, want 5", got)
	}
	if *read.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("rows.read type = %v, want COUNT", *read.Type)
	}
	if *read.Points[0].Timestamp != 1700000000 {
		t.Fatalf("timestamp = %d, want fixed clock", *read.Points[0].Timestamp)
	}

	dropped, ok := series["rows.dropped"]
	if !ok {
		t.Fatalf("rows.dropped missing from payload")
	}
	found := false
	for _, tag := range dropped.Tags {
		if tag == "reason:invalid" {
			found = true
		}
	}
	if !found {
		t.Fatalf("rows.dropped missing reason tag: %v", dropped.Tags)
	}

	// A second flush with no new observations submits nothing.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush error: %v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("buffers were not reset: %d submissions", fake.count())
	}
}

func TestFlush_DurationsBecomePercentileGauges(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	for _, d := range []time.Duration{time.Second, 2 * time.Second, 10 * time.Second} {
		b.ObserveDuration("stage.transform", d)
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	payload, _ := fake.last()
	series := seriesByMetric(payload)

	for metric, want := range map[string]float64{
		"stage.transform.p50":     2,
		"stage.transform.p95":     10,
		"stage.transform.max":     10,
		"stage.transform.samples": 3,
	} {
		s, ok := series[metric]
		if !ok {
			t.Fatalf("missing series %s", metric)
		}
		if got := *s.Points[0].Value; got != want {
			t.Fatalf("%s = %v, want %v", metric, got, want)
		}
		if *s.Type != datadogV2.METRICINTAKETYPE_GAUGE {
			t.Fatalf("%s type = %v, want GAUGE", metric, *s.Type)
		}
	}
}

func TestFlush_BaseTagsOnEverySeries(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	b.IncCounter("rows.inserted", 7)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	payload, _ := fake.last()
	for _, s := range payload.Series {
		if !containsTag(s.Tags, "job:retaildw-test") {
			t.Fatalf("series %s missing job tag: %v", s.Metric, s.Tags)
		}
		if !containsPrefix(s.Tags, "env:") {
			t.Fatalf("series %s missing env tag: %v", s.Metric, s.Tags)
		}
	}
}

func TestFlush_SubmitErrorPropagatesAndDropsBuffer(t *testing.T) {
	fake := &fakeSubmitter{err: errors.New("intake unavailable")}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	b.IncCounter("rows.read", 1)
	if err := b.Flush(); err == nil {
		t.Fatalf("expected submit error")
	}

	// Failed observations are dropped, not retried.
	fake.err = nil
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("expected buffers dropped after failed flush, got %d submissions", fake.count())
	}
}

func TestClose_FlushesTail(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.ObserveDuration("stage.load", 250*time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("Close did not flush buffered metrics")
	}
}

func TestIncCounter_NonPositiveDeltaIgnored(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)
	defer func() { _ = b.Close() }()

	b.IncCounter("rows.read", 0)
	b.IncCounter("rows.read", -4)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if fake.count() != 0 {
		t.Fatalf("non-positive deltas must not buffer anything")
	}
}

func TestBufferKey_TagOrderInsensitive(t *testing.T) {
	a := bufferKey("rows.read", []string{"b:2", "a:1"})
	bk := bufferKey("rows.read", []string{"a:1", "b:2"})
	if a != bk {
		t.Fatalf("tag order split the buffer: %q vs %q", a, bk)
	}

	name, tags := splitBufferKey(a)
	if name != "rows.read" {
		t.Fatalf("name = %q", name)
	}
	sort.Strings(tags)
	if strings.Join(tags, ",") != "a:1,b:2" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentileNearestRank(sorted, 0.50); got != 5 {
		t.Fatalf("p50 = %v, want 5", got)
	}
	if got := percentileNearestRank(sorted, 0.95); got != 10 {
		t.Fatalf("p95 = %v, want 10", got)
	}
	if got := percentileNearestRank(nil, 0.50); got != 0 {
		t.Fatalf("empty input must yield 0, got %v", got)
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func containsPrefix(tags []string, prefix string) bool {
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}
