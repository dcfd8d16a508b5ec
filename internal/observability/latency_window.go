package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type EndpointLatency struct {
	Endpoint string  `json:"endpoint"`
	Samples  int     `json:"samples"`
	LastMS   float64 `json:"last_ms"`
	AvgMS    float64 `json:"avg_ms"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
}

type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// LatencySnapshot summarises the most recent provider calls per endpoint.
type LatencySnapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	WindowSize  int               `json:"window_size"`
	Endpoints   []EndpointLatency `json:"endpoints"`
	Failures    []OutcomeCount    `json:"failures,omitempty"`
}

// latencyWindow keeps a fixed ring of samples per endpoint so percentiles
// reflect recent traffic rather than process lifetime.
type latencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	endpoints  map[string]*latencyBuffer
	failures   map[string]int
}

type latencyBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func newLatencyWindow(maxSamples int) *latencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &latencyWindow{
		maxSamples: maxSamples,
		endpoints:  make(map[string]*latencyBuffer),
		failures:   make(map[string]int),
	}
}

func (w *latencyWindow) Observe(endpoint string, ms float64) {
	if endpoint == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.endpoints[endpoint]
	if !ok {
		buf = &latencyBuffer{values: make([]float64, w.maxSamples)}
		w.endpoints[endpoint] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *latencyWindow) ObserveFailure(outcome string) {
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[outcome]++
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.endpoints))
	for endpoint := range w.endpoints {
		keys = append(keys, endpoint)
	}
	sort.Strings(keys)

	endpoints := make([]EndpointLatency, 0, len(keys))
	for _, endpoint := range keys {
		buf := w.endpoints[endpoint]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		endpoints = append(endpoints, EndpointLatency{
			Endpoint: endpoint,
			Samples:  n,
			LastMS:   round2(buf.last),
			AvgMS:    round2(sum / float64(n)),
			P50MS:    round2(quantile(samples, 0.50)),
			P95MS:    round2(quantile(samples, 0.95)),
			P99MS:    round2(quantile(samples, 0.99)),
		})
	}

	outcomes := make([]string, 0, len(w.failures))
	for outcome := range w.failures {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	failures := make([]OutcomeCount, 0, len(outcomes))
	for _, outcome := range outcomes {
		failures = append(failures, OutcomeCount{Outcome: outcome, Count: w.failures[outcome]})
	}

	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Endpoints:   endpoints,
		Failures:    failures,
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
