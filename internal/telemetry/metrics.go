// Package telemetry tracks retrieval quality metrics locally: path
// outcomes, latency distribution and zero-result queries. Nothing is
// reported externally.
package telemetry

import (
	"sync"
	"time"
)

// PathOutcome classifies how a retrieval call resolved.
type PathOutcome string

const (
	// OutcomeHybrid means both paths contributed to a fused result.
	OutcomeHybrid PathOutcome = "hybrid"

	// OutcomeLexicalOnly and OutcomeSemanticOnly mean the caller asked
	// for a single path and it succeeded.
	OutcomeLexicalOnly  PathOutcome = "lexical_only"
	OutcomeSemanticOnly PathOutcome = "semantic_only"

	// OutcomeDegradedLexical and OutcomeDegradedSemantic mean a hybrid
	// call lost one path and served results from the survivor.
	OutcomeDegradedLexical  PathOutcome = "degraded_lexical"
	OutcomeDegradedSemantic PathOutcome = "degraded_semantic"

	// OutcomeEmpty means no path produced results.
	OutcomeEmpty PathOutcome = "empty"
)

// LatencyBucket is one histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one retrieval call for recording.
type QueryEvent struct {
	Query       string
	Outcome     PathOutcome
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// Snapshot is an immutable view of recorded metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	OutcomeCounts       map[PathOutcome]int64   `json:"outcome_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	DegradedCount       int64                   `json:"degraded_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// zeroResultWindow bounds the retained zero-result query samples.
const zeroResultWindow = 50

// Metrics accumulates retrieval telemetry. Safe for concurrent use.
type Metrics struct {
	mu sync.RWMutex

	total       int64
	outcomes    map[PathOutcome]int64
	latency     map[LatencyBucket]int64
	zeroCount   int64
	zeroQueries *ring[string]
	since       time.Time
}

// NewMetrics creates an empty metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:    make(map[PathOutcome]int64),
		latency:     make(map[LatencyBucket]int64),
		zeroQueries: newRing[string](zeroResultWindow),
		since:       time.Now(),
	}
}

// Record adds one query event.
func (m *Metrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.outcomes[e.Outcome]++
	m.latency[LatencyToBucket(e.Latency)]++
	if e.ResultCount == 0 {
		m.zeroCount++
		m.zeroQueries.add(e.Query)
	}
}

// Snapshot returns a copy of the current state.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	outcomes := make(map[PathOutcome]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	latency := make(map[LatencyBucket]int64, len(m.latency))
	for k, v := range m.latency {
		latency[k] = v
	}

	// Requested single-path outcomes are healthy and do not count here.
	degraded := outcomes[OutcomeDegradedLexical] + outcomes[OutcomeDegradedSemantic]

	return &Snapshot{
		TotalQueries:        m.total,
		OutcomeCounts:       outcomes,
		LatencyDistribution: latency,
		ZeroResultCount:     m.zeroCount,
		ZeroResultQueries:   m.zeroQueries.items(),
		DegradedCount:       degraded,
		Since:               m.since,
	}
}

// Reset clears all recorded data.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.outcomes = make(map[PathOutcome]int64)
	m.latency = make(map[LatencyBucket]int64)
	m.zeroCount = 0
	m.zeroQueries.clear()
	m.since = time.Now()
}

// ring is a fixed-capacity FIFO buffer.
type ring[T any] struct {
	buf  []T
	head int
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) add(item T) {
	r.buf[r.head] = item
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// items returns the contents oldest first.
func (r *ring[T]) items() []T {
	if r.size == 0 {
		return []T{}
	}
	out := make([]T, r.size)
	if r.size < len(r.buf) {
		copy(out, r.buf[:r.size])
	} else {
		copy(out, r.buf[r.head:])
		copy(out[len(r.buf)-r.head:], r.buf[:r.head])
	}
	return out
}

func (r *ring[T]) clear() {
	r.head = 0
	r.size = 0
}
