package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{25 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d))
	}
}

func TestMetricsRecordAndSnapshot(t *testing.T) {
	m := NewMetrics()

	m.Record(QueryEvent{Query: "hit", Outcome: OutcomeHybrid, ResultCount: 5, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "miss", Outcome: OutcomeEmpty, ResultCount: 0, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "degraded", Outcome: OutcomeDegradedLexical, ResultCount: 2, Latency: 80 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.OutcomeCounts[OutcomeHybrid])
	assert.Equal(t, int64(1), snap.OutcomeCounts[OutcomeEmpty])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"miss"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.DegradedCount)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.InDelta(t, 33.3, snap.ZeroResultPercentage(), 0.1)
}

func TestMetricsDegradedCountExcludesRequestedSinglePath(t *testing.T) {
	m := NewMetrics()

	// Single-path outcomes the caller asked for are healthy.
	m.Record(QueryEvent{Query: "a", Outcome: OutcomeSemanticOnly, ResultCount: 3})
	m.Record(QueryEvent{Query: "b", Outcome: OutcomeLexicalOnly, ResultCount: 3})
	assert.Equal(t, int64(0), m.Snapshot().DegradedCount)

	m.Record(QueryEvent{Query: "c", Outcome: OutcomeDegradedLexical, ResultCount: 2})
	m.Record(QueryEvent{Query: "d", Outcome: OutcomeDegradedSemantic, ResultCount: 2})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.DegradedCount)
	assert.Equal(t, int64(1), snap.OutcomeCounts[OutcomeSemanticOnly])
	assert.Equal(t, int64(1), snap.OutcomeCounts[OutcomeDegradedLexical])
}

func TestMetricsZeroResultWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < zeroResultWindow+10; i++ {
		m.Record(QueryEvent{Query: fmt.Sprintf("q%03d", i), ResultCount: 0, Outcome: OutcomeEmpty})
	}

	snap := m.Snapshot()
	require.Len(t, snap.ZeroResultQueries, zeroResultWindow)
	// Oldest entries were evicted.
	assert.Equal(t, "q010", snap.ZeroResultQueries[0])
	assert.Equal(t, fmt.Sprintf("q%03d", zeroResultWindow+9), snap.ZeroResultQueries[zeroResultWindow-1])
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.Record(QueryEvent{Query: "q", Outcome: OutcomeHybrid, ResultCount: 1})
	m.Reset()

	snap := m.Snapshot()
	assert.Zero(t, snap.TotalQueries)
	assert.Empty(t, snap.ZeroResultQueries)
}

func TestMetricsConcurrentRecord(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Record(QueryEvent{Query: "q", Outcome: OutcomeHybrid, ResultCount: 1, Latency: time.Millisecond})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), m.Snapshot().TotalQueries)
}
