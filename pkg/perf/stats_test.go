package perf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSummary(t *testing.T) {
	s := NewStats(0)
	for i := 1; i <= 100; i++ {
		s.Observe(context.Background(), &Report{
			Stages: []StageTiming{{Stage: "sign", Duration: time.Duration(i) * time.Millisecond}},
			Total:  time.Duration(i) * 2 * time.Millisecond,
		})
	}

	sum, ok := s.Summary("sign")
	require.True(t, ok)
	assert.Equal(t, 100, sum.Count)
	assert.Equal(t, time.Millisecond, sum.Min)
	assert.Equal(t, 100*time.Millisecond, sum.Max)
	assert.Equal(t, 50500*time.Microsecond, sum.Avg)
	assert.Equal(t, 50*time.Millisecond, sum.P50)
	assert.Equal(t, 99*time.Millisecond, sum.P99)

	total, ok := s.Summary("total")
	require.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, total.Max)

	_, ok = s.Summary("encode")
	assert.False(t, ok)
}

func TestStatsKeepsMostRecent(t *testing.T) {
	s := NewStats(3)
	for i := 1; i <= 5; i++ {
		s.Record("round", time.Duration(i)*time.Second)
	}
	sum, ok := s.Summary("round")
	require.True(t, ok)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 3*time.Second, sum.Min)
	assert.Equal(t, 5*time.Second, sum.Max)
}

func TestStatsSummariesOrder(t *testing.T) {
	s := NewStats(0)
	s.Record("round", time.Second)
	s.Observe(context.Background(), &Report{
		Stages: []StageTiming{
			{Stage: "transport", Duration: time.Millisecond},
			{Stage: "encode", Duration: time.Microsecond},
		},
		Total: 2 * time.Millisecond,
	})
	s.Record("alpha", time.Second)
	s.Observe(context.Background(), nil)

	var names []string
	for _, sum := range s.Summaries() {
		names = append(names, sum.Stage)
	}
	assert.Equal(t, []string{"encode", "transport", "total", "alpha", "round"}, names)
}

func TestStatsConcurrentObserve(t *testing.T) {
	s := NewStats(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Observe(context.Background(), &Report{Total: time.Millisecond})
			}
		}()
	}
	wg.Wait()
	sum, ok := s.Summary("total")
	require.True(t, ok)
	assert.Equal(t, 1600, sum.Count)
}
