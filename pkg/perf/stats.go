package perf

import (
	"context"
	"sort"
	"sync"
	"time"
)

const totalKey = "total"

// Summary aggregates samples of a single stage.
type Summary struct {
	Stage string
	Count int
	Min   time.Duration
	Avg   time.Duration
	Max   time.Duration
	P50   time.Duration
	P99   time.Duration
}

// Stats collects reports and summarises them per stage. Safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	maxKeep int
	samples map[string][]time.Duration
}

// NewStats keeps at most maxKeep samples per stage (0 keeps everything).
func NewStats(maxKeep int) *Stats {
	return &Stats{maxKeep: maxKeep, samples: make(map[string][]time.Duration)}
}

// Observe implements Sink.
func (s *Stats) Observe(_ context.Context, r *Report) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range r.Stages {
		s.add(st.Stage, st.Duration)
	}
	s.add(totalKey, r.Total)
}

// Record adds a free-form sample under name, e.g. wall-clock of a whole round.
func (s *Stats) Record(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(name, d)
}

func (s *Stats) add(name string, d time.Duration) {
	list := append(s.samples[name], d)
	if s.maxKeep > 0 && len(list) > s.maxKeep {
		list = list[len(list)-s.maxKeep:]
	}
	s.samples[name] = list
}

// Summary returns aggregates for name; ok is false when nothing was recorded.
func (s *Stats) Summary(name string) (Summary, bool) {
	s.mu.Lock()
	samples := append([]time.Duration(nil), s.samples[name]...)
	s.mu.Unlock()
	if len(samples) == 0 {
		return Summary{Stage: name}, false
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return Summary{
		Stage: name,
		Count: len(samples),
		Min:   samples[0],
		Avg:   sum / time.Duration(len(samples)),
		Max:   samples[len(samples)-1],
		P50:   percentile(samples, 0.50),
		P99:   percentile(samples, 0.99),
	}, true
}

// Summaries returns every recorded stage in pipeline order, then total, then custom names.
func (s *Stats) Summaries() []Summary {
	s.mu.Lock()
	names := make([]string, 0, len(s.samples))
	for name := range s.samples {
		names = append(names, name)
	}
	s.mu.Unlock()

	rank := func(name string) int {
		if st, ok := ParseStage(name); ok {
			return int(st)
		}
		if name == totalKey {
			return int(numStages)
		}
		return int(numStages) + 1
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		if sum, ok := s.Summary(name); ok {
			out = append(out, sum)
		}
	}
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
