// Package perf records per-stage latency of the order submission pipeline.
//
// A nil *Timer is valid and does nothing, so callers keep a single branch per
// stage boundary when profiling is off.
package perf

import (
	"strings"
	"time"
)

// Stage identifies a pipeline stage boundary.
type Stage uint8

const (
	StageResolve Stage = iota
	StageEncode
	StageNonce
	StageDigest
	StageSign
	StageEnvelope
	StageTransport
	StageClassify
	numStages
)

var stageNames = [numStages]string{
	StageResolve:   "resolve",
	StageEncode:    "encode",
	StageNonce:     "nonce",
	StageDigest:    "digest",
	StageSign:      "sign",
	StageEnvelope:  "envelope",
	StageTransport: "transport",
	StageClassify:  "classify",
}

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	out := make([]Stage, numStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

func (s Stage) String() string {
	if s < numStages {
		return stageNames[s]
	}
	return "unknown"
}

// ParseStage resolves a stage name; ok is false for unknown names.
func ParseStage(name string) (Stage, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), true
		}
	}
	return 0, false
}

// Timer takes monotonic marks at stage boundaries of one submission.
// It is not safe for concurrent use; each submission owns its timer.
type Timer struct {
	start     time.Time
	last      time.Time
	durations [numStages]time.Duration
	seen      uint16
	current   Stage
	now       func() time.Time
}

// NewTimer starts a timer at the current instant.
func NewTimer() *Timer {
	return newTimerWithClock(time.Now)
}

func newTimerWithClock(now func() time.Time) *Timer {
	t := now()
	return &Timer{start: t, last: t, now: now}
}

// Begin records that stage s is now running; used to attribute failures.
func (t *Timer) Begin(s Stage) {
	if t == nil {
		return
	}
	t.current = s
}

// Mark closes stage s, charging the time since the previous mark to it.
func (t *Timer) Mark(s Stage) {
	if t == nil {
		return
	}
	now := t.now()
	t.durations[s] += now.Sub(t.last)
	t.seen |= 1 << s
	t.last = now
	if s+1 < numStages {
		t.current = s + 1
	} else {
		t.current = s
	}
}

// Current returns the stage in progress.
func (t *Timer) Current() Stage {
	if t == nil {
		return 0
	}
	return t.current
}

// Elapsed returns time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return t.now().Sub(t.start)
}

// Report snapshots the marks taken so far. Returns nil for a nil timer.
func (t *Timer) Report() *Report {
	if t == nil {
		return nil
	}
	r := &Report{Total: t.last.Sub(t.start)}
	for i := Stage(0); i < numStages; i++ {
		if t.seen&(1<<i) == 0 {
			continue
		}
		r.Stages = append(r.Stages, StageTiming{Stage: i.String(), Duration: t.durations[i]})
	}
	return r
}
