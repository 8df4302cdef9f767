package perf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// StageTiming is the duration charged to one stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Report holds the stage durations of one submission.
type Report struct {
	Stages []StageTiming `json:"stages"`
	Total  time.Duration `json:"total_ns"`
	Failed string        `json:"failed_stage,omitempty"`
}

// Get returns the duration recorded for stage s.
func (r *Report) Get(s Stage) (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	name := s.String()
	for _, st := range r.Stages {
		if st.Stage == name {
			return st.Duration, true
		}
	}
	return 0, false
}

// String renders the report as a single line, e.g. "encode=0.04ms sign=0.31ms total=9.80ms".
func (r *Report) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, st := range r.Stages {
		fmt.Fprintf(&b, "%s=%.2fms ", st.Stage, Millis(st.Duration))
	}
	fmt.Fprintf(&b, "total=%.2fms", Millis(r.Total))
	if r.Failed != "" {
		fmt.Fprintf(&b, " failed=%s", r.Failed)
	}
	return b.String()
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Sink receives finished reports.
type Sink interface {
	Observe(ctx context.Context, r *Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r *Report)

// Observe calls f.
func (f SinkFunc) Observe(ctx context.Context, r *Report) { f(ctx, r) }

// LogSink writes each report as a [PERF] line through logx.
type LogSink struct{}

// Observe implements Sink.
func (LogSink) Observe(ctx context.Context, r *Report) {
	if r == nil {
		return
	}
	logx.WithContext(ctx).Infof("[PERF] %s", r.String())
}

// MultiSink fans a report out to several sinks.
type MultiSink []Sink

// Observe implements Sink.
func (m MultiSink) Observe(ctx context.Context, r *Report) {
	for _, s := range m {
		if s != nil {
			s.Observe(ctx, r)
		}
	}
}
