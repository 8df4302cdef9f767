package perf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleReport() *Report {
	return &Report{
		Stages: []StageTiming{
			{Stage: "encode", Duration: 40 * time.Microsecond},
			{Stage: "sign", Duration: 310 * time.Microsecond},
		},
		Total: 9800 * time.Microsecond,
	}
}

func TestReportString(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, "encode=0.04ms sign=0.31ms total=9.80ms", r.String())

	r.Failed = "transport"
	assert.Equal(t, "encode=0.04ms sign=0.31ms total=9.80ms failed=transport", r.String())

	var nilReport *Report
	assert.Empty(t, nilReport.String())
	_, ok := nilReport.Get(StageEncode)
	assert.False(t, ok)
}

func TestMillis(t *testing.T) {
	assert.InDelta(t, 1.5, Millis(1500*time.Microsecond), 1e-9)
}

func TestMultiSinkFansOut(t *testing.T) {
	var got []string
	collect := func(tag string) Sink {
		return SinkFunc(func(_ context.Context, r *Report) {
			got = append(got, tag+":"+r.String())
		})
	}
	sink := MultiSink{collect("a"), nil, collect("b"), LogSink{}}
	sink.Observe(context.Background(), sampleReport())

	assert.Equal(t, []string{
		"a:encode=0.04ms sign=0.31ms total=9.80ms",
		"b:encode=0.04ms sign=0.31ms total=9.80ms",
	}, got)
	assert.NotPanics(t, func() { LogSink{}.Observe(context.Background(), nil) })
}
