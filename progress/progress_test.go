package progress

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	values []float32
	infos  []string
}

func (r *recorder) fn(p float32, info string) {
	r.values = append(r.values, p)
	r.infos = append(r.infos, info)
}

func TestReporter_SubRanges(t *testing.T) {
	rec := &recorder{}
	root := NewReporter(rec.fn)

	train := root.Sub(0.1, 0.9)
	train.Report(0, "start")
	train.Report(0.5, "half")
	train.Report(1, "done")

	require.Len(t, rec.values, 3)
	assert.InDelta(t, 0.1, rec.values[0], 1e-6)
	assert.InDelta(t, 0.5, rec.values[1], 1e-6)
	assert.InDelta(t, 0.9, rec.values[2], 1e-6)
	assert.Equal(t, []string{"start", "half", "done"}, rec.infos)
}

func TestReporter_Monotonic(t *testing.T) {
	rec := &recorder{}
	root := NewReporter(rec.fn)

	root.Report(0.6, "a")
	root.Sub(0, 0.5).Report(1, "late phase from an earlier range")
	root.Report(0.4, "regression")
	root.Report(2, "overflow")

	for i := 1; i < len(rec.values); i++ {
		assert.GreaterOrEqual(t, rec.values[i], rec.values[i-1])
	}
	assert.InDelta(t, 1, rec.values[len(rec.values)-1], 1e-6)
}

func TestReporter_Step(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec.fn)
	for i := range 4 {
		r.Step(i+1, 4, "subspace")
	}
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1}, rec.values)

	r.Step(0, 0, "empty")
	assert.InDelta(t, 1, rec.values[len(rec.values)-1], 1e-6)
}

func TestReporter_NilSafe(t *testing.T) {
	var r *Reporter
	r.Report(0.5, "ignored")

	NewReporter(nil).Sub(0, 1).Report(1, "ignored")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fn := Logging(logger, time.Hour)
	fn(0.1, "first")
	fn(0.2, "throttled")
	fn(1, "final")

	out := buf.String()
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "throttled")
	assert.Contains(t, out, "final")

	assert.Nil(t, Logging(nil, time.Second))
}

func TestTee(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	fn := Tee(a.fn, nil, b.fn)
	fn(0.5, "x")
	assert.Len(t, a.values, 1)
	assert.Len(t, b.values, 1)

	assert.Nil(t, Tee(nil, nil))
}
