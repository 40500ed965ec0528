package countdown_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyercal/internal/countdown"
	"flyercal/internal/model"
)

func TestComputeTimeLeft(t *testing.T) {
	now := time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		target time.Time
		want   model.TimeLeft
	}{
		{"target equals now", now, model.TimeLeft{}},
		{"target in the past", now.Add(-time.Hour), model.TimeLeft{}},
		{"sub-second ahead", now.Add(999 * time.Millisecond), model.TimeLeft{}},
		{"one second ahead", now.Add(time.Second), model.TimeLeft{Seconds: 1}},
		{"one of each unit", now.Add(90061 * time.Second), model.TimeLeft{Days: 1, Hours: 1, Minutes: 1, Seconds: 1}},
		{"rounding down", now.Add(59*time.Minute + 59*time.Second + 999*time.Millisecond), model.TimeLeft{Minutes: 59, Seconds: 59}},
		{"many days", now.Add(400*24*time.Hour + 23*time.Hour), model.TimeLeft{Days: 400, Hours: 23}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countdown.ComputeTimeLeft(tt.target, now))
		})
	}
}

func TestComputeTimeLeftZeroAfterTarget(t *testing.T) {
	target := time.Date(2025, 11, 29, 20, 0, 0, 0, time.UTC)
	for _, d := range []time.Duration{0, time.Nanosecond, time.Second, 3 * time.Hour, 9000 * time.Hour} {
		assert.True(t, countdown.ComputeTimeLeft(target, target.Add(d)).IsZero(), "now = target + %s", d)
	}
}

func TestComputeTimeLeftMonotonic(t *testing.T) {
	target := time.Date(2025, 11, 30, 23, 0, 0, 0, time.UTC)
	now := target.Add(-50 * time.Hour)

	prev := countdown.ComputeTimeLeft(target, now).TotalSeconds()
	// Irregular steps, including sub-second ones.
	steps := []time.Duration{time.Millisecond, 700 * time.Millisecond, time.Second, 37 * time.Second, 13 * time.Minute, 5 * time.Hour}
	for i := 0; now.Before(target.Add(time.Hour)); i++ {
		now = now.Add(steps[i%len(steps)])
		cur := countdown.ComputeTimeLeft(target, now).TotalSeconds()
		require.LessOrEqual(t, cur, prev, "countdown increased at %s", now)
		prev = cur
	}
	assert.Zero(t, prev)
}

func TestComputeTimeLeftOffsets(t *testing.T) {
	// event-2 is exactly one day out, across differing zone representations.
	target, err := model.ParseInstant("2025-11-29T17:00:00-03:00")
	require.NoError(t, err)
	now, err := model.ParseInstant("2025-11-28T17:00:00-03:00")
	require.NoError(t, err)

	assert.Equal(t, model.TimeLeft{Days: 1}, countdown.ComputeTimeLeft(target, now))
	assert.Equal(t, model.TimeLeft{Days: 1}, countdown.ComputeTimeLeft(target, now.UTC()))
}

func TestForRecord(t *testing.T) {
	art := time.FixedZone("ART", -3*3600)
	start := time.Date(2025, 11, 28, 19, 0, 0, 0, art)

	single := model.EventRecord{ID: "event-1", Start: start}
	assert.Equal(t, model.TimeLeft{Hours: 2}, countdown.ForRecord(single, start.Add(-2*time.Hour)))
	assert.True(t, countdown.ForRecord(single, start.Add(time.Hour)).IsZero())

	weekly := model.EventRecord{ID: "weekly", Start: start, RRule: "FREQ=WEEKLY"}
	assert.Equal(t, model.TimeLeft{Days: 6, Hours: 23}, countdown.ForRecord(weekly, start.Add(time.Hour)))
}

func TestFormat(t *testing.T) {
	tl := model.TimeLeft{Days: 1, Hours: 2, Minutes: 3, Seconds: 45}
	assert.Equal(t, "01 Días 02 Horas 03 Min 45 Seg", countdown.Format(tl))
	assert.Equal(t, "00 Días 00 Horas 00 Min 00 Seg", countdown.Format(model.TimeLeft{}))
	assert.Equal(t, "123", countdown.Pad(123))

	units := countdown.Units(tl)
	require.Len(t, units, 4)
	assert.Equal(t, countdown.Unit{Value: 1, Label: "Días"}, units[0])
	assert.Equal(t, countdown.Unit{Value: 45, Label: "Seg"}, units[3])
}
