// Package countdown computes the time remaining until an event and drives
// periodic recomputation for live displays.
//
// ComputeTimeLeft is a pure function of two absolute instants. It never keeps a
// running counter, so it can be called at irregular intervals, after clock
// jumps, or from many goroutines at once and always reports the true delta.
package countdown

import (
	"fmt"
	"time"

	"flyercal/internal/model"
	"flyercal/internal/recur"
)

const (
	msPerSecond = 1_000
	msPerMinute = 60_000
	msPerHour   = 3_600_000
	msPerDay    = 86_400_000
)

// ComputeTimeLeft breaks target-now down into days/hours/minutes/seconds.
// Any non-positive delta yields the zero TimeLeft.
func ComputeTimeLeft(target, now time.Time) model.TimeLeft {
	diff := target.Sub(now).Milliseconds()
	if diff <= 0 {
		return model.TimeLeft{}
	}

	return model.TimeLeft{
		Days:    int(diff / msPerDay),
		Hours:   int(diff / msPerHour % 24),
		Minutes: int(diff / msPerMinute % 60),
		Seconds: int(diff / msPerSecond % 60),
	}
}

// ForRecord resolves the record's next occurrence and counts down to it.
func ForRecord(rec model.EventRecord, now time.Time) model.TimeLeft {
	return ComputeTimeLeft(recur.MustNextStart(rec, now), now)
}

// Unit is one labelled box of the countdown display.
type Unit struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Header is the caption shown above the countdown units.
const Header = "Faltan"

// Units returns the display units in order with the fixed Spanish labels.
func Units(tl model.TimeLeft) []Unit {
	return []Unit{
		{Value: tl.Days, Label: "Días"},
		{Value: tl.Hours, Label: "Horas"},
		{Value: tl.Minutes, Label: "Min"},
		{Value: tl.Seconds, Label: "Seg"},
	}
}

// Pad renders a unit value with at least two digits.
func Pad(v int) string {
	return fmt.Sprintf("%02d", v)
}

// Format renders tl as "01 Días 02 Horas 03 Min 04 Seg".
func Format(tl model.TimeLeft) string {
	units := Units(tl)
	out := ""
	for i, u := range units {
		if i > 0 {
			out += " "
		}
		out += Pad(u.Value) + " " + u.Label
	}
	return out
}
