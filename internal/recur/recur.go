// Package recur resolves which occurrence of an event a countdown or a
// calendar export should target.
package recur

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "flyercal/internal/log"
	"flyercal/internal/model"
)

const defaultMaxOccurrences = 500

// Validate checks that rule parses as an RRULE. Empty rules are valid.
func Validate(rule string) error {
	if strings.TrimSpace(rule) == "" {
		return nil
	}
	if _, err := parseRule(rule, time.Now()); err != nil {
		return &model.ConfigurationError{Field: "rrule", Value: rule, Err: err}
	}
	return nil
}

// NextStart returns the start of the first occurrence at or after now.
//
// Non-recurring records always resolve to rec.Start, even once it has passed.
// A recurring record whose rule is exhausted resolves to its last occurrence,
// so the countdown clamps to zero instead of jumping back to DTSTART.
func NextStart(rec model.EventRecord, now time.Time) (time.Time, error) {
	if !rec.Recurring() {
		return rec.Start, nil
	}

	r, err := parseRule(rec.RRule, rec.Start)
	if err != nil {
		return rec.Start, err
	}

	next := r.After(now.In(rec.Start.Location()), true)
	if !next.IsZero() {
		return next, nil
	}

	last := r.Before(now.In(rec.Start.Location()), true)
	if last.IsZero() {
		return rec.Start, nil
	}
	return last, nil
}

// MustNextStart is NextStart for records already validated at load time.
// A rule that stops parsing is logged and the record's own start is used.
func MustNextStart(rec model.EventRecord, now time.Time) time.Time {
	t, err := NextStart(rec, now)
	if err != nil {
		appLog.Error("recur: failed to resolve next start", err, "event_id", rec.ID, "rrule", rec.RRule)
		return rec.Start
	}
	return t
}

// Occurrence returns rec re-anchored on the occurrence NextStart picks, ready
// for CalendarEvent derivation.
func Occurrence(rec model.EventRecord, now time.Time) model.EventRecord {
	out := rec
	out.Start = MustNextStart(rec, now)
	return out
}

// Between lists occurrence starts within [from, to]. max caps the result;
// zero means defaultMaxOccurrences.
func Between(rec model.EventRecord, from, to time.Time, max int) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New("recur: range end is before range start")
	}
	if max <= 0 {
		max = defaultMaxOccurrences
	}

	if !rec.Recurring() {
		if rec.Start.Before(from) || rec.Start.After(to) {
			return nil, nil
		}
		return []time.Time{rec.Start}, nil
	}

	r, err := parseRule(rec.RRule, rec.Start)
	if err != nil {
		return nil, err
	}

	loc := rec.Start.Location()
	times := r.Between(from.In(loc), to.In(loc), true)
	if len(times) > max {
		appLog.Warn("recur: truncated occurrences", "event_id", rec.ID, "cap", max, "found", len(times))
		times = times[:max]
	}
	return times, nil
}

func parseRule(rule string, dtstart time.Time) (*rrule.RRule, error) {
	s := strings.TrimSpace(rule)
	s = strings.TrimPrefix(s, "RRULE:")

	r, err := rrule.StrToRRule(s)
	if err != nil {
		return nil, fmt.Errorf("recur: parse rrule: %w", err)
	}
	r.DTStart(dtstart)
	return r, nil
}
