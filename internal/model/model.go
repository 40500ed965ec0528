package model

import (
	"strings"
	"time"
)

// DefaultDuration is the calendar export length used when neither the event
// nor the caller supplies one.
const DefaultDuration = 3 * time.Hour

// EventRecord is one entry of the configured event collection. Records are
// read-only once loaded; Start is always an absolute instant.
type EventRecord struct {
	ID       string
	Title    string
	Subtitle string

	Description string

	Start time.Time

	// Duration overrides DefaultDuration for calendar exports when positive.
	Duration time.Duration

	// RRule is an optional RFC 5545 recurrence rule (without DTSTART).
	RRule string

	LocationName   string
	LocationMapURL string

	Guests []string

	// Image is the slide shown for this event on the flyer page.
	Image string
}

// Recurring reports whether the record carries a recurrence rule.
func (r EventRecord) Recurring() bool {
	return strings.TrimSpace(r.RRule) != ""
}

// TimeLeft is a countdown breakdown. Hours, Minutes and Seconds are already
// reduced modulo their parent unit; Days is unbounded.
type TimeLeft struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TotalSeconds folds the breakdown back into a single number of seconds.
func (t TimeLeft) TotalSeconds() int64 {
	return int64(t.Days)*86400 + int64(t.Hours)*3600 + int64(t.Minutes)*60 + int64(t.Seconds)
}

func (t TimeLeft) IsZero() bool {
	return t == TimeLeft{}
}

// CalendarEvent is the export-ready view of an EventRecord.
type CalendarEvent struct {
	EventID     string
	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time
}

// NewCalendarEvent derives an export from rec lasting d. d must be positive.
func NewCalendarEvent(rec EventRecord, d time.Duration) (CalendarEvent, error) {
	if d <= 0 {
		return CalendarEvent{}, &ValidationError{
			Field:  "duration",
			Reason: d.String(),
			Err:    ErrNonPositiveDuration,
		}
	}

	return calendarEvent(rec, d), nil
}

// calendarEvent maps rec onto an export lasting d; d is known to be positive.
func calendarEvent(rec EventRecord, d time.Duration) CalendarEvent {
	desc := rec.Description
	if desc == "" {
		desc = rec.Subtitle
	}
	return CalendarEvent{
		EventID:     rec.ID,
		Summary:     rec.Title,
		Description: desc,
		Location:    rec.LocationName,
		Start:       rec.Start,
		End:         rec.Start.Add(d),
	}
}

// CalendarEventFor uses the record's own duration when positive and fallback
// otherwise.
func CalendarEventFor(rec EventRecord, fallback time.Duration) (CalendarEvent, error) {
	if rec.Duration > 0 {
		return NewCalendarEvent(rec, rec.Duration)
	}
	return NewCalendarEvent(rec, fallback)
}

// DefaultCalendarEvent is CalendarEventFor with DefaultDuration. It cannot
// fail: the duration it picks is always positive.
func DefaultCalendarEvent(rec EventRecord) CalendarEvent {
	d := rec.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	return calendarEvent(rec, d)
}

// ParseInstant parses an RFC 3339 timestamp with an explicit UTC offset.
// Naive local times are rejected so the countdown target is never ambiguous.
func ParseInstant(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, &ConfigurationError{Field: "date", Value: s, Err: ErrInvalidInstant}
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err == nil {
		return t, nil
	}

	// A well-formed date-time without offset gets a more precise error.
	if _, nerr := time.Parse("2006-01-02T15:04:05", v); nerr == nil {
		return time.Time{}, &ConfigurationError{Field: "date", Value: s, Err: ErrMissingOffset}
	}

	return time.Time{}, &ConfigurationError{Field: "date", Value: s, Err: ErrInvalidInstant}
}
