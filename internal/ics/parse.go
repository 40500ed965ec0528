package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "flyercal/internal/log"
	"flyercal/internal/model"
)

// Parsed is the result of reading a payload back.
type Parsed struct {
	ProductID string
	Version   string
	Events    []model.CalendarEvent
}

// Parse reads an iCalendar payload with golang-ical. It is used to check that
// exported files import cleanly; events missing DTSTART or DTEND are skipped
// and logged, the rest are returned in document order.
func Parse(payload []byte) (Parsed, error) {
	var out Parsed
	if len(bytes.TrimSpace(payload)) == 0 {
		return out, errors.New("ics: empty payload")
	}

	// Render omits the final CRLF; the parser wants a terminated last line.
	if !bytes.HasSuffix(payload, []byte(crlf)) {
		payload = append(append([]byte{}, payload...), crlf...)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("ics: parse calendar: %w", err)
	}

	for _, p := range cal.CalendarProperties {
		switch p.IANAToken {
		case string(ical.PropertyProductId):
			out.ProductID = p.Value
		case string(ical.PropertyVersion):
			out.Version = p.Value
		}
	}

	for i, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics: skipping vevent", "index", i, "err", perr)
			continue
		}
		out.Events = append(out.Events, ev)
	}

	return out, nil
}

func parseVEvent(ve *ical.VEvent) (model.CalendarEvent, error) {
	var ev model.CalendarEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.EventID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return ev, fmt.Errorf("DTEND: %w", err)
	}
	ev.Start = start
	ev.End = end

	return ev, nil
}
