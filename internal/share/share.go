// Package share builds the outward links of the flyer: WhatsApp RSVP,
// Google Calendar, Web Share payloads and the human display date.
//
// Nothing here reads ambient state; the page URL and clock-free instants are
// always passed in.
package share

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"flyercal/internal/ics"
	"flyercal/internal/model"
)

const shareSuffix = "¡Te espero!"

// WhatsAppURL returns a wa.me deep link that opens a chat with number and a
// prefilled message. An empty number yields an empty string.
func WhatsAppURL(number, message string) string {
	number = digitsOnly(number)
	if number == "" {
		return ""
	}
	u := "https://wa.me/" + number
	if message != "" {
		u += "?text=" + url.QueryEscape(message)
	}
	return u
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GoogleCalendarURL returns a Google Calendar "create event" link prefilled
// with the same data as the ICS export.
func GoogleCalendarURL(ev model.CalendarEvent) string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", ev.Summary)
	q.Set("dates", ics.FormatTimestamp(ev.Start)+"/"+ics.FormatTimestamp(ev.End))
	if ev.Description != "" {
		q.Set("details", ev.Description)
	}
	if ev.Location != "" {
		q.Set("location", ev.Location)
	}
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

// ShareText is the message used by the share sheet:
// "<title> - <subtitle>. ¡Te espero!".
func ShareText(rec model.EventRecord) string {
	if rec.Subtitle == "" {
		return rec.Title + ". " + shareSuffix
	}
	return fmt.Sprintf("%s - %s. %s", rec.Title, rec.Subtitle, shareSuffix)
}

// Payload is what a page hands to the Web Share API, or copies to the
// clipboard (URL only) when sharing is unavailable.
type Payload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

func NewPayload(rec model.EventRecord, pageURL string) Payload {
	return Payload{
		Title: rec.Title,
		Text:  ShareText(rec),
		URL:   pageURL,
	}
}

var weekdays = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var months = [...]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

// DisplayDate formats t in loc as "Sábado 29 Nov · 17 hs". Minutes are shown
// only when non-zero ("19:30 hs").
func DisplayDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)

	hour := fmt.Sprintf("%d", lt.Hour())
	if lt.Minute() != 0 {
		hour = fmt.Sprintf("%d:%02d", lt.Hour(), lt.Minute())
	}
	return fmt.Sprintf("%s %d %s · %s hs", weekdays[lt.Weekday()], lt.Day(), months[lt.Month()-1], hour)
}
