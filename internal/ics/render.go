// Package ics serializes calendar events into iCalendar payloads that phones
// and desktop calendar apps can import, and reads such payloads back.
package ics

import (
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"flyercal/internal/model"
)

const (
	// ContentType is the MIME type of a rendered payload.
	ContentType = "text/calendar; charset=utf-8"

	// TimestampLayout is the UTC basic format used for DTSTART/DTEND.
	TimestampLayout = "20060102T150405Z"

	DefaultProductID = "Gran Impacto"
	DefaultLang      = "ES"

	crlf = "\r\n"
)

// Options controls the calendar header and text handling.
type Options struct {
	// ProductID and Lang fill PRODID:-//<ProductID>//Event//<Lang>.
	ProductID string
	Lang      string

	// Strict rejects line breaks in text fields and escapes backslash,
	// semicolon and comma as RFC 5545 requires. Otherwise line breaks are
	// replaced by a single space and text is emitted unchanged.
	Strict bool
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.ProductID) == "" {
		o.ProductID = DefaultProductID
	}
	if strings.TrimSpace(o.Lang) == "" {
		o.Lang = DefaultLang
	}
	return o
}

// FormatTimestamp converts t to UTC and formats it as YYYYMMDDTHHMMSSZ.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Render produces the payload for a single event. The output always has
// exactly eleven CRLF-separated lines and is byte-identical for equal input.
func Render(ev model.CalendarEvent, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	if !ev.End.After(ev.Start) {
		return nil, &model.ValidationError{
			Field:  "end",
			Reason: "end must be after start",
			Err:    model.ErrNonPositiveDuration,
		}
	}

	summary, err := textValue("summary", ev.Summary, opts.Strict)
	if err != nil {
		return nil, err
	}
	description, err := textValue("description", ev.Description, opts.Strict)
	if err != nil {
		return nil, err
	}
	location, err := textValue("location", ev.Location, opts.Strict)
	if err != nil {
		return nil, err
	}
	productID, err := textValue("product_id", opts.ProductID, opts.Strict)
	if err != nil {
		return nil, err
	}
	lang, err := textValue("lang", opts.Lang, opts.Strict)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		property(string(ical.PropertyVersion), "2.0"),
		property(string(ical.PropertyProductId), "-//"+productID+"//Event//"+lang),
		"BEGIN:VEVENT",
		property(string(ical.ComponentPropertyDtStart), FormatTimestamp(ev.Start)),
		property(string(ical.ComponentPropertyDtEnd), FormatTimestamp(ev.End)),
		property(string(ical.ComponentPropertySummary), summary),
		property(string(ical.ComponentPropertyDescription), description),
		property(string(ical.ComponentPropertyLocation), location),
		"END:VEVENT",
		"END:VCALENDAR",
	}

	return []byte(strings.Join(lines, crlf)), nil
}

func property(name, value string) string {
	return name + ":" + value
}

var lineBreaks = regexp.MustCompile(`[\r\n\x{85}\x{2028}\x{2029}]+`)

var textEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`)

// textValue makes s safe to place on a single content line.
func textValue(field, s string, strict bool) (string, error) {
	if !strict {
		return lineBreaks.ReplaceAllString(s, " "), nil
	}
	if strings.ContainsAny(s, "\r\n\u0085\u2028\u2029") {
		return "", &model.ValidationError{Field: field, Err: model.ErrLineBreak}
	}
	return textEscaper.Replace(s), nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SuggestedFileName returns "evento-<event-id>.ics".
func SuggestedFileName(ev model.CalendarEvent) string {
	id := unsafeFileChars.ReplaceAllString(ev.EventID, "-")
	if id == "" {
		return "evento.ics"
	}
	return "evento-" + id + ".ics"
}

// FileName is SuggestedFileName, except that a site with a single event may
// use a fixed, configured name.
func FileName(ev model.CalendarEvent, total int, fixed string) string {
	if total == 1 && strings.TrimSpace(fixed) != "" {
		return fixed
	}
	return SuggestedFileName(ev)
}
