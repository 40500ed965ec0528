package web

import (
	"net/url"
	"time"

	"flyercal/internal/countdown"
	"flyercal/internal/model"
	"flyercal/internal/recur"
	"flyercal/internal/share"
)

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	Now             time.Time  `json:"now"`
	DisplayTimeZone string     `json:"display_timezone"`
}

type countdownResponse struct {
	EventID  string         `json:"event_id"`
	Target   time.Time      `json:"target"`
	TimeLeft model.TimeLeft `json:"time_left"`
}

type linksDTO struct {
	Calendar       string `json:"calendar"`
	GoogleCalendar string `json:"google_calendar"`
	WhatsApp       string `json:"whatsapp,omitempty"`
	Map            string `json:"map,omitempty"`
	Stream         string `json:"stream"`
}

// eventDTO is a JSON-friendly view of one event at a given instant.
type eventDTO struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle,omitempty"`
	Description string           `json:"description,omitempty"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	DisplayDate string           `json:"display_date"`
	Recurring   bool             `json:"recurring"`
	Location    string           `json:"location_name,omitempty"`
	Guests      []string         `json:"guests"`
	Image       string           `json:"image,omitempty"`
	TimeLeft    model.TimeLeft   `json:"time_left"`
	Units       []countdown.Unit `json:"units"`
	Links       linksDTO         `json:"links"`
	Share       share.Payload    `json:"share"`
}

func (s *Server) eventView(rec model.EventRecord, now time.Time) eventDTO {
	occ := recur.Occurrence(rec, now)
	tl := countdown.ComputeTimeLeft(occ.Start, now)

	guests := rec.Guests
	if guests == nil {
		guests = []string{}
	}

	dto := eventDTO{
		ID:          rec.ID,
		Title:       rec.Title,
		Subtitle:    rec.Subtitle,
		Description: rec.Description,
		Start:       occ.Start,
		DisplayDate: share.DisplayDate(occ.Start, s.loc),
		Recurring:   rec.Recurring(),
		Location:    rec.LocationName,
		Guests:      guests,
		Image:       s.slideImage(rec.Image),
		TimeLeft:    tl,
		Units:       countdown.Units(tl),
		Links: linksDTO{
			Calendar: "/api/events/" + url.PathEscape(rec.ID) + "/calendar.ics",
			WhatsApp: share.WhatsAppURL(s.cfg.WhatsApp.Number, s.cfg.WhatsApp.Message),
			Map:      rec.LocationMapURL,
			Stream:   "/api/events/" + url.PathEscape(rec.ID) + "/countdown/stream",
		},
		Share: share.NewPayload(rec, s.cfg.PublicURL),
	}

	// A bad default duration only costs the event its end time and Google
	// link; the rest of the view still renders.
	if ev, err := model.CalendarEventFor(occ, s.cfg.DefaultDuration); err == nil {
		dto.End = ev.End
		dto.Links.GoogleCalendar = share.GoogleCalendarURL(ev)
	}
	return dto
}
