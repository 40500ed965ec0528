package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"time"

	"flyercal/internal/countdown"
	appLog "flyercal/internal/log"
	"flyercal/internal/share"
)

// embeddedStatic holds the stylesheet, the page script and default slides.
//
//go:embed all:static
var embeddedStatic embed.FS

//go:embed templates/flyer.html
var flyerTemplate string

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	tmpl, err := template.New("flyer").Funcs(template.FuncMap{
		"pad": countdown.Pad,
	}).Parse(flyerTemplate)
	if err != nil {
		return nil, fmt.Errorf("web: parse flyer template: %w", err)
	}
	return &pageRenderer{tmpl: tmpl}, nil
}

// pageData is everything the flyer template needs. Countdown values are
// pre-rendered so the page is correct before the stream connects.
type pageData struct {
	Title       string
	Header      string
	Events      []eventDTO
	WhatsAppURL string
	PublicURL   string
	TickMillis  int64
	GeneratedAt time.Time
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	data := pageData{
		Header:      countdown.Header,
		WhatsAppURL: share.WhatsAppURL(s.cfg.WhatsApp.Number, s.cfg.WhatsApp.Message),
		PublicURL:   s.cfg.PublicURL,
		TickMillis:  s.ticker.Interval().Milliseconds(),
		GeneratedAt: now,
	}
	for _, rec := range s.records {
		data.Events = append(data.Events, s.eventView(rec, now))
	}
	if len(data.Events) > 0 {
		data.Title = data.Events[0].Title
	}

	// Render to a buffer so a template error never leaves a half page.
	var buf bytes.Buffer
	if err := s.page.tmpl.Execute(&buf, data); err != nil {
		appLog.Error("flyer page render failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// defaultSlide is shown for events without an image or whose image is not
// present in the static filesystem.
const defaultSlide = "slide-default.svg"

// staticFiles returns the embedded assets, overlaid by cfg.StaticDir when set.
func (s *Server) staticFiles() (fs.FS, error) {
	embedded, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return nil, err
	}
	if s.cfg.StaticDir != "" {
		if info, err := os.Stat(s.cfg.StaticDir); err == nil && info.IsDir() {
			appLog.Info("serving static files from disk", "dir", s.cfg.StaticDir)
			return layeredFS{primary: os.DirFS(s.cfg.StaticDir), fallback: embedded}, nil
		}
		appLog.Warn("static dir unavailable; using embedded assets", "dir", s.cfg.StaticDir)
	}
	return embedded, nil
}

// layeredFS opens from primary and falls back to the embedded assets, so a
// slides directory on disk does not have to carry the stylesheet and script.
type layeredFS struct {
	primary  fs.FS
	fallback fs.FS
}

func (l layeredFS) Open(name string) (fs.File, error) {
	f, err := l.primary.Open(name)
	if err == nil {
		return f, nil
	}
	return l.fallback.Open(name)
}

func (s *Server) staticHandler() http.Handler {
	if s.static == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.FileServer(http.FS(s.static))
}

// slideImage resolves an event image to a file that is actually served.
func (s *Server) slideImage(name string) string {
	if name == "" || s.static == nil {
		return defaultSlide
	}
	if _, err := fs.Stat(s.static, name); err != nil {
		appLog.Debug("slide image not found; using default", "image", name)
		return defaultSlide
	}
	return name
}
