package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"

	"flyercal/internal/config"
	"flyercal/internal/countdown"
	"flyercal/internal/ics"
	appLog "flyercal/internal/log"
	"flyercal/internal/model"
	"flyercal/internal/recur"
)

const (
	payloadCacheTTL     = 5 * time.Minute
	payloadCacheCleanup = 10 * time.Minute
)

// Server serves the flyer page and its JSON/ICS endpoints.
type Server struct {
	cfg     *config.Config
	records []model.EventRecord
	byID    map[string]int
	loc     *time.Location

	router *mux.Router
	ticker *countdown.Ticker
	now    func() time.Time

	// Rendered ICS payloads keyed by event, occurrence and mode.
	payloads *gocache.Cache

	page   *pageRenderer
	static fs.FS
}

type Option func(*Server)

// WithClock replaces time.Now for countdowns computed by the server.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer constructs a Server over a validated configuration. ticker drives
// the live countdown stream and stays owned by the caller.
func NewServer(cfg *config.Config, ticker *countdown.Ticker, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("web: config is nil")
	}
	if ticker == nil {
		return nil, errors.New("web: ticker is nil")
	}

	records, err := cfg.Records()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		records:  records,
		byID:     make(map[string]int, len(records)),
		loc:      cfg.Location(),
		router:   mux.NewRouter(),
		ticker:   ticker,
		now:      time.Now,
		payloads: gocache.New(payloadCacheTTL, payloadCacheCleanup),
	}
	for i, r := range records {
		s.byID[r.ID] = i
	}
	for _, opt := range opts {
		opt(s)
	}

	page, err := newPageRenderer()
	if err != nil {
		return nil, err
	}
	s.page = page

	static, err := s.staticFiles()
	if err != nil {
		appLog.Error("failed to initialize static filesystem", err)
	} else {
		s.static = static
	}

	s.registerRoutes()
	return s, nil
}

// Handler returns the root http.Handler, including request logging and
// Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return loggingMiddleware(h)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.handleEvent).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/countdown", s.handleCountdown).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/countdown/stream", s.handleCountdownStream).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/calendar.ics", s.handleCalendar).Methods(http.MethodGet)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", s.staticHandler()))
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
}

// Start serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "events", len(s.records))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="flyercal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// lookup resolves {id} or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (model.EventRecord, bool) {
	id := mux.Vars(r)["id"]
	i, ok := s.byID[id]
	if !ok {
		writeError(w, http.StatusNotFound, "event not found: "+id)
		return model.EventRecord{}, false
	}
	return s.records[i], true
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	out := make([]eventDTO, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, s.eventView(rec, now))
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          out,
		Now:             now,
		DisplayTimeZone: s.loc.String(),
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.eventView(rec, s.now()))
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	now := s.now()
	target := recur.MustNextStart(rec, now)
	writeJSON(w, http.StatusOK, countdownResponse{
		EventID:  rec.ID,
		Target:   target,
		TimeLeft: countdown.ComputeTimeLeft(target, now),
	})
}

// handleCountdownStream pushes one TimeLeft per tick as Server-Sent Events
// until the client disconnects or the countdown reaches zero.
func (s *Server) handleCountdownStream(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Latest value wins; a slow client never blocks the ticker.
	updates := make(chan model.TimeLeft, 1)
	publish := func(tl model.TimeLeft) {
		for {
			select {
			case updates <- tl:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}

	target := recur.MustNextStart(rec, s.now())
	watch := s.ticker.WatchUntilZero(target, publish)
	defer watch.Stop()

	send := func(tl model.TimeLeft) bool {
		data, err := json.Marshal(tl)
		if err != nil {
			appLog.Error("countdown stream: marshal failed", err, "event_id", rec.ID)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case tl := <-updates:
			if !send(tl) {
				return
			}
		case <-watch.Done():
			select {
			case tl := <-updates:
				send(tl)
			default:
			}
			_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
			flusher.Flush()
			return
		}
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	strict := s.cfg.StrictICS
	if v := r.URL.Query().Get("strict"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			strict = b
		}
	}

	payload, ev, err := s.renderCalendar(rec, s.now(), strict)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusUnprocessableEntity, vErr.Error())
			return
		}
		appLog.Error("calendar export failed", err, "event_id", rec.ID)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	etag := ics.ETag(payload)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	name := ics.FileName(ev, len(s.records), s.cfg.ICSFileName)
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// renderCalendar returns the payload for the record's next occurrence,
// serving repeated downloads from the cache.
func (s *Server) renderCalendar(rec model.EventRecord, now time.Time, strict bool) ([]byte, model.CalendarEvent, error) {
	occ := recur.Occurrence(rec, now)
	ev, err := model.CalendarEventFor(occ, s.cfg.DefaultDuration)
	if err != nil {
		return nil, ev, err
	}

	key := fmt.Sprintf("ics:%s:%d:%t", rec.ID, occ.Start.Unix(), strict)
	if cached, found := s.payloads.Get(key); found {
		return cached.([]byte), ev, nil
	}

	payload, err := ics.Render(ev, ics.Options{
		ProductID: s.cfg.ProductID,
		Lang:      s.cfg.Lang,
		Strict:    strict,
	})
	if err != nil {
		return nil, ev, err
	}
	s.payloads.Set(key, payload, gocache.DefaultExpiration)
	return payload, ev, nil
}

// etagMatches reports whether an If-None-Match header value matches etag.
// The header may list several tags or be "*"; comparison is weak.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
