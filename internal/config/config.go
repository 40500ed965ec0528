package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "flyercal/internal/log"
	"flyercal/internal/model"
	"flyercal/internal/recur"
)

// EventConfig is one event entry as written in the YAML file. Date stays a
// string here; Records turns it into an absolute instant.
type EventConfig struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Title       string `yaml:"title" json:"title" validate:"required"`
	Subtitle    string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Date is an RFC 3339 timestamp with offset, e.g. 2025-11-29T17:00:00-03:00.
	Date string `yaml:"date" json:"date" validate:"required"`

	// Duration overrides DefaultDuration for this event's calendar export.
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty" validate:"gte=0"`

	// RRule makes the event recurring (e.g. "FREQ=WEEKLY;BYDAY=FR").
	RRule string `yaml:"rrule,omitempty" json:"rrule,omitempty"`

	LocationName   string   `yaml:"location_name" json:"location_name"`
	LocationMapURL string   `yaml:"location_map_url,omitempty" json:"location_map_url,omitempty" validate:"omitempty,url"`
	Guests         []string `yaml:"guests,omitempty" json:"guests,omitempty" validate:"dive,required"`
	Image          string   `yaml:"image,omitempty" json:"image,omitempty"`
}

// WhatsAppConfig configures the RSVP deep link.
type WhatsAppConfig struct {
	// Number in international format without "+" or spaces.
	Number  string `yaml:"number" json:"number" validate:"omitempty,numeric,min=6,max=15"`
	Message string `yaml:"message" json:"message"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the flyer server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the flyer server.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// PublicURL is the address people share; it is used for share payloads
	// and page snapshots.
	PublicURL string `yaml:"public_url" json:"public_url" validate:"omitempty,url"`

	// Timezone is the IANA zone used for display dates on the page.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// ProductID and Lang fill the PRODID line of calendar exports.
	ProductID string `yaml:"product_id" json:"product_id"`
	Lang      string `yaml:"lang" json:"lang" validate:"omitempty,alpha"`

	// StrictICS makes exports reject line breaks and escape text.
	StrictICS bool `yaml:"strict_ics" json:"strict_ics"`

	DefaultDuration time.Duration `yaml:"default_duration" json:"default_duration" validate:"gt=0"`

	// Tick is the countdown republish interval for live views.
	Tick time.Duration `yaml:"tick" json:"tick" validate:"gte=1s"`

	// ICSFileName is the download name used when only one event is configured.
	ICSFileName string `yaml:"ics_file_name" json:"ics_file_name"`

	// StaticDir, if set, serves slide images from disk instead of the
	// embedded assets.
	StaticDir string `yaml:"static_dir,omitempty" json:"static_dir,omitempty"`

	WhatsApp WhatsAppConfig `yaml:"whatsapp" json:"whatsapp"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Events []EventConfig `yaml:"events" json:"events" validate:"required,min=1,dive"`
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "America/Argentina/Buenos_Aires"
	defaultTick      = time.Second
	defaultICSName   = "gran-impacto-evangelistico.ics"
	defaultLogLevel  = "info"
	defaultPublicURL = "http://127.0.0.1:8080/"
)

// DefaultConfig returns the weekend flyer configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		PublicURL:       defaultPublicURL,
		Timezone:        defaultTimezone,
		LogLevel:        defaultLogLevel,
		ProductID:       "Gran Impacto",
		Lang:            "ES",
		DefaultDuration: model.DefaultDuration,
		Tick:            defaultTick,
		ICSFileName:     defaultICSName,
		WhatsApp: WhatsAppConfig{
			Number:  "5492995046674",
			Message: "¡Hola! Quiero confirmar mi asistencia a los eventos del fin de semana.",
		},
		Events: []EventConfig{
			{
				ID:             "event-1",
				Title:          "24HS CASA DE ORACIÓN",
				Description:    "24 horas de clamor e intercesión",
				Date:           "2025-11-28T19:00:00-03:00",
				Duration:       24 * time.Hour,
				LocationName:   "Av. San Martin 440, Plottier",
				LocationMapURL: "https://www.google.com/maps/search/?api=1&query=Av+San+Martin+440+Plottier+Neuquen",
				Image:          "slide1.jpg",
			},
			{
				ID:             "event-2",
				Title:          "GRAN IMPACTO EVANGELÍSTICO",
				Subtitle:       "Culto Unido Juvenil",
				Date:           "2025-11-29T17:00:00-03:00",
				LocationName:   "Plaza San Martín, Plottier",
				LocationMapURL: "https://www.google.com/maps/search/?api=1&query=Plaza+San+Martin+Plottier+Neuquen",
				Guests:         []string{"Maxi y Daniela Gianfelici"},
				Image:          "slide2.jpg",
			},
			{
				ID:             "event-3",
				Title:          "EL CIELO EN LA TIERRA",
				Subtitle:       "Fiesta de Salvación & Milagros",
				Description:    "Fiesta de Salvación & Milagros",
				Date:           "2025-11-30T20:00:00-03:00",
				LocationName:   "Av. San Martin 440, Plottier",
				LocationMapURL: "https://www.google.com/maps/search/?api=1&query=Av+San+Martin+440+Plottier+Neuquen",
				Guests:         []string{"Maxi y Daniela Gianfelici"},
				Image:          "slide3.jpg",
			},
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled files still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.ProductID == "" {
		c.ProductID = "Gran Impacto"
	}
	if c.Lang == "" {
		c.Lang = "ES"
	}
	if c.DefaultDuration == 0 {
		c.DefaultDuration = model.DefaultDuration
	}
	if c.Tick == 0 {
		c.Tick = defaultTick
	}
	if c.ICSFileName == "" {
		c.ICSFileName = defaultICSName
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.Listen + "/"
	}
	for i := range c.Events {
		c.Events[i].ID = strings.TrimSpace(c.Events[i].ID)
		c.Events[i].Date = strings.TrimSpace(c.Events[i].Date)
	}
}

// Validate checks struct constraints, unique ids, dates and recurrence rules.
// Every failure is a *model.ConfigurationError.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Events))
	for _, ev := range c.Events {
		if _, dup := seen[ev.ID]; dup {
			return &model.ConfigurationError{Field: "events.id", Value: ev.ID, Err: errors.New("duplicate event id")}
		}
		seen[ev.ID] = struct{}{}

		if _, err := model.ParseInstant(ev.Date); err != nil {
			var cfgErr *model.ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Field = "events[" + ev.ID + "].date"
			}
			return err
		}
		if err := recur.Validate(ev.RRule); err != nil {
			return err
		}
	}
	return nil
}

// Records converts the configured events into EventRecords, in file order.
func (c *Config) Records() ([]model.EventRecord, error) {
	out := make([]model.EventRecord, 0, len(c.Events))
	for _, ev := range c.Events {
		start, err := model.ParseInstant(ev.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, model.EventRecord{
			ID:             ev.ID,
			Title:          ev.Title,
			Subtitle:       ev.Subtitle,
			Description:    ev.Description,
			Start:          start,
			Duration:       ev.Duration,
			RRule:          ev.RRule,
			LocationName:   ev.LocationName,
			LocationMapURL: ev.LocationMapURL,
			Guests:         append([]string(nil), ev.Guests...),
			Image:          ev.Image,
		})
	}
	return out, nil
}

// Record returns the event with the given id.
func (c *Config) Record(id string) (model.EventRecord, error) {
	records, err := c.Records()
	if err != nil {
		return model.EventRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.EventRecord{}, fmt.Errorf("config: %q: %w", id, model.ErrEventNotFound)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// ApplyEnv overrides selected fields from the environment. lookup is usually
// os.LookupEnv.
//
//	FLYERCAL_LISTEN, FLYERCAL_PUBLIC_URL, FLYERCAL_LOG_LEVEL, FLYERCAL_STATIC_DIR
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup("FLYERCAL_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("FLYERCAL_PUBLIC_URL"); ok && v != "" {
		c.PublicURL = v
	}
	if v, ok := lookup("FLYERCAL_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("FLYERCAL_STATIC_DIR"); ok && v != "" {
		c.StaticDir = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded, normalized and validated. Malformed
//     files and invalid events fail with *model.ConfigurationError so a bad
//     date is caught at startup, not as a silently wrong countdown.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &model.ConfigurationError{Field: "path", Err: errors.New("config path is empty")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes, normalizes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &model.ConfigurationError{Field: "yaml", Err: err}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".flyercal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
