package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyercal/internal/config"
	"flyercal/internal/countdown"
	"flyercal/internal/ics"
	"flyercal/internal/model"
	"flyercal/internal/web"
)

const testConfig = `listen: 127.0.0.1:9090
timezone: UTC
events:
  - id: event-2
    title: GRAN IMPACTO EVANGELÍSTICO
    subtitle: Culto Unido Juvenil
    date: "2025-11-29T17:00:00-03:00"
    location_name: Plaza San Martín, Plottier
  - id: weekly
    title: Reunión de jóvenes
    date: "2025-11-07T20:30:00-03:00"
    duration: 2h
    rrule: "FREQ=WEEKLY;BYDAY=FR"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flyercal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestICSCommandWritesPayload(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "ics", "event-2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, out, "\r\nDTSTART:20251129T200000Z\r\nDTEND:20251129T230000Z\r\n")
	assert.Contains(t, out, "\r\nDESCRIPTION:Culto Unido Juvenil\r\n")
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR"))
}

func TestICSCommandStrictAndOutputFile(t *testing.T) {
	path := writeConfig(t, testConfig)
	target := filepath.Join(t.TempDir(), "out.ics")

	_, err := run(t, "--config", path, "ics", "event-2", "--strict", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `LOCATION:Plaza San Martín\, Plottier`)

	parsed, err := ics.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed.Events, 1)
	assert.Equal(t, "-//Gran Impacto//Event//ES", parsed.ProductID)
}

func TestICSCommandRecurringExportsNextOccurrence(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "ics", "weekly")
	require.NoError(t, err)

	parsed, err := ics.Parse([]byte(out))
	require.NoError(t, err)
	require.Len(t, parsed.Events, 1)
	ev := parsed.Events[0]
	assert.Equal(t, 2*time.Hour, ev.End.Sub(ev.Start))
	assert.True(t, ev.Start.After(time.Now().Add(-time.Minute)))

	// Friday 20:30 at -03:00 is Friday 23:30 UTC.
	start := ev.Start.UTC()
	assert.Equal(t, time.Friday, start.Weekday())
	assert.Equal(t, 23, start.Hour())
	assert.Equal(t, 30, start.Minute())
}

func TestICSCommandUnknownEvent(t *testing.T) {
	path := writeConfig(t, testConfig)
	_, err := run(t, "--config", path, "ics", "nope")
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestICSCommandRequiresEventID(t *testing.T) {
	path := writeConfig(t, testConfig)
	_, err := run(t, "--config", path, "ics")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   event-2 20251129T200000Z -> 20251129T230000Z")
	assert.Contains(t, out, "ok   weekly ")
	assert.Contains(t, out, "2 events ok")
}

func TestCheckCommandStrictFailure(t *testing.T) {
	body := strings.Replace(testConfig, "subtitle: Culto Unido Juvenil", `subtitle: "Culto Unido\nJuvenil"`, 1)
	body = "strict_ics: true\n" + body
	path := writeConfig(t, body)

	out, err := run(t, "--config", path, "check")
	require.Error(t, err)
	assert.Contains(t, out, "FAIL event-2")
	assert.Contains(t, out, "ok   weekly ")
	assert.Contains(t, err.Error(), "1 of 2 events failed")
}

func TestCountdownOnce(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "countdown", "event-2", "--once")
	require.NoError(t, err)
	// The event is in the past, so the countdown is clamped.
	assert.Contains(t, out, "Faltan 00 Días 00 Horas 00 Min 00 Seg")
	assert.Contains(t, out, "Sábado 29 Nov · 20 hs")
}

func TestCountdownAllEvents(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "countdown")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "event-2"))
	assert.True(t, strings.HasPrefix(lines[1], "weekly"))
	assert.Contains(t, lines[1], "Viernes")
}

func TestCountdownLiveStopsAtZero(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "countdown", "event-2")
	require.NoError(t, err)
	assert.Contains(t, out, "\rFaltan 00 Días 00 Horas 00 Min 00 Seg")
}

func TestLoadWritesDefaultConfigOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.yaml")

	out, err := run(t, "--config", path, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "3 events ok")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Events, 3)
}

func TestEnvOverridesConfig(t *testing.T) {
	path := writeConfig(t, testConfig)
	t.Setenv("FLYERCAL_PUBLIC_URL", "https://flyer.example/")

	opts := &rootOptions{configPath: path}
	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "https://flyer.example/", cfg.PublicURL)
	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
}

func TestInvalidEnvOverridesAreRejected(t *testing.T) {
	path := writeConfig(t, testConfig)

	tests := []struct {
		key, value, field string
	}{
		{"FLYERCAL_LISTEN", "not a host", "listen"},
		{"FLYERCAL_PUBLIC_URL", "flyer dot example", "public_url"},
		{"FLYERCAL_LOG_LEVEL", "loud", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := (&rootOptions{configPath: path}).load()
			var cfgErr *model.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)

			_, err = run(t, "--config", path, "check")
			assert.Error(t, err)
		})
	}
}

func TestSnapshotRejectsBadURL(t *testing.T) {
	path := writeConfig(t, testConfig)
	_, err := run(t, "--config", path, "snapshot", "--url", "not-a-url")
	assert.Error(t, err)
}

func TestCheckCommandRemote(t *testing.T) {
	path := writeConfig(t, testConfig)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	ticker := countdown.NewTicker()
	defer ticker.Close()
	srv, err := web.NewServer(cfg, ticker)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	out, err := run(t, "--config", path, "check", "--remote", ts.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   event-2 20251129T200000Z -> 20251129T230000Z")
	assert.Contains(t, out, "2 events ok")

	ts.Close()
	out, err = run(t, "--config", path, "check", "--remote", ts.URL)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL event-2")
}
