package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRevalidatesWithETag(t *testing.T) {
	payload := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR")
	etag := ETag(payload)

	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "lider" || pass != "jovenes" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()), WithBasicAuth("lider", "jovenes"))

	first, err := f.Fetch(context.Background(), srv.URL+"/api/events/event-2/calendar.ics")
	require.NoError(t, err)
	assert.Equal(t, payload, first.Body)
	assert.Equal(t, etag, first.ETag)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), srv.URL+"/api/events/event-2/calendar.ics")
	require.NoError(t, err)
	assert.Equal(t, payload, second.Body)
	assert.True(t, second.FromCache)

	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, notModified.Load())
}

func TestFetchRejectsBadResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		case "/stale":
			w.WriteHeader(http.StatusNotModified)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/html")
	assert.ErrorContains(t, err, "unexpected content type")

	_, err = f.Fetch(ctx, srv.URL+"/stale")
	assert.ErrorContains(t, err, "no cached body")

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")

	_, err = f.Fetch(ctx, "")
	assert.Error(t, err)
}

func TestETagIsStable(t *testing.T) {
	a := ETag([]byte("x"))
	assert.Equal(t, a, ETag([]byte("x")))
	assert.NotEqual(t, a, ETag([]byte("y")))
	assert.Len(t, a, 18)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://flyer.example/...(redacted)", redactURL("https://flyer.example/api/events/x/calendar.ics?strict=1"))
	assert.Equal(t, "http://127.0.0.1:8080/...(redacted)", redactURL("http://127.0.0.1:8080"))
	assert.Equal(t, "http://...(redacted)", redactURL("no-scheme"))
}
