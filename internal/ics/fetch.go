package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	appLog "flyercal/internal/log"
)

// maxPayloadBytes bounds a downloaded payload; a single event is a few
// hundred bytes.
const maxPayloadBytes = 1 << 20

// FetchResult contains the outcome of downloading one calendar export.
type FetchResult struct {
	URL       string
	Body      []byte
	ETag      string
	FromCache bool // true if the server answered 304 and the cached body was reused
}

type fetchEntry struct {
	etag string
	body []byte
}

// Fetcher downloads calendar exports from a running flyer server, e.g. to
// verify a deployment. It remembers ETags in memory and revalidates with
// If-None-Match.
type Fetcher struct {
	client   *http.Client
	username string
	password string
	entries  *gocache.Cache
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithBasicAuth sends credentials on every request.
func WithBasicAuth(username, password string) FetcherOption {
	return func(f *Fetcher) {
		f.username = username
		f.password = password
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		entries: gocache.New(time.Hour, 2*time.Hour),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url, honoring a previously seen ETag. Responses that are not
// text/calendar are rejected.
func (f *Fetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	if url == "" {
		return FetchResult{}, errors.New("ics: fetch URL is empty")
	}
	key := cacheKey(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("ics: build request: %w", err)
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	var cached fetchEntry
	if v, ok := f.entries.Get(key); ok {
		cached = v.(fetchEntry)
		req.Header.Set("If-None-Match", cached.etag)
	}

	appLog.Debug("ics fetch start", "url", redactURL(url))
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("ics: fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/calendar" {
			return FetchResult{}, fmt.Errorf("ics: unexpected content type %q", resp.Header.Get("Content-Type"))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
		if err != nil {
			return FetchResult{}, fmt.Errorf("ics: read body: %w", err)
		}
		etag := resp.Header.Get("ETag")
		if etag != "" {
			f.entries.Set(key, fetchEntry{etag: etag, body: body}, gocache.DefaultExpiration)
		}
		appLog.Debug("ics fetch success", "url", redactURL(url), "bytes", len(body), "etag", etag)
		return FetchResult{URL: url, Body: body, ETag: etag}, nil

	case http.StatusNotModified:
		if cached.body == nil {
			return FetchResult{}, errors.New("ics: received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified; using cache", "url", redactURL(url))
		return FetchResult{URL: url, Body: cached.body, ETag: cached.etag, FromCache: true}, nil

	default:
		return FetchResult{}, fmt.Errorf("ics: fetch %s: %s", redactURL(url), resp.Status)
	}
}

// ETag returns the strong entity tag the server sends for payload.
func ETag(payload []byte) string {
	sum := sha256.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// redactURL keeps scheme and host and hides the path and query for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "http://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
