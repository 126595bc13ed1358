package sportarr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/lookout/internal/tasks"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAPIURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultAPIURL)
	}

	u, err = parseBaseURL("https://sportarr.lan:1867/base?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "/base" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	u, err = parseBaseURL("sportarr.lan/proxy/sportarr/")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "/proxy/sportarr" {
		t.Fatalf("path = %q, want /proxy/sportarr", u.Path)
	}
	if u.Scheme != "https" {
		t.Fatalf("scheme = %q, want https", u.Scheme)
	}

	if _, err := parseBaseURL("http://[::1"); err == nil {
		t.Fatalf("parseBaseURL returned nil error for malformed host")
	}
}

func TestClient_FetchesEndpoints(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	headers := map[string]http.Header{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers[r.URL.Path] = r.Header.Clone()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/search/queue":
			_, _ = io.WriteString(w, `{
				"pendingSearches": [{"eventId": 5, "part": "Main Card"}, {"entityId": 6, "part": null}],
				"activeSearches": [{"eventId": 7}]
			}`)
		case "/api/queue":
			_, _ = io.WriteString(w, `[{"id": 1, "status": "Importing", "title": "UFC 300", "eventId": 5, "progress": 100}]`)
		case "/api/league/3/events":
			_, _ = io.WriteString(w, `[{"id": 5, "title": "UFC 300", "eventDate": "2024-04-13T22:00:00Z", "parts": ["Prelims", "Main Card"]}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, Options{APIKey: " secret "})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	snap, err := c.FetchSearchQueue(ctx)
	if err != nil {
		t.Fatalf("FetchSearchQueue returned error: %v", err)
	}
	if !snap.IsPending(tasks.PartKey(5, "Main Card")) {
		t.Fatalf("snapshot missing pending part key")
	}
	if !snap.IsPending(tasks.EventKey(6)) {
		t.Fatalf("snapshot missing pending whole-event key from entityId alias")
	}
	if !snap.IsActive(tasks.EventKey(7)) {
		t.Fatalf("snapshot missing active key")
	}
	if snap.IsPending(tasks.EventKey(5)) {
		t.Fatalf("part entry leaked into whole-event key")
	}

	items, err := c.FetchDownloadQueue(ctx)
	if err != nil {
		t.Fatalf("FetchDownloadQueue returned error: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 || items[0].Status != DownloadStatusImporting {
		t.Fatalf("FetchDownloadQueue items = %#v, want one importing item", items)
	}

	events, err := c.FetchEvents(ctx, 3)
	if err != nil {
		t.Fatalf("FetchEvents returned error: %v", err)
	}
	if len(events) != 1 || len(events[0].Parts) != 2 {
		t.Fatalf("FetchEvents = %#v, want one event with two parts", events)
	}

	mu.Lock()
	defer mu.Unlock()
	for path, h := range headers {
		if h.Get("X-Api-Key") != "secret" {
			t.Fatalf("%s X-Api-Key = %q, want secret", path, h.Get("X-Api-Key"))
		}
		if !strings.HasPrefix(h.Get("User-Agent"), "lookout/") {
			t.Fatalf("%s User-Agent = %q, want lookout/*", path, h.Get("User-Agent"))
		}
		if h.Get("X-Request-Id") == "" {
			t.Fatalf("%s missing X-Request-Id", path)
		}
	}
}

func TestClient_FetchDownloadQueueAcceptsPagedPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"page": 1, "records": [{"id": 4, "status": "imported"}, {"id": 5, "status": "seeding"}]}`)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, Options{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	items, err := c.FetchDownloadQueue(context.Background())
	if err != nil {
		t.Fatalf("FetchDownloadQueue returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Status != DownloadStatusImported {
		t.Fatalf("items[0].Status = %v, want imported", items[0].Status)
	}
	if items[1].Status != DownloadStatusUnknown {
		t.Fatalf("items[1].Status = %v, want unknown", items[1].Status)
	}
}

func TestClient_IssueSearchPostsPart(t *testing.T) {
	t.Parallel()

	type call struct {
		method string
		path   string
		body   map[string]any
	}
	var mu sync.Mutex
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, body})
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, Options{RateLimit: 1000})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()
	if err := c.IssueSearch(ctx, tasks.PartKey(5, "Main Card")); err != nil {
		t.Fatalf("IssueSearch(part) returned error: %v", err)
	}
	if err := c.IssueSearch(ctx, tasks.EventKey(6)); err != nil {
		t.Fatalf("IssueSearch(event) returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].method != http.MethodPost || calls[0].path != "/api/event/5/search" {
		t.Fatalf("first call = %s %s, want POST /api/event/5/search", calls[0].method, calls[0].path)
	}
	if calls[0].body["part"] != "Main Card" {
		t.Fatalf("first body = %v, want part=Main Card", calls[0].body)
	}
	if _, ok := calls[1].body["part"]; ok {
		t.Fatalf("whole-event body = %v, want no part", calls[1].body)
	}
}

func TestClient_IssueSearchValidatesAndRespectsContext(t *testing.T) {
	c, err := NewClient("127.0.0.1:1", Options{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := c.IssueSearch(context.Background(), tasks.EventKey(0)); err == nil {
		t.Fatalf("IssueSearch returned nil error for missing event id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.IssueSearch(ctx, tasks.EventKey(1)); err == nil {
		t.Fatalf("IssueSearch returned nil error for cancelled context")
	}
}

func TestClient_HTTPErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search/queue":
			_, _ = w.Write([]byte("{not-json"))
		case "/api/queue":
			http.Error(w, "nope", http.StatusInternalServerError)
		case "/api/league/1/events":
			http.Error(w, "denied", http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, Options{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	if _, err := c.FetchSearchQueue(ctx); err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("FetchSearchQueue error = %v, want decode response error", err)
	}
	if _, err := c.FetchDownloadQueue(ctx); err == nil || !strings.Contains(err.Error(), "returned status 500") {
		t.Fatalf("FetchDownloadQueue error = %v, want status 500 error", err)
	}
	if _, err := c.FetchEvents(ctx, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("FetchEvents error = %v, want ErrUnauthorized", err)
	}
	if _, err := c.FetchEvents(ctx, 0); err == nil {
		t.Fatalf("FetchEvents(0) returned nil error, want error")
	}
}

func TestClient_KeepsBasePathPrefix(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/sportarr/api/search/queue":
			_, _ = w.Write([]byte(`{"pendingSearches":[],"activeSearches":[]}`))
		case "/sportarr/api/event/4/search":
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/sportarr/", Options{RateLimit: 100})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if got := c.BaseURL(); got != srv.URL+"/sportarr" {
		t.Fatalf("BaseURL = %q, want %q", got, srv.URL+"/sportarr")
	}
	ctx := context.Background()
	if _, err := c.FetchSearchQueue(ctx); err != nil {
		t.Fatalf("FetchSearchQueue returned error: %v", err)
	}
	if err := c.IssueSearch(ctx, tasks.EventKey(4)); err != nil {
		t.Fatalf("IssueSearch returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/sportarr/api/search/queue", "/sportarr/api/event/4/search"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("request paths = %v, want %v", paths, want)
	}
}
