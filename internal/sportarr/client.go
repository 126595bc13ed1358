package sportarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/five82/lookout/internal/tasks"
)

// ErrUnauthorized is returned when the API rejects the configured key.
var ErrUnauthorized = errors.New("sportarr rejected api key")

// Fetcher defines the read side of the Sportarr API used by the pollers.
// It is implemented by *Client and can be faked in tests.
type Fetcher interface {
	FetchSearchQueue(ctx context.Context) (tasks.Snapshot, error)
	FetchDownloadQueue(ctx context.Context) ([]DownloadItem, error)
	FetchEvents(ctx context.Context, leagueID int64) ([]Event, error)
}

// Searcher issues search requests.
type Searcher interface {
	IssueSearch(ctx context.Context, key tasks.Key) error
}

// Ensure Client implements Fetcher and Searcher at compile time.
var (
	_ Fetcher  = (*Client)(nil)
	_ Searcher = (*Client)(nil)
)

// Options tune a Client. Zero values use defaults.
type Options struct {
	APIKey    string
	RateLimit float64 // search requests per second
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the Sportarr HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	limiter   *rate.Limiter
}

const (
	defaultAPIURL    = "127.0.0.1:1867"
	defaultUserAgent = "lookout/0.1"
	defaultRateLimit = 2.0
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client for the API at apiURL (host:port or full URL).
func NewClient(apiURL string, opts Options) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		apiKey:    strings.TrimSpace(opts.APIKey),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(limit), 1),
	}, nil
}

// BaseURL returns the normalized API root, including any path prefix.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchSearchQueue retrieves the pending and active search lists.
func (c *Client) FetchSearchQueue(ctx context.Context) (tasks.Snapshot, error) {
	if c == nil {
		return tasks.Snapshot{}, fmt.Errorf("client is nil")
	}
	var payload SearchQueueResponse
	if err := c.do(ctx, http.MethodGet, "/api/search/queue", nil, &payload); err != nil {
		return tasks.Snapshot{}, err
	}
	return payload.Snapshot(), nil
}

// FetchDownloadQueue retrieves the current download queue. Both a bare array
// and a paged {"records": [...]} payload are accepted.
func (c *Client) FetchDownloadQueue(ctx context.Context) ([]DownloadItem, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &raw); err != nil {
		return nil, err
	}
	return decodeDownloadQueue(raw)
}

// FetchEvents lists the events of a league.
func (c *Client) FetchEvents(ctx context.Context, leagueID int64) ([]Event, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id required")
	}
	path := "/api/league/" + strconv.FormatInt(leagueID, 10) + "/events"
	var payload []Event
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// IssueSearch asks the server to queue a search for key. Calls are throttled
// by the client's rate limiter.
func (c *Client) IssueSearch(ctx context.Context, key tasks.Key) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if key.EventID <= 0 {
		return fmt.Errorf("event id required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	body, err := json.Marshal(searchRequest{Part: key.PartPtr()})
	if err != nil {
		return fmt.Errorf("encode search request: %w", err)
	}
	path := "/api/event/" + strconv.FormatInt(key.EventID, 10) + "/search"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func decodeDownloadQueue(raw json.RawMessage) ([]DownloadItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var page downloadQueuePage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return page.Records, nil
	}
	var items []DownloadItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, dest any) error {
	rel := &url.URL{Path: c.baseURL.Path + path}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body []byte, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("api %s returned status %d: %w", rel.Path, resp.StatusCode, ErrUnauthorized)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
