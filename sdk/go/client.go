package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"just3sec/analytics"
	"just3sec/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the just3sec HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Start begins an attempt for the user. It returns false when one is
// already running.
func (c *Client) Start(ctx context.Context, userID string) (bool, error) {
	var body struct {
		Started bool `json:"started"`
	}
	if err := c.userCall(ctx, http.MethodPost, userID, "/start", nil, &body); err != nil {
		return false, err
	}
	return body.Started, nil
}

// Stop ends the running attempt and records it on the server clock.
func (c *Client) Stop(ctx context.Context, userID string) (AttemptResult, error) {
	var res AttemptResult
	err := c.userCall(ctx, http.MethodPost, userID, "/stop", nil, &res)
	return res, err
}

// Record submits an attempt measured on the client.
func (c *Client) Record(ctx context.Context, userID string, errorMs int64) (AttemptResult, error) {
	q := url.Values{"error_ms": {strconv.FormatInt(errorMs, 10)}}
	var res AttemptResult
	err := c.userCall(ctx, http.MethodPost, userID, "/attempts", q, &res)
	return res, err
}

// GetProfile fetches the history, rating and unlocked achievements of a user.
func (c *Client) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := c.userCall(ctx, http.MethodGet, userID, "", nil, &p)
	return p, err
}

// Chart returns the most recent error samples, oldest first.
func (c *Client) Chart(ctx context.Context, userID string) ([]int64, error) {
	var body struct {
		Samples []int64 `json:"samples"`
	}
	if err := c.userCall(ctx, http.MethodGet, userID, "/chart", nil, &body); err != nil {
		return nil, err
	}
	return body.Samples, nil
}

// Achievements lists the catalogue with the user's unlock marks.
func (c *Client) Achievements(ctx context.Context, userID string) ([]Achievement, error) {
	var out []Achievement
	err := c.userCall(ctx, http.MethodGet, userID, "/achievements", nil, &out)
	return out, err
}

// ClearHistory wipes the attempt history. The server refuses unless
// confirmed is set; achievements are kept either way.
func (c *Client) ClearHistory(ctx context.Context, userID string, confirmed bool) error {
	q := url.Values{"confirm": {strconv.FormatBool(confirmed)}}
	return c.userCall(ctx, http.MethodDelete, userID, "/history", q, nil)
}

// Catalogue lists every achievement. Locked secrets stay hidden unless
// reveal is set.
func (c *Client) Catalogue(ctx context.Context, reveal bool) ([]Achievement, error) {
	q := url.Values{}
	if reveal {
		q.Set("reveal", "true")
	}
	var out []Achievement
	err := c.call(ctx, http.MethodGet, "/achievements", q, &out)
	return out, err
}

// Metrics fetches the aggregate report; top bounds the most-unlocked list
// and a negative value keeps the server default.
func (c *Client) Metrics(ctx context.Context, top int) (analytics.Report, error) {
	q := url.Values{}
	if top >= 0 {
		q.Set("top", strconv.Itoa(top))
	}
	var r analytics.Report
	err := c.call(ctx, http.MethodGet, "/metrics", q, &r)
	return r, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, &hs); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
			return HealthStatus{Status: "unhealthy"}, nil
		}
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty userID limits the stream to that player's events.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?" + url.Values{"user": {userID}}.Encode()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) userCall(ctx context.Context, method, userID, suffix string, q url.Values, target any) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return c.call(ctx, method, "/users/"+url.PathEscape(userID)+suffix, q, target)
}

func (c *Client) call(ctx context.Context, method, path string, q url.Values, target any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
