// Package apiclient talks to the bookmark API over HTTP.
package apiclient

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

	"shelf/api/internal/wire"
)

// Error is a rejection: the server answered with a non-2xx status.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsRejection reports whether err came back from the server, as opposed to
// the request never completing.
func IsRejection(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	instanceID string
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8000".
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", parsed.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// WithInstanceID tags every request with an X-Request-ID prefix so server
// logs can be tied to one viewing session.
func (c *Client) WithInstanceID(id string) *Client {
	clone := *c
	clone.instanceID = id
	return &clone
}

// PushURL is the websocket endpoint for broadcast events.
func (c *Client) PushURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/bookmarks"
	return u.String()
}

// Fetch returns the collection for filter, sorted by position. A search
// query takes precedence over the category.
func (c *Client) Fetch(ctx context.Context, filter wire.Filter) ([]wire.Record, error) {
	query := url.Values{}
	path := "/api/bookmarks"
	if filter.Searching() {
		path = "/api/bookmarks/search"
		query.Set("query", filter.Query)
	} else if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	var records []wire.Record
	if err := c.do(ctx, http.MethodGet, path, query, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []wire.Record{}
	}
	return records, nil
}

func (c *Client) Get(ctx context.Context, id int64) (wire.Record, error) {
	var record wire.Record
	err := c.do(ctx, http.MethodGet, "/api/bookmarks/"+strconv.FormatInt(id, 10), nil, nil, &record)
	return record, err
}

func (c *Client) Create(ctx context.Context, req wire.CreateRequest) (wire.Record, error) {
	var record wire.Record
	err := c.do(ctx, http.MethodPost, "/api/bookmarks", nil, req, &record)
	return record, err
}

func (c *Client) Update(ctx context.Context, id int64, req wire.UpdateRequest) (wire.Record, error) {
	var record wire.Record
	err := c.do(ctx, http.MethodPut, "/api/bookmarks/"+strconv.FormatInt(id, 10), nil, req, &record)
	return record, err
}

// Delete removes a bookmark. The deletion reaches the local view through the
// broadcast echo, not through this call.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) Reorder(ctx context.Context, req wire.ReorderRequest) (wire.Record, error) {
	var record wire.Record
	err := c.do(ctx, http.MethodPost, "/api/bookmarks/reorder", nil, req, &record)
	return record, err
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &categories)
	return categories, err
}

func (c *Client) Analytics(ctx context.Context) (wire.Analytics, error) {
	var analytics wire.Analytics
	err := c.do(ctx, http.MethodGet, "/api/analytics", nil, nil, &analytics)
	return analytics, err
}

func (c *Client) SuggestTitle(ctx context.Context, pageURL string) (wire.TitleSuggestion, error) {
	var suggestion wire.TitleSuggestion
	err := c.do(ctx, http.MethodPost, "/api/ai/suggest-title", nil, wire.SuggestRequest{URL: pageURL}, &suggestion)
	return suggestion, err
}

func (c *Client) SuggestTags(ctx context.Context, pageURL string) (wire.TagsSuggestion, error) {
	var suggestion wire.TagsSuggestion
	err := c.do(ctx, http.MethodPost, "/api/ai/suggest-tags", nil, wire.SuggestRequest{URL: pageURL}, &suggestion)
	return suggestion, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.instanceID != "" {
		req.Header.Set("X-Request-ID", c.instanceID+"-"+strconv.FormatInt(time.Now().UnixNano(), 36))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if body.Code != "" {
			apiErr.Code = body.Code
		}
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
