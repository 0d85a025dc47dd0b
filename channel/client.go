package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hazyhaar/ytscribe/horosafe"
	"github.com/hazyhaar/ytscribe/kit"
	"github.com/hazyhaar/ytscribe/tabs"
	"github.com/hazyhaar/ytscribe/transcript"
)

// ErrNoResponse means the request went out but nothing usable came back:
// transport failure, or a body that is not a Response.
var ErrNoResponse = errors.New("channel: no response")

// StatusError is a non-2xx reply from the daemon.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("channel: status %d: %s", e.Status, e.Message)
}

const maxReply = 16 << 20

// Client talks to a Server over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the daemon at baseURL. hc may be nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// ActiveTab returns the active tab.
func (c *Client) ActiveTab(ctx context.Context) (tabs.Info, error) {
	var info tabs.Info
	err := c.do(ctx, http.MethodGet, "/tabs/active", nil, &info)
	return info, err
}

// Tabs lists open tabs.
func (c *Client) Tabs(ctx context.Context) ([]tabs.Info, error) {
	var out []tabs.Info
	err := c.do(ctx, http.MethodGet, "/tabs", nil, &out)
	return out, err
}

// OpenTab opens pageURL in a new, active tab.
func (c *Client) OpenTab(ctx context.Context, pageURL string) (tabs.Info, error) {
	var info tabs.Info
	err := c.do(ctx, http.MethodPost, "/tabs", openTabRequest{URL: pageURL}, &info)
	return info, err
}

// Send delivers one request to a tab and returns its one response. A reply
// carrying only an error (unknown action, unknown tab) is returned as a
// Response with Error set, like an extraction failure.
func (c *Client) Send(ctx context.Context, tabID string, req transcript.Request) (*transcript.Response, error) {
	path, err := tabPath(tabID, "messages")
	if err != nil {
		return nil, err
	}
	var resp transcript.Response
	err = c.do(ctx, http.MethodPost, path, req, &resp)
	var se *StatusError
	if errors.As(err, &se) {
		return &transcript.Response{Error: se.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot returns the cleaned markup of a tab, "" or ActiveTabID meaning
// the active one.
func (c *Client) Snapshot(ctx context.Context, tabID string) (string, error) {
	path, err := tabPath(tabID, "snapshot")
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return "", fmt.Errorf("channel: %w", err)
	}
	c.traceHeader(ctx, req)
	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer res.Body.Close()
	data, err := horosafe.LimitedReadAll(res.Body, maxReply)
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrNoResponse, err)
	}
	if res.StatusCode != http.StatusOK {
		return "", statusError(res.StatusCode, data)
	}
	return string(data), nil
}

// tabPath builds /tabs/{id}/{sub}; "" means the active tab.
func tabPath(tabID, sub string) (string, error) {
	if tabID == "" {
		tabID = ActiveTabID
	}
	if err := horosafe.ValidateIdentifier(tabID); err != nil {
		return "", fmt.Errorf("channel: tab id: %w", err)
	}
	return "/tabs/" + tabID + "/" + sub, nil
}

func (c *Client) traceHeader(ctx context.Context, req *http.Request) {
	if id := kit.GetTraceID(ctx); id != "" {
		req.Header.Set("X-Trace-ID", id)
	}
}

func statusError(status int, data []byte) *StatusError {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) != nil || e.Error == "" {
		e.Error = http.StatusText(status)
	}
	return &StatusError{Status: status, Message: e.Error}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("channel: encode: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.traceHeader(ctx, req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer res.Body.Close()

	data, err := horosafe.LimitedReadAll(res.Body, maxReply)
	if err != nil {
		return fmt.Errorf("%w: read: %v", ErrNoResponse, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: empty body", ErrNoResponse)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrNoResponse, err)
	}
	return nil
}
