// Package record talks to the share-link record service, which stores hash
// payloads under short ids so links stay small.
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is the record service client. A zero base URL disables it; Create
// and Resolve then degrade instead of failing callers.
type Client struct {
	baseURL     string
	headerKey   string
	headerValue string
	httpClient  *http.Client
}

// Options configures the record client.
type Options struct {
	BaseURL     string
	HeaderKey   string
	HeaderValue string
	Timeout     time.Duration
}

// New creates a record client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Client{
		baseURL:     opts.BaseURL,
		headerKey:   opts.HeaderKey,
		headerValue: opts.HeaderValue,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Enabled reports whether a record service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type recordPayload struct {
	ID   string `json:"id,omitempty"`
	Data string `json:"data,omitempty"`
}

// Create stores the data under a new record id. When the service is not
// configured or unreachable it returns an empty id so callers can fall back
// to the long-form link.
func (c *Client) Create(ctx context.Context, data string) string {
	if !c.Enabled() {
		return ""
	}

	body, err := json.Marshal(recordPayload{Data: data})
	if err != nil {
		zlog.Error().Err(err).Msg("record: failed to encode create request")
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(body))
	if err != nil {
		zlog.Error().Err(err).Msg("record: failed to build create request")
		return ""
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	var out recordPayload
	if err := c.do(req, &out); err != nil {
		zlog.Warn().Err(err).Msg("record: create failed, falling back to long link")
		return ""
	}
	return out.ID
}

// Resolve fetches the data stored under a record id.
func (c *Client) Resolve(ctx context.Context, id string) (string, error) {
	if !c.Enabled() {
		return "", errors.New("record service not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/records/"+url.PathEscape(id), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build resolve request")
	}
	c.setHeaders(req)

	var out recordPayload
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Data == "" {
		return "", errors.Newf("record %s has no data", id)
	}
	return out.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.headerKey != "" {
		req.Header.Set(c.headerKey, c.headerValue)
	}
}

func (c *Client) do(req *http.Request, out *recordPayload) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "record request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("record service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read record response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "failed to decode record response")
	}
	return nil
}
