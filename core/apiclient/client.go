// Package apiclient is the request envelope shared by every store verb. It
// performs one JSON call against the remote API and turns every failure into
// a *remoteerr.Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ganjinghwan/erecipehub/core/logging"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
)

const maxErrorBody = 8 << 10

// TokenSource yields the bearer token for the next request. An empty token
// sends the request unauthenticated.
type TokenSource func() string

type Client struct {
	baseURL   string
	http      *http.Client
	token     TokenSource
	limiter   *rate.Limiter
	userAgent string
	log       logrus.FieldLogger
}

type Option func(*Client)

// WithTimeout sets the transport timeout, the only bound on a verb besides ctx.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithRateLimit throttles outbound calls. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if u == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: 20 * time.Second},
		userAgent: "erecipehub-client",
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "apiclient")
	return c, nil
}

// Get performs a GET and decodes the success payload into dst.
func (c *Client) Get(ctx context.Context, path string, dst any) error {
	return c.Do(ctx, http.MethodGet, path, nil, dst)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, dst any) error {
	return c.Do(ctx, http.MethodPost, path, body, dst)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string, dst any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, dst)
}

// Do performs one remote call. The returned error, when non-nil, is always a
// *remoteerr.Error.
func (c *Client) Do(ctx context.Context, method, path string, reqBody, dst any) error {
	if err := c.do(ctx, method, path, reqBody, dst); err != nil {
		return remoteerr.Normalize(err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, dst any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return remoteerr.FromTransport(fmt.Errorf("encode %s %s request: %w", method, path, err))
		}
		body = bytes.NewReader(b)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return remoteerr.FromTransport(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return remoteerr.FromTransport(err)
	}
	requestID := uuid.NewString()
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != nil {
		if tok := strings.TrimSpace(c.token()); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("api request failed")
		return remoteerr.FromTransport(err)
	}
	defer resp.Body.Close()

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		rerr := remoteerr.FromApplication(resp.StatusCode, remoteerr.ParseBody(raw))
		log.WithField("messages", rerr.Messages).Warn("api request rejected")
		return rerr
	}
	log.Debug("api request ok")

	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		rerr := remoteerr.FromApplication(resp.StatusCode, nil)
		rerr.Cause = fmt.Errorf("decode %s %s response: %w", method, path, err)
		return rerr
	}
	return nil
}
