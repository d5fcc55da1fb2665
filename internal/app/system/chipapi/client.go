// internal/app/system/chipapi/client.go
package chipapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a failed response we read looking for a message.
const maxErrorBody = 64 << 10

// Client is the authenticated-fetch wrapper used by every CHIP backend call.
//
// Relative paths are resolved against BaseURL. Each request carries
// Content-Type: application/json, an X-Request-ID, the bearer token and the
// cookies of the Session attached to its context. Any non-2xx response is
// returned as *HTTPError; transport failures as *NetworkError. There is
// exactly one attempt per call.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
	Log     *zap.Logger
	Metrics *Metrics
}

// New builds a Client for the backend rooted at baseURL. A nil httpClient
// uses a plain http.Client; deadlines come from the request contexts.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{BaseURL: u, HTTP: httpClient, Log: logger}, nil
}

// ParseBaseURL validates a backend base URL: absolute http(s) with a host.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: need absolute http(s) URL", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// Resolve prefixes a relative path with the base URL and adds query.
// Absolute URLs are used unchanged.
func (c *Client) Resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	var u *url.URL
	if ref.IsAbs() {
		u = ref
	} else {
		u = &url.URL{
			Scheme:   c.BaseURL.Scheme,
			Host:     c.BaseURL.Host,
			Path:     c.BaseURL.Path + "/" + strings.TrimLeft(ref.Path, "/"),
			RawQuery: ref.RawQuery,
		}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// Get issues a GET and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON issues a POST with body encoded as JSON and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do performs one request against the backend.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := c.Resolve(path, query)
	if err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	sess := SessionFrom(ctx)
	if sess != nil {
		if sess.Token != "" {
			(&oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}).SetAuthHeader(req)
		}
		if sess.Jar != nil {
			for _, ck := range sess.Jar.Cookies(u) {
				req.AddCookie(ck)
			}
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Metrics.observe(method, path, "network_error", time.Since(start))
		c.Log.Warn("chip backend unreachable",
			zap.String("method", method),
			zap.String("path", u.Path),
			zap.String("request_id", reqID),
			zap.Error(err))
		return &NetworkError{Method: method, URL: u.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	if sess != nil && sess.Jar != nil {
		if cks := resp.Cookies(); len(cks) > 0 {
			sess.Jar.SetCookies(u, cks)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Metrics.observe(method, path, "http_error", time.Since(start))
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		herr := newHTTPError(resp.StatusCode, ExtractMessage(raw))
		c.Log.Info("chip backend returned error",
			zap.String("method", method),
			zap.String("path", u.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", reqID))
		return herr
	}

	c.Metrics.observe(method, path, "ok", time.Since(start))

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s: empty body", ErrBadResponse, path)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &NetworkError{Method: method, URL: u.Redacted(), Err: ctxErr}
		}
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, path, err)
	}
	return nil
}
