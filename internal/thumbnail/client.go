package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetryMax = 2
	maxLocationSize = 4 << 10
)

// retryTransport retries idempotent requests that failed at the transport
// level. HTTP error statuses are returned as is.
type retryTransport struct {
	base     http.RoundTripper
	retryMax int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) &&
		(req.Body == nil || req.Body == http.NoBody)
	attempts := 0
	if canRetry {
		attempts = max(t.retryMax, 0)
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Client talks to the thumbnail service over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient returns a client for the service at baseURL
// (e.g. http://127.0.0.1:8091).
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("thumbnail: service url %q: missing scheme or host", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := &http.Transport{
		Proxy:                 nil,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		base: u,
		http: &http.Client{
			Transport: &retryTransport{base: base, retryMax: defaultRetryMax},
			Timeout:   timeout,
		},
	}, nil
}

// LocateURL builds the request URL for one frame.
func (c *Client) LocateURL(id string, frame int, force bool) string {
	u := *c.base
	u.Path = u.Path + "/thumbnails/" + id + "/" + strconv.Itoa(frame) + "/path/"
	if force {
		u.Path += "no-cache/"
	}
	return u.String()
}

// Locate implements Service. The response body is the image location.
func (c *Client) Locate(ctx context.Context, id string, frame int, force bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.LocateURL(id, frame, force), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("thumbnail: locate %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLocationSize+1))
	if err != nil {
		return "", fmt.Errorf("thumbnail: read %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail: locate %s: status %d", id, resp.StatusCode)
	}
	if len(body) > maxLocationSize {
		return "", fmt.Errorf("thumbnail: locate %s: location exceeds %d bytes", id, maxLocationSize)
	}
	loc := strings.TrimSpace(string(body))
	if loc == "" {
		return "", errors.New("thumbnail: empty location")
	}
	return loc, nil
}
