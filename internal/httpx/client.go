// Package httpx provides a small retrying JSON HTTP client shared by the
// search adapters, the LLM providers, and the academic-retrieval client.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps http.Client with bounded retries and exponential backoff.
// Retries apply to transport errors and non-2xx responses alike; callers
// that must not retry pass retries=0 at construction.
type Client struct {
	hc      *http.Client
	retries int
	backoff time.Duration
}

func New(timeout time.Duration, retries int, backoff time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Client{hc: &http.Client{Timeout: timeout}, retries: retries, backoff: backoff}
}

// DoJSON issues method url with an optional JSON body and decodes a JSON
// response into out (out may be nil to discard the body). The request body
// is re-marshaled per attempt so retries never reuse a drained reader.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	attempts := c.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		lastErr = c.attempt(req, out)
		if lastErr == nil {
			return nil
		}

		if attempt < attempts-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) attempt(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// keep a slice of the body for the error message
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New(resp.Status + ": " + string(b))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// BearerHeader builds an Authorization header map, merging any extras.
func BearerHeader(token string, extra map[string]string) map[string]string {
	h := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		h[k] = v
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}
