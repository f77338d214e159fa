package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RemoteKV talks to an external key-value persistence service over HTTP.
// Keys map to /kv/{key}; values are opaque bytes.
type RemoteKV struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteKV(baseURL, apiKey string) *RemoteKV {
	return &RemoteKV{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RemoteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	var found bool
	err := withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.keyURL(key), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retryableError{err: fmt.Errorf("get %s: %w", key, err)}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			found = false
			return nil
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			found = true
			return nil
		default:
			return statusError(resp, "get", key)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return body, found, nil
}

func (c *RemoteKV) Set(ctx context.Context, key string, value []byte) error {
	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.keyURL(key), bytes.NewReader(value))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retryableError{err: fmt.Errorf("set %s: %w", key, err)}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError(resp, "set", key)
		}
		return nil
	})
}

func (c *RemoteKV) Delete(ctx context.Context, key string) error {
	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.keyURL(key), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retryableError{err: fmt.Errorf("delete %s: %w", key, err)}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK &&
			resp.StatusCode != http.StatusNoContent &&
			resp.StatusCode != http.StatusNotFound {
			return statusError(resp, "delete", key)
		}
		return nil
	})
}

func (c *RemoteKV) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RemoteKV) keyURL(key string) string {
	return c.baseURL + "/kv/" + url.PathEscape(key)
}

func (c *RemoteKV) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func statusError(resp *http.Response, op, key string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("%s %s: status %d: %s", op, key, resp.StatusCode, string(body))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &retryableError{err: err}
	}
	return err
}
