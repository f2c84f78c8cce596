// Package httpx holds the small JSON-over-HTTP helpers workloads share.
// Status codes map onto errcode so callers can pick an offline fallback
// without string matching.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"einkcode-go/errcode"
)

const maxBody = 64 << 10

// NewClient returns a client with a hard timeout. Every network call a
// workload makes goes through one of these.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON performs a GET and decodes the body into out.
func GetJSON(ctx context.Context, c *http.Client, url string, header map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errcode.Wrap(errcode.Unconfigured, "http.get", err)
	}
	return do(c, req, header, out)
}

// PostJSON encodes in as the body and decodes the reply into out (may be
// nil).
func PostJSON(ctx context.Context, c *http.Client, url string, header map[string]string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "http.post", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return errcode.Wrap(errcode.Unconfigured, "http.post", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(c, req, header, out)
}

func do(c *http.Client, req *http.Request, header map[string]string, out any) error {
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return errcode.Wrap(errcode.Unreachable, "http."+strings.ToLower(req.Method), err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errcode.New(errcode.NotFound, "http."+strings.ToLower(req.Method), req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errcode.New(errcode.BadStatus, "http."+strings.ToLower(req.Method), resp.Status)
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "http.decode", err)
	}
	return nil
}
