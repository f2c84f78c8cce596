package ota

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"einkcode-go/errcode"
)

// Response is a streaming HTTP response. Length is -1 when unknown.
type Response struct {
	Status int
	Length int64
	Body   io.ReadCloser
}

// Fetcher performs authenticated GETs.
type Fetcher interface {
	Get(ctx context.Context, url string, header map[string]string) (*Response, error)
}

// HTTPFetcher trusts exactly one root CA.
type HTTPFetcher struct {
	HTTP *http.Client
}

// NewHTTPFetcher pins rootCA (PEM). An empty or unparsable CA is
// unconfigured: no request is made without a trust anchor.
//
// timeout bounds the handshake and the wait for response headers only. A
// firmware body may take far longer to arrive; callers bound it with their
// context.
func NewHTTPFetcher(rootCA []byte, timeout time.Duration) (*HTTPFetcher, error) {
	if len(rootCA) == 0 {
		return nil, errcode.New(errcode.Unconfigured, "ota.fetcher", "root ca not set")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(rootCA) {
		return nil, errcode.New(errcode.Unconfigured, "ota.fetcher", "root ca not parsable")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tr := &http.Transport{
		TLSClientConfig:       &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	return &HTTPFetcher{HTTP: &http.Client{Transport: tr}}, nil
}

func (f *HTTPFetcher) Get(ctx context.Context, url string, header map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unconfigured, "ota.get", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unreachable, "ota.get", err)
	}
	return &Response{Status: resp.StatusCode, Length: resp.ContentLength, Body: resp.Body}, nil
}
