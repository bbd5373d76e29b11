// internal/adapters/rest/executor.go
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_sync/internal/adapters/observability"
	"hotel_sync/internal/domain"
)

// Executor sends typed JSON requests to one upstream API. It holds no state
// besides configuration and is safe for concurrent use.
type Executor struct {
	service string
	base    string
	hc      *http.Client
	rl      *rate.Limiter
}

type Options struct {
	Service string
	BaseURL string
	Timeout time.Duration
	Auth    Auth
	RPS     int
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

func New(o Options) (*Executor, error) {
	if o.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", o.Service)
	}
	if o.Auth == nil {
		return nil, fmt.Errorf("%s: credentials are required", o.Service)
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	base := o.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Executor{
		service: o.Service,
		base:    strings.TrimRight(o.BaseURL, "/"),
		hc: &http.Client{
			Timeout:   o.Timeout,
			Transport: &authTransport{next: base, auth: o.Auth},
		},
		rl: rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
	}, nil
}

func (e *Executor) Service() string { return e.service }

// Do executes method on path. GET and DELETE encode query; POST and PUT encode
// body as JSON. A non-2xx response is an upstream error carrying status and body.
func (e *Executor) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := e.rl.Wait(ctx); err != nil {
		return domain.Upstream(e.service, 0, "", err)
	}

	u := e.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.Validation("encode %s %s payload: %v", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return domain.Upstream(e.service, 0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hotel-sync/1.0")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := e.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(e.service, method, 0, time.Since(start))
		return domain.Upstream(e.service, 0, "", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(e.service, method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Upstream(e.service, resp.StatusCode, strings.TrimSpace(string(b)), nil)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		// the call reached the upstream but its answer is unusable
		return domain.Upstream(e.service, http.StatusBadGateway, "", fmt.Errorf("decode %d response: %w", resp.StatusCode, err))
	}
	return nil
}
