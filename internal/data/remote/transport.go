package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// Reporter receives the outcome of every remote call. The connectivity
// monitor implements it.
type Reporter interface {
	ReportSuccess()
	ReportFailure(err error)
}

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 32 << 20

// maxErrorWidth bounds the response text kept in an APIError.
const maxErrorWidth = 200

// Option configures a Client or an Asker.
type Option func(*transport)

// WithHTTPClient replaces the HTTP client. Its timeout is kept unless
// WithTimeout is also given; the client itself is never modified.
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) { t.http = c }
}

// WithTimeout sets the per-request timeout. Zero leaves the client's timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *transport) { t.timeout = d }
}

// WithReporter forwards call outcomes to r.
func WithReporter(r Reporter) Option {
	return func(t *transport) { t.reporter = r }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *transport) { t.metrics = m }
}

type transport struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	reporter Reporter
	metrics  *metrics.Metrics
}

func newTransport(baseURL string, opts []Option) *transport {
	t := &transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.timeout > 0 && t.timeout != t.http.Timeout {
		c := *t.http
		c.Timeout = t.timeout
		t.http = &c
	}
	return t
}

// do performs a request and returns the body of a 2xx response.
func (t *transport) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: "read body: " + err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		msg = util.TruncateToWidth(msg, maxErrorWidth)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: msg}
	}
	return data, nil
}

// finish reports the outcome of op. Cancellation by the caller is not a
// connectivity signal and is not reported.
func (t *transport) finish(op string, started time.Time, err error) {
	t.metrics.ObserveRemote(op, err, time.Since(started))
	if t.reporter == nil {
		return
	}
	if err == nil {
		t.reporter.ReportSuccess()
		return
	}
	if errors.Is(err, context.Canceled) {
		util.LogDebugf("remote %s canceled", op)
		return
	}
	t.reporter.ReportFailure(err)
}
