package flake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Transport issues one GET and reports the HTTP status code. The deadline
// travels on ctx. Implementations must not retry.
type Transport interface {
	Fetch(ctx context.Context, url string) (statusCode int, err error)
}

// HTTPTransport is the default Transport backed by net/http.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// drain so the connection goes back to the pool
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// QueryURL joins an endpoint base address and a query path.
func QueryURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}

// Probe performs one timed request. It never returns an error: transport and
// status failures are folded into the Outcome. Cancelling ctx does not abort
// the request; only timeout bounds it.
func Probe(ctx context.Context, t Transport, url string, timeout time.Duration) Outcome {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	code, err := t.Fetch(reqCtx, url)
	latency := time.Since(start)

	if err != nil {
		return Outcome{Kind: classify(err), Latency: latency, Err: err}
	}
	if code < 200 || code > 299 {
		return Outcome{
			Kind:       FailureStatus,
			StatusCode: code,
			Latency:    latency,
			Err:        fmt.Errorf("HTTP %d %s", code, http.StatusText(code)),
		}
	}
	return Outcome{Kind: FailureNone, StatusCode: code, Latency: latency}
}

func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}
