package modelfetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// newTransferClient returns an HTTP client tuned for large streaming
// downloads. There is no overall request timeout: a transfer legitimately
// runs for as long as bytes keep arriving. Slow or dead servers are bounded
// by the header and idle timeouts instead.
func newTransferClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			DisableCompression:    true, // raw bytes, offsets must stay byte-accurate
		},
	}
}

// openStream issues a range-capable GET for url. When offset > 0 the request
// asks for bytes from offset to the end; a server that ignores the range and
// replies 200 signals that by returning gotOffset = 0, and the caller must
// restart its artifact from scratch. contentLength is the length of the
// returned stream, -1 if unknown.
//
// The request is single-shot: retry policy lives in the worker's bounded
// attempt loop, not here.
func openStream(ctx context.Context, client HTTPClient, url string, offset int64) (body io.ReadCloser, contentLength, gotOffset int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("creating request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, resp.ContentLength, offset, nil
	case http.StatusOK:
		// Full-content reply; any requested range was not honored.
		return resp.Body, resp.ContentLength, 0, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		// The artifact is at least as long as the remote resource; treat as
		// a restart from scratch so verification decides its fate.
		return nil, 0, 0, fmt.Errorf("%w: range %d not satisfiable", ErrNetworkError, offset)
	default:
		resp.Body.Close()
		return nil, 0, 0, fmt.Errorf("%w: unexpected status %d", ErrNetworkError, resp.StatusCode)
	}
}

// sleepBackoff waits for an exponentially increasing duration with jitter
// before reattempt number attempt (1-based). Returns early with the context
// error on cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := InitialBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}

	// Jitter: 0.5 to 1.5 of the base backoff.
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
