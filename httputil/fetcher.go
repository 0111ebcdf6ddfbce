// Package httputil provides the shared rate-limited HTTP fetcher every
// source client goes through.
package httputil

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Sentinel source errors. Clients translate HTTP and envelope failures
// into these so callers can branch with errors.Is.
var (
	// ErrAccessDenied covers 401/403 and expired keys. Never retried.
	ErrAccessDenied = errors.New("source access denied")
	// ErrUnavailable covers timeouts, 5xx and 429 after retries ran out.
	ErrUnavailable = errors.New("source unavailable")
	// ErrSemantic covers 2xx responses whose body signals failure.
	ErrSemantic = errors.New("source semantic error")
	// ErrEmpty marks a well-formed response with zero records.
	ErrEmpty = errors.New("source returned no records")
)

const (
	maxAttempts    = 3
	backoffBase    = 2 * time.Second
	requestTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second
)

// Fetcher executes GET requests against one source with a token-bucket
// delay between requests and exponential-backoff retries. It also counts
// calls so batch jobs can observe quota pressure and cool down.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	headers   map[string]string
	backoff   time.Duration
	callCount atomic.Int64
}

// NewFetcher builds a Fetcher that spaces requests at least delay apart
// and sends the given headers on every request.
func NewFetcher(delay time.Duration, headers map[string]string) *Fetcher {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConnsPerHost: 4,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		headers: headers,
		backoff: backoffBase,
	}
}

// CallCount returns the number of requests issued since the last reset.
func (f *Fetcher) CallCount() int64 {
	return f.callCount.Load()
}

// ResetCallCount zeroes the call counter, typically after a cooldown.
func (f *Fetcher) ResetCallCount() {
	f.callCount.Store(0)
}

// Get fetches rawURL with query params and returns the body. It retries
// up to three times with exponential backoff (base 2s), waits double on
// 429, and gives up straight away on 401/403.
func (f *Fetcher) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	return f.get(ctx, rawURL, params, nil)
}

// get runs the retry loop. When decode is non-nil it runs on each
// received body and a decode failure retries like a transport one:
// sources intermittently answer 200 with a truncated or error page.
func (f *Fetcher) get(ctx context.Context, rawURL string, params url.Values, decode func([]byte) error) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		f.callCount.Add(1)

		body, retryAfter, err := f.doOnce(ctx, target)
		if err == nil && decode != nil {
			if derr := decode(body); derr != nil {
				err = fmt.Errorf("decode: %v", derr)
			}
		}
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrAccessDenied) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			wait := f.backoffWait(attempt, retryAfter)
			log.Printf("[fetch] attempt %d/%d failed for %s: %v (retrying in %s)",
				attempt+1, maxAttempts, rawURL, err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// doOnce performs a single request. retryAfter is true when the server
// asked us to slow down (429).
func (f *Fetcher) doOnce(ctx context.Context, target string) (body []byte, retryAfter bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: status %d", ErrAccessDenied, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited (429)")
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}

// GetJSON fetches a JSON body into out, retrying malformed bodies.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	_, err := f.get(ctx, rawURL, params, func(body []byte) error {
		return json.Unmarshal(body, out)
	})
	return err
}

// GetXML fetches an XML body into out, retrying malformed bodies.
func (f *Fetcher) GetXML(ctx context.Context, rawURL string, params url.Values, out any) error {
	_, err := f.get(ctx, rawURL, params, func(body []byte) error {
		return xml.Unmarshal(body, out)
	})
	return err
}

// backoffWait returns base*2^attempt, doubled when the server sent 429.
func (f *Fetcher) backoffWait(attempt int, rateLimited bool) time.Duration {
	wait := time.Duration(math.Pow(2.0, float64(attempt)) * float64(f.backoff))
	if rateLimited {
		wait *= 2
	}
	return wait
}
