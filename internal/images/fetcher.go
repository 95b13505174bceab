// Package images fetches evidence images for embedding into rendered pages.
package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"portfolio/pkg/platform/circuit"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxBytes = 5 << 20
)

var (
	ErrTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupported = errors.New("unsupported image type")
	// ErrHostUnavailable is returned without a request while the host's
	// circuit is open.
	ErrHostUnavailable = errors.New("image host unavailable")
)

// Fetcher resolves an image reference to a data URI the renderer can inline.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

var allowedTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// HTTPFetcher downloads images over HTTP(S) with a per-request timeout and a
// size cap.
type HTTPFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64

	breakerOpts []circuit.Option
	mu          sync.Mutex
	breakers    map[string]*circuit.Breaker
}

type Option func(*HTTPFetcher)

// WithClient replaces the default client, whose dialer refuses internal
// addresses.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// WithBreaker configures the circuit breaker kept for each image host. A host
// that keeps timing out or failing is skipped until a probe succeeds, so one
// dead host does not cost a full timeout per image.
func WithBreaker(opts ...circuit.Option) Option {
	return func(f *HTTPFetcher) {
		f.breakerOpts = opts
	}
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   newGuardedClient(),
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
		breakerOpts: []circuit.Option{
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(1),
		},
		breakers: make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) breaker(host string) *circuit.Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[host]
	if !ok {
		b = circuit.New(host, f.breakerOpts...)
		f.breakers[host] = b
	}
	return b
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	b := f.breaker(u.Host)
	if !b.Allow() {
		return "", fmt.Errorf("%w: %s", ErrHostUnavailable, u.Host)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		b.RecordFailure()
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		b.RecordFailure()
		return "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	b.RecordSuccess()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", ErrTooLarge
	}
	if !allowedTypes[contentType] {
		contentType = http.DetectContentType(body)
		if !allowedTypes[contentType] {
			return "", fmt.Errorf("%w: %s", ErrUnsupported, contentType)
		}
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
