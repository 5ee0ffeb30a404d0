// Package transport implements the single choke point through which every
// platform request is issued. It bounds in-flight requests with a shared
// admission limiter, retries transient platform failures and classifies
// responses into the apperror taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

const (
	defaultMaxConcurrent = 5
	defaultAttempts      = 3
	defaultRetryInterval = time.Second
	defaultChunkSize     = 64 * 1024
)

// Request describes one platform call. Name tags the request in errors and
// logs.
type Request struct {
	Name          string
	Method        string
	Endpoint      string
	Payload       any
	ExtractResult bool
}

// envelope is the response shape shared by every JSON endpoint.
type envelope struct {
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Executor issues requests against one platform base URL.
type Executor struct {
	baseURL       string
	client        *http.Client
	limiter       *semaphore.Weighted
	attempts      int
	retryInterval time.Duration
	chunkSize     int

	mu      sync.RWMutex
	headers func() http.Header
}

// New creates an Executor with the given options applied.
func New(baseURL string, opts ...Option) *Executor {
	e := &Executor{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        http.DefaultClient,
		limiter:       semaphore.NewWeighted(defaultMaxConcurrent),
		attempts:      defaultAttempts,
		retryInterval: defaultRetryInterval,
		chunkSize:     defaultChunkSize,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithMaxConcurrent sets the admission limiter capacity.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.limiter = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLimiter shares an existing limiter between executors.
func WithLimiter(l *semaphore.Weighted) Option {
	return func(e *Executor) { e.limiter = l }
}

// WithRetry sets the attempt count and the fixed interval between attempts.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(e *Executor) {
		if attempts > 0 {
			e.attempts = attempts
		}
		e.retryInterval = interval
	}
}

// WithChunkSize sets the buffer size used when streaming downloads.
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// SetHeaderSource sets the function consulted for request headers. It is
// called after admission, so a token refreshed while a request was queued is
// still picked up.
func (e *Executor) SetHeaderSource(fn func() http.Header) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers = fn
}

// Do issues a JSON request and returns the response body, or its "result"
// field when req.ExtractResult is set. A 2xx non-JSON response yields nil.
func (e *Executor) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	var out json.RawMessage
	err := e.retry(ctx, req, func(res *http.Response) error {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return apperror.Wrap(apperror.Platform, fmt.Sprintf("read %s response", req.Name), err)
		}
		if !isJSON(res.Header.Get("Content-Type")) {
			out = nil
			return nil
		}
		out, err = unwrap(req, body)
		return err
	})
	return out, err
}

// Stream issues a request and copies the response body into w in chunks.
// Retries are only attempted while nothing has been written yet.
func (e *Executor) Stream(ctx context.Context, req Request, w io.Writer) (int64, error) {
	var n int64
	err := e.retry(ctx, req, func(res *http.Response) error {
		buf := make([]byte, e.chunkSize)
		var err error
		n, err = io.CopyBuffer(onlyWriter{w}, res.Body, buf)
		if err != nil {
			return fmt.Errorf("stream %s: %w", req.Name, err)
		}
		return nil
	})
	return n, err
}

// retry runs attempts of req until handle succeeds, a non-retryable error
// occurs, or the attempt budget is spent.
func (e *Executor) retry(ctx context.Context, req Request, handle func(*http.Response) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.retryInterval):
			}
		}

		err := e.once(ctx, req, handle)
		if err == nil {
			return nil
		}
		if !apperror.Is(err, apperror.Platform) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		slog.Warn("request failed, retrying", "request", req.Name, "attempt", attempt, "of", e.attempts, "error", err)
	}
	return apperror.Wrap(apperror.MaxRetries,
		fmt.Sprintf("maximum request tries exceeded for %s", req.Name), lastErr)
}

// once performs a single admitted attempt.
func (e *Executor) once(ctx context.Context, req Request, handle func(*http.Response) error) error {
	if err := e.limiter.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.limiter.Release(1)

	httpReq, err := e.newRequest(ctx, req)
	if err != nil {
		return err
	}

	res, err := e.client.Do(httpReq) //nolint:gosec // URL built from configured base URL
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperror.Wrap(apperror.Platform, fmt.Sprintf("platform unreachable for %s", req.Name), err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := classify(req.Name, res); err != nil {
		return err
	}
	return handle(res)
}

func (e *Executor) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Payload != nil {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", req.Name, err)
		}
		body = bytes.NewReader(b)
	}

	url := e.baseURL + "/" + strings.TrimLeft(req.Endpoint, "/")
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Name, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		httpReq.Header.Set("Accept", "application/json")
	}

	e.mu.RLock()
	headers := e.headers
	e.mu.RUnlock()
	if headers != nil {
		for k, vs := range headers() {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
	}
	return httpReq, nil
}

// classify maps a response status onto the error taxonomy.
func classify(name string, res *http.Response) error {
	switch code := res.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusLocked:
		return apperror.New(apperror.AuthInvalid, "wrong login credentials, change credentials and try again")
	case code == http.StatusUnauthorized:
		return apperror.New(apperror.TokenInvalid, "wrong token")
	case code >= 500:
		return apperror.New(apperror.Platform, fmt.Sprintf("platform failed to process request %s (HTTP %d)", name, code))
	default:
		return apperror.New(apperror.Protocol, fmt.Sprintf("unexpected HTTP %d for %s", code, name))
	}
}

func unwrap(req Request, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperror.Wrap(apperror.Protocol, fmt.Sprintf("decode %s response", req.Name), err)
	}
	if env.Error != "" {
		return nil, apperror.New(apperror.Protocol, fmt.Sprintf("%s: platform reported: %s", req.Name, env.Error))
	}
	if !req.ExtractResult {
		return body, nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, apperror.New(apperror.Protocol, fmt.Sprintf("%s: response has no result", req.Name))
	}
	return env.Result, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// onlyWriter hides ReaderFrom implementations so io.CopyBuffer honours the
// chunk buffer.
type onlyWriter struct{ io.Writer }
