package endpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the per-call deadline applied by HTTP.
const DefaultTimeout = 90 * time.Second

// Result is the uniform shape of one HTTP exchange. The transport never
// interprets Content.
type Result struct {
	Status int
	// ContentType is the media type without parameters, empty when absent.
	ContentType string
	Content     []byte
}

// Transport is the raw, string-level contract implemented by HTTP and by
// decorators over it.
type Transport interface {
	Get(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error)
	Post(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error)
	Put(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error)
	Delete(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error)
	Sub(suffix string) Transport
	URL() string
}

// HTTP performs requests against a fixed base URL.
type HTTP struct {
	url     string
	timeout time.Duration
	retry   RetryConfig
	client  *http.Client
	logger  zerolog.Logger
	debug   bool
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithRetry sets the connection retry policy.
func WithRetry(cfg RetryConfig) HTTPOption {
	return func(h *HTTP) {
		h.retry = cfg
	}
}

// WithHTTPClient sets a custom HTTP client (for testing or custom transports).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// WithLogger sets the logger used for retry and debug output.
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = logger
	}
}

// WithDebug dumps every request and reply at debug level.
func WithDebug(enabled bool) HTTPOption {
	return func(h *HTTP) {
		h.debug = enabled
	}
}

// NewHTTP creates a transport for baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:     baseURL,
		timeout: DefaultTimeout,
		retry:   DefaultRetryConfig(),
		client:  &http.Client{},
		logger:  log.With().Str("component", "endpoint").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// URL returns the base URL of the transport.
func (h *HTTP) URL() string {
	return h.url
}

// Sub creates a transport whose base URL is the current one with suffix appended.
func (h *HTTP) Sub(suffix string) Transport {
	sub := *h
	sub.url = joinURL(h.url, suffix)
	return &sub
}

// Get performs HTTP GET with params as the query string.
func (h *HTTP) Get(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error) {
	return h.call(ctx, http.MethodGet, suffix, params, nil, headers)
}

// Post performs HTTP POST with body as the request body.
func (h *HTTP) Post(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error) {
	return h.call(ctx, http.MethodPost, suffix, nil, body, headers)
}

// Put performs HTTP PUT with body as the request body.
func (h *HTTP) Put(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error) {
	return h.call(ctx, http.MethodPut, suffix, nil, body, headers)
}

// Delete performs HTTP DELETE with params as the query string.
func (h *HTTP) Delete(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error) {
	return h.call(ctx, http.MethodDelete, suffix, params, nil, headers)
}

func (h *HTTP) call(ctx context.Context, method, suffix string, params url.Values, body []byte, headers http.Header) (*Result, error) {
	target, err := withQuery(joinURL(h.url, suffix), params)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	var result *Result
	err = retryConnection(ctx, h.retry, method, h.logger.With().Str("method", method).Str("url", target).Logger(), func() error {
		r, err := h.do(ctx, method, target, body, headers)
		if err != nil {
			h.logger.Debug().Err(err).Str("url", target).Msg("HTTP request failed")
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		status := "network_error"
		if errors.Is(err, ErrTimeout) {
			status = "timeout"
		}
		requestsTotal.WithLabelValues(method, status).Inc()
		return nil, err
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(result.Status)).Inc()
	return result, nil
}

// do runs one attempt. The per-call deadline covers reading the body.
func (h *HTTP) do(ctx context.Context, method, target string, body []byte, headers http.Header) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if h.debug {
		h.dumpRequest(req, body)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, timeoutError(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, timeoutError(ctx, callCtx, err)
	}

	result := &Result{
		Status:      resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Content:     content,
	}

	if h.debug {
		h.dumpReply(result)
	}

	return result, nil
}

// timeoutError marks err as ErrTimeout when the per-call deadline fired.
// Errors caused by the caller's own context are returned unchanged.
func timeoutError(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func (h *HTTP) dumpRequest(req *http.Request, body []byte) {
	headers := req.Header.Clone()
	if headers.Get("Authorization") != "" {
		headers.Set("Authorization", "<redacted>")
	}
	h.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Interface("headers", headers).
		Bytes("body", body).
		Msg("HTTP request")
}

func (h *HTTP) dumpReply(result *Result) {
	h.logger.Debug().
		Int("status", result.Status).
		Str("content_type", result.ContentType).
		Bytes("content", result.Content).
		Msg("HTTP reply")
}

// joinURL appends suffix to base with exactly one slash at the seam.
// A suffix starting with "?" is a query and is appended verbatim.
func joinURL(base, suffix string) string {
	switch {
	case suffix == "":
		return base
	case base == "", strings.HasPrefix(suffix, "?"):
		return base + suffix
	case strings.HasSuffix(base, "/") && strings.HasPrefix(suffix, "/"):
		return base + strings.TrimLeft(suffix, "/")
	case strings.HasSuffix(base, "/") || strings.HasPrefix(suffix, "/"):
		return base + suffix
	default:
		return base + "/" + suffix
	}
}

// withQuery merges params into the query string of target. A key present in
// both is taken from params, so following a server cursor that already
// carries the scope does not repeat it.
func withQuery(target string, params url.Values) (string, error) {
	if len(params) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	query := u.Query()
	for key, values := range params {
		query.Del(key)
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt, _, _ = strings.Cut(header, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}
