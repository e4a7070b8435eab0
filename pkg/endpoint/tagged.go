package endpoint

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-call request id added by WithRequestID.
const RequestIDHeader = "X-Request-ID"

// Tagged wraps a Transport and adds fixed headers to every call.
// Headers supplied by the caller win over the fixed ones.
type Tagged struct {
	inner     Transport
	headers   http.Header
	requestID bool
}

// TaggedOption configures a Tagged transport.
type TaggedOption func(*Tagged)

// WithRequestID adds a fresh X-Request-ID to every call.
func WithRequestID() TaggedOption {
	return func(t *Tagged) {
		t.requestID = true
	}
}

// NewTagged creates a transport adding headers to every call of inner.
func NewTagged(inner Transport, headers http.Header, opts ...TaggedOption) *Tagged {
	t := &Tagged{inner: inner, headers: headers.Clone()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the base URL of the wrapped transport.
func (t *Tagged) URL() string {
	return t.inner.URL()
}

// Sub creates a tagged transport over inner.Sub(suffix).
func (t *Tagged) Sub(suffix string) Transport {
	return &Tagged{inner: t.inner.Sub(suffix), headers: t.headers, requestID: t.requestID}
}

// Get delegates to the wrapped transport with the tags merged into headers.
func (t *Tagged) Get(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error) {
	return t.inner.Get(ctx, suffix, params, t.merge(headers))
}

// Post delegates to the wrapped transport with the tags merged into headers.
func (t *Tagged) Post(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error) {
	return t.inner.Post(ctx, suffix, body, t.merge(headers))
}

// Put delegates to the wrapped transport with the tags merged into headers.
func (t *Tagged) Put(ctx context.Context, suffix string, body []byte, headers http.Header) (*Result, error) {
	return t.inner.Put(ctx, suffix, body, t.merge(headers))
}

// Delete delegates to the wrapped transport with the tags merged into headers.
func (t *Tagged) Delete(ctx context.Context, suffix string, params url.Values, headers http.Header) (*Result, error) {
	return t.inner.Delete(ctx, suffix, params, t.merge(headers))
}

func (t *Tagged) merge(headers http.Header) http.Header {
	merged := t.headers.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	if t.requestID {
		merged.Set(RequestIDHeader, uuid.NewString())
	}
	for key, values := range headers {
		merged[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	return merged
}
