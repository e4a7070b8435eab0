package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/ximilar-client/pkg/endpoint"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrUnexpectedPage is returned when a page has neither results nor a detail message.
	ErrUnexpectedPage = errors.New("unexpected page: missing results")

	// ErrForeignCursor is returned when a next URL does not belong to the endpoint.
	ErrForeignCursor = errors.New("next url outside endpoint base")
)

// UpstreamError carries the detail message of a page without results.
type UpstreamError struct {
	Detail string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %s", e.Detail)
}

// page is one reply of a list endpoint.
type page struct {
	Count   int                `json:"count"`
	Next    *string            `json:"next"`
	Results *[]json.RawMessage `json:"results"`
	Detail  *string            `json:"detail"`
}

// Option configures pagination.
type Option func(*options)

type options struct {
	prefixes []string
	logger   zerolog.Logger
}

// WithStripPrefixes adds URL prefixes removed from next links in addition to
// the endpoint base URL, e.g. a proxy the server reports itself behind.
func WithStripPrefixes(prefixes ...string) Option {
	return func(o *options) {
		o.prefixes = append(o.prefixes, prefixes...)
	}
}

// WithLogger sets the logger for page fetches.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: log.With().Str("component", "pagination").Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Relative converts an absolute next URL into a suffix relative to base.
// The base, the base with https downgraded to http, and every extra prefix
// are tried in that order; a next URL matching none is returned unchanged.
func Relative(next, base string, prefixes ...string) string {
	candidates := make([]string, 0, len(prefixes)+2)
	candidates = append(candidates, base)
	if strings.HasPrefix(base, "https") {
		candidates = append(candidates, "http"+strings.TrimPrefix(base, "https"))
	}
	candidates = append(candidates, prefixes...)

	for _, prefix := range candidates {
		if prefix != "" && strings.HasPrefix(next, prefix) {
			return strings.TrimPrefix(next, prefix)
		}
	}
	return next
}

// Iterator walks a paginated listing lazily. It is not safe for concurrent
// use and cannot be restarted.
type Iterator struct {
	ctx      context.Context
	ep       endpoint.Endpoint
	path     string
	args     endpoint.Args
	opts     options
	items    []json.RawMessage
	count    int
	pageInfo *iterator.PageInfo
	nextFunc func() error
}

// NewIterator creates an iterator over the listing at path. args are sent
// with the first request only; later pages are addressed by the server's
// next links.
func NewIterator(ctx context.Context, ep endpoint.Endpoint, path string, args endpoint.Args, opts ...Option) *Iterator {
	it := &Iterator{
		ctx:  ctx,
		ep:   ep,
		path: path,
		args: args,
		opts: newOptions(opts),
	}
	it.pageInfo, it.nextFunc = iterator.NewPageInfo(
		it.fetch,
		func() int { return len(it.items) },
		func() interface{} { b := it.items; it.items = nil; return b },
	)
	return it
}

// PageInfo supports pagination. See the google.golang.org/api/iterator package for details.
func (it *Iterator) PageInfo() *iterator.PageInfo {
	return it.pageInfo
}

// Next returns the next item. Its second return value is iterator.Done if
// there are no more results. Once Next returns Done, all subsequent calls
// will return Done.
func (it *Iterator) Next() (json.RawMessage, error) {
	if err := it.nextFunc(); err != nil {
		return nil, err
	}
	item := it.items[0]
	it.items = it.items[1:]
	return item, nil
}

// Count returns the total reported by the last fetched page.
func (it *Iterator) Count() int {
	return it.count
}

// fetch loads one page. An empty token means the first page.
func (it *Iterator) fetch(pageSize int, pageToken string) (string, error) {
	suffix, args := it.path, it.args
	if pageToken != "" {
		suffix, args = pageToken, nil
	}

	it.opts.logger.Debug().
		Str("base", it.ep.URL()).
		Str("suffix", suffix).
		Msg("Fetching page")

	raw, err := it.ep.Get(it.ctx, suffix, args)
	if err != nil {
		return "", err
	}

	var p page
	if raw != nil {
		if err := jsonAPI.Unmarshal(raw, &p); err != nil {
			return "", fmt.Errorf("decode page: %w", err)
		}
	}

	if p.Results == nil {
		if p.Detail != nil {
			return "", &UpstreamError{Detail: *p.Detail}
		}
		return "", ErrUnexpectedPage
	}

	it.items = append(it.items, *p.Results...)
	it.count = p.Count

	if p.Next == nil || *p.Next == "" {
		return "", nil
	}

	next := Relative(*p.Next, it.ep.URL(), it.opts.prefixes...)
	if strings.Contains(next, "://") {
		return "", fmt.Errorf("%w: %s", ErrForeignCursor, next)
	}
	return next, nil
}

// All follows next links from path until the last page and returns every
// item in server order.
func All(ctx context.Context, ep endpoint.Endpoint, path string, args endpoint.Args, opts ...Option) ([]json.RawMessage, error) {
	it := NewIterator(ctx, ep, path, args, opts...)
	var items []json.RawMessage
	for {
		item, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	it.opts.logger.Debug().
		Str("path", path).
		Int("items", len(items)).
		Msg("Pagination complete")

	return items, nil
}

// Collect is All with every item decoded into T.
func Collect[T any](ctx context.Context, ep endpoint.Endpoint, path string, args endpoint.Args, opts ...Option) ([]T, error) {
	raws, err := All(ctx, ep, path, args, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := jsonAPI.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
