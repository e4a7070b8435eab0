package ximilar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/ximilar-client/pkg/cache"
	"github.com/Sternrassler/ximilar-client/pkg/config"
	"github.com/Sternrassler/ximilar-client/pkg/endpoint"
	"github.com/Sternrassler/ximilar-client/pkg/pagination"
	"github.com/Sternrassler/ximilar-client/pkg/record"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	workspacePath = "account/v2/workspace/"
	authorizePath = "authorization/v2/authorize"
)

// DefaultCacheTTL bounds how long single objects such as labels are cached.
const DefaultCacheTTL = 10 * time.Minute

var (
	// ErrWorkspaceNotFound is returned when a workspace name is not known to the account.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrEmptyReply is returned when the service answered 204 where an object was expected.
	ErrEmptyReply = errors.New("empty reply")
)

// Options configures an App created by New.
type Options struct {
	// Token or JWT authenticates the requests. One of them is required.
	Token string
	JWT   string

	// BaseURL of the API (default https://api.ximilar.com/).
	BaseURL string

	// Timeout of a single request (default 90s).
	Timeout time.Duration

	// UserAgent overrides the default client identifier.
	UserAgent string

	// ProxyURL is a known proxy in front of the API. Pagination links
	// starting with it are treated as relative to BaseURL.
	ProxyURL string

	// Debug dumps requests and replies at debug level.
	Debug bool

	// Cache stores workspaces and labels (default in-memory).
	Cache cache.Store

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

// Option configures an App created by NewWithEndpoint.
type Option func(*App)

// WithCache sets the store for cached data.
func WithCache(store cache.Store) Option {
	return func(a *App) {
		a.cache = store
	}
}

// WithCacheScope separates the cache entries of this app from apps using
// other credentials on the same store.
func WithCacheScope(scope string) Option {
	return func(a *App) {
		a.scope = scope
	}
}

// WithCacheTTL sets how long labels are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *App) {
		a.ttl = ttl
	}
}

// WithStripPrefixes adds URL prefixes that pagination links may start with.
func WithStripPrefixes(prefixes ...string) Option {
	return func(a *App) {
		a.prefixes = append(a.prefixes, prefixes...)
	}
}

// WithEncoder sets the encoder used for image records.
func WithEncoder(enc *record.Encoder) Option {
	return func(a *App) {
		a.encoder = enc
	}
}

// WithLogger overrides the package logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// App is the main entry point for working with Ximilar services.
type App struct {
	ep        endpoint.Endpoint
	cache     cache.Store
	scope     string
	workspace string
	ttl       time.Duration
	prefixes  []string
	encoder   *record.Encoder
	logger    zerolog.Logger
	closers   []io.Closer
}

// New creates an App talking to the API over HTTP.
func New(opts Options) (*App, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}

	logger := log.With().Str("component", "ximilar").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	httpOpts := []endpoint.HTTPOption{
		endpoint.WithLogger(logger),
		endpoint.WithDebug(opts.Debug),
	}
	if opts.Timeout > 0 {
		httpOpts = append(httpOpts, endpoint.WithTimeout(opts.Timeout))
	}
	transport := endpoint.NewTagged(endpoint.NewHTTP(opts.BaseURL, httpOpts...), nil, endpoint.WithRequestID())

	var defaultOpts []endpoint.DefaultOption
	if opts.UserAgent != "" {
		defaultOpts = append(defaultOpts, endpoint.WithUserAgent(opts.UserAgent))
	}
	ep, err := endpoint.NewDefault(transport, endpoint.Credentials{Token: opts.Token, JWT: opts.JWT}, defaultOpts...)
	if err != nil {
		return nil, err
	}

	appOpts := []Option{
		WithCacheScope(credentialScope(opts.BaseURL, opts.Token, opts.JWT)),
		WithLogger(logger),
	}
	if opts.Cache != nil {
		appOpts = append(appOpts, WithCache(opts.Cache))
	}
	if opts.ProxyURL != "" {
		appOpts = append(appOpts, WithStripPrefixes(opts.ProxyURL))
	}

	return NewWithEndpoint(ep, appOpts...), nil
}

// NewWithEndpoint creates an App over an existing endpoint chain.
func NewWithEndpoint(ep endpoint.Endpoint, opts ...Option) *App {
	a := &App{
		ep:     ep,
		ttl:    DefaultCacheTTL,
		logger: log.With().Str("component", "ximilar").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = cache.NewMemoryStore()
	}
	if a.scope == "" {
		a.scope = ep.URL()
	}
	if a.encoder == nil {
		a.encoder = record.NewEncoder()
	}
	return a
}

// credentialScope derives a stable cache scope that does not expose the secret.
func credentialScope(baseURL, token, jwt string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(baseURL+"\x00"+token+"\x00"+jwt)).String()
}

// Endpoint returns the endpoint chain of the app.
func (a *App) Endpoint() endpoint.Endpoint {
	return a.ep
}

// Workspace returns the id of the workspace the app is scoped to, or "".
func (a *App) Workspace() string {
	return a.workspace
}

// Close releases resources the app owns, such as a Redis connection opened
// by FromEnv.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a *App) workspacesKey() cache.Key {
	return cache.Key{Resource: "workspaces", Scope: a.scope}
}

// Workspaces returns the workspaces available to the user as a map from
// name to id. The list is cached until Invalidate is called.
func (a *App) Workspaces(ctx context.Context) (map[string]string, error) {
	var cached map[string]string
	_, err := cache.GetJSON(ctx, a.cache, a.workspacesKey(), &cached)
	if err == nil {
		a.logger.Debug().Str("key", a.workspacesKey().String()).Msg("Workspaces cache hit")
		return cached, nil
	}
	a.logCacheError(err, "get")

	list, err := a.listWorkspaces(ctx)
	if err != nil {
		return nil, err
	}

	workspaces := make(map[string]string, len(list))
	for _, w := range list {
		workspaces[w.Name] = w.ID
	}

	if err := cache.SetJSON(ctx, a.cache, a.workspacesKey(), workspaces, 0); err != nil {
		a.logCacheError(err, "set")
	}
	return workspaces, nil
}

// listWorkspaces accepts both a plain list and a paginated listing.
func (a *App) listWorkspaces(ctx context.Context) ([]workspace, error) {
	raw, err := a.ep.Get(ctx, workspacePath, nil)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []workspace
		if err := jsonAPI.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode workspaces: %w", err)
		}
		return list, nil
	}

	var page struct {
		Next    *string     `json:"next"`
		Results []workspace `json:"results"`
		Detail  *string     `json:"detail"`
	}
	if err := jsonAPI.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}
	if page.Results == nil {
		if page.Detail != nil {
			return nil, &pagination.UpstreamError{Detail: *page.Detail}
		}
		return nil, pagination.ErrUnexpectedPage
	}
	if page.Next == nil || *page.Next == "" {
		return page.Results, nil
	}

	next := pagination.Relative(*page.Next, a.ep.URL(), a.prefixes...)
	rest, err := pagination.Collect[workspace](ctx, a.ep, next, nil, a.pageOptions()...)
	if err != nil {
		return nil, err
	}
	return append(page.Results, rest...), nil
}

// Invalidate drops the cached workspace list.
func (a *App) Invalidate(ctx context.Context) error {
	return a.cache.Delete(ctx, a.workspacesKey())
}

// WorkspaceByName returns an app working with the named workspace.
func (a *App) WorkspaceByName(ctx context.Context, name string) (*App, error) {
	workspaces, err := a.Workspaces(ctx)
	if err != nil {
		return nil, err
	}

	id, ok := workspaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, name)
	}
	return a.WorkspaceByID(id), nil
}

// WorkspaceByID returns an app working with the workspace id. The new app
// shares the cache of a.
func (a *App) WorkspaceByID(id string) *App {
	scoped := *a
	scoped.ep = endpoint.NewWorkspace(a.ep, id)
	scoped.workspace = id
	scoped.prefixes = append([]string(nil), a.prefixes...)
	scoped.logger = a.logger.With().Str("workspace", id).Logger()
	scoped.closers = nil
	return &scoped
}

// IsResourceAccessible reports whether the credentials may use the named
// resource. A 401 from the service means false; other failures are returned.
func (a *App) IsResourceAccessible(ctx context.Context, resource string) (bool, error) {
	_, err := a.ep.Post(ctx, authorizePath, endpoint.Args{"service": resource})
	if err == nil {
		return true, nil
	}
	if endpoint.IsStatus(err, http.StatusUnauthorized) {
		return false, nil
	}
	return false, err
}

// Recognition gives access to the recognition application.
func (a *App) Recognition() *Recognition {
	return &Recognition{app: a}
}

func (a *App) pageOptions() []pagination.Option {
	return []pagination.Option{
		pagination.WithStripPrefixes(a.prefixes...),
		pagination.WithLogger(a.logger),
	}
}

// objectKey is the cache key of a workspace-bound object.
func (a *App) objectKey(resource, id string) cache.Key {
	scope := a.scope
	if a.workspace != "" {
		scope += "/" + a.workspace
	}
	return cache.Key{Resource: resource, ID: id, Scope: scope}
}

// logCacheError logs cache failures other than a plain miss. The app falls
// back to the service on every cache error.
func (a *App) logCacheError(err error, operation string) {
	if err == nil || errors.Is(err, cache.ErrCacheMiss) {
		return
	}
	a.logger.Warn().Err(err).Str("operation", operation).Msg("Cache error, using service")
}

// decodeObject decodes a reply that must carry a body.
func decodeObject(raw json.RawMessage, v any) error {
	if raw == nil {
		return ErrEmptyReply
	}
	return endpoint.Decode(raw, v)
}
