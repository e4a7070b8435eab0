package endpoint

import (
	"context"
	"encoding/json"
)

// WorkspaceKey is the argument name used for workspace scoping.
const WorkspaceKey = "workspace"

// Scoped wraps any Endpoint and adds one fixed argument to every call.
// It can wrap another Scoped endpoint; the outermost one has precedence,
// because its injected value reaches the inner layer as a caller argument
// and caller arguments override injected ones.
type Scoped struct {
	inner Endpoint
	key   string
	value any
}

// NewScoped creates an endpoint that injects key=value into the args of every call.
func NewScoped(inner Endpoint, key string, value any) *Scoped {
	return &Scoped{inner: inner, key: key, value: value}
}

// NewWorkspace scopes every call to the given workspace id.
func NewWorkspace(inner Endpoint, workspaceID string) *Scoped {
	return NewScoped(inner, WorkspaceKey, workspaceID)
}

// Scope returns the injected key and value.
func (s *Scoped) Scope() (string, any) {
	return s.key, s.value
}

// URL returns the base URL of the wrapped endpoint.
func (s *Scoped) URL() string {
	return s.inner.URL()
}

// Sub creates a scoped endpoint over inner.Sub(suffix) with the same scope.
func (s *Scoped) Sub(suffix string) Endpoint {
	return NewScoped(s.inner.Sub(suffix), s.key, s.value)
}

// Get calls GET on the wrapped endpoint with the scope merged into args.
func (s *Scoped) Get(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return s.inner.Get(ctx, suffix, s.merge(args))
}

// Post calls POST on the wrapped endpoint with the scope merged into args.
func (s *Scoped) Post(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return s.inner.Post(ctx, suffix, s.merge(args))
}

// Put calls PUT on the wrapped endpoint with the scope merged into args.
func (s *Scoped) Put(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return s.inner.Put(ctx, suffix, s.merge(args))
}

// Delete calls DELETE on the wrapped endpoint with the scope merged into args.
func (s *Scoped) Delete(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return s.inner.Delete(ctx, suffix, s.merge(args))
}

// merge builds a fresh args map; the caller's map is never modified.
func (s *Scoped) merge(args Args) Args {
	merged := make(Args, len(args)+1)
	merged[s.key] = s.value
	for k, v := range args {
		merged[k] = v
	}
	return merged
}
