// Package endpoint provides the composable endpoint chain used to talk to the
// Ximilar REST API: a raw HTTP transport, an authenticated JSON endpoint, and
// decorators (workspace scoping, header tagging) that satisfy the same contracts
// and can be stacked in any order.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// Args are the arguments of a call: query parameters for GET and DELETE,
// the JSON body for POST and PUT.
type Args map[string]any

// Clone returns a shallow copy of the args; nil stays nil.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Endpoint is the four-operation JSON contract shared by Default, Scoped and
// any other decorator. A nil result with a nil error means the server replied
// 204 No Content.
type Endpoint interface {
	Get(ctx context.Context, suffix string, args Args) (json.RawMessage, error)
	Post(ctx context.Context, suffix string, args Args) (json.RawMessage, error)
	Put(ctx context.Context, suffix string, args Args) (json.RawMessage, error)
	Delete(ctx context.Context, suffix string, args Args) (json.RawMessage, error)
	Sub(suffix string) Endpoint
	URL() string
}

// Decode unmarshals a raw endpoint result into v. A nil result leaves v untouched.
func Decode(raw json.RawMessage, v any) error {
	if raw == nil {
		return nil
	}
	if err := jsonAPI.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// queryValues converts args to query parameters. Slices repeat the key,
// nil values are dropped. Keys are emitted in sorted order.
func queryValues(args Args) url.Values {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, key := range keys {
		switch v := args[key].(type) {
		case nil:
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		case []int:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
	return values
}
