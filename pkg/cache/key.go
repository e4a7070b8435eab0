package cache

import (
	"strings"
)

// Key identifies a cached resource.
type Key struct {
	// Resource is the kind of the cached value (e.g. "workspaces", "label").
	Resource string

	// ID is the resource id, empty for singletons such as the workspace map.
	ID string

	// Scope is the workspace id or credential fingerprint the value belongs to.
	Scope string
}

// String generates a deterministic cache key string.
// Format: ximilar:<resource>:<scope>:<id>, with "-" standing for an empty part.
//
// Example:
//
//	ximilar:label:0a8c8186-aee8-47c8-9eaf-348103feb14d:8e0f5d4c-0b8a-4d5e-9d43-5c1d1d7a0a11
func (k Key) String() string {
	return strings.Join([]string{"ximilar", part(k.Resource), part(k.Scope), part(k.ID)}, ":")
}

func part(s string) string {
	s = strings.Trim(s, "/")
	if s == "" {
		return "-"
	}
	return s
}
