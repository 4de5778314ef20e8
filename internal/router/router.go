// Package router implements longest-prefix mount resolution: a global
// virtual path is resolved to the adapter mounted over it, its backend
// instance, the backend-specific effective root, and the remaining
// relative path (spec §4.D).
package router

import (
	"context"
	"sort"
	"strings"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

// Resolution is the ephemeral result of routing a virtual path (spec §3
// "Mount resolution unit").
type Resolution struct {
	Record        *types.StorageAdapter
	Adapter       backend.Adapter
	EffectiveRoot string
	Rel           string
}

// Router resolves virtual paths against the live adapter registry.
type Router struct {
	registry *adapter.Registry
}

// New creates a Router over registry.
func New(registry *adapter.Registry) *Router {
	return &Router{registry: registry}
}

// Resolve implements the five steps of spec §4.D for the normalized
// absolute path p.
func (r *Router) Resolve(ctx context.Context, p string) (*Resolution, error) {
	rec := r.longestMount(p)
	if rec == nil {
		return nil, errors.NotFound("router", "no adapter mounted over "+p)
	}

	rel := strings.TrimPrefix(p, rec.Path)
	rel = strings.TrimPrefix(rel, "/")

	ad, _, err := r.registry.Get(rec.ID)
	if err != nil {
		return nil, err
	}

	root, err := ad.ResolveRoot(rec.SubPath)
	if err != nil {
		return nil, errors.UpstreamError("router", "resolve_root", 0, err.Error())
	}

	return &Resolution{Record: rec, Adapter: ad, EffectiveRoot: root, Rel: rel}, nil
}

// longestMount returns the enabled adapter record whose mount path is the
// longest prefix of p (§4.D steps 1-2). Mount paths are unique among
// enabled adapters, so no tie-break is ever needed.
func (r *Router) longestMount(p string) *types.StorageAdapter {
	var best *types.StorageAdapter
	for _, rec := range r.registry.Snapshot() {
		if !isMountPrefix(rec.Path, p) {
			continue
		}
		if best == nil || len(rec.Path) > len(best.Path) {
			best = rec
		}
	}
	return best
}

// isMountPrefix reports whether mount equals p, or is a "/"-delimited
// prefix of p.
func isMountPrefix(mount, p string) bool {
	if mount == p {
		return true
	}
	if mount == "/" {
		return true
	}
	return strings.HasPrefix(p, mount+"/")
}

// ChildMounts returns the names of adapter mounts that are immediate
// children of p — i.e. mount paths strictly longer than p whose first
// extra segment contains no further "/" (spec §4.D "Synthetic cross-mount
// listings").
func (r *Router) ChildMounts(p string) []string {
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var names []string
	for _, rec := range r.registry.Snapshot() {
		if rec.Path == p || !strings.HasPrefix(rec.Path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(rec.Path, prefix)
		if rest == "" {
			continue
		}
		name := strings.SplitN(rest, "/", 2)[0]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
