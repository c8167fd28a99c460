package nav

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Resolver filters the capability catalog down to what a permission set may
// see. Results are memoized per (surface, permission signature) since the
// catalog is static between administrative reloads; the cache is shared
// across concurrent requests and safe for concurrent use.
type Resolver struct {
	mu      sync.RWMutex
	catalog []Capability
	gen     uint64
	cache   map[string][]Capability
	group   singleflight.Group
}

// NewResolver constructs a Resolver over the given catalog. A nil catalog
// uses the built-in default.
func NewResolver(catalog []Capability) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	r := &Resolver{cache: make(map[string][]Capability)}
	r.setCatalog(catalog)
	return r
}

// Resolve returns the catalog entries for surface whose required permission
// is present in perms, in catalog declaration order. An unknown surface
// yields an empty result, not an error.
func (r *Resolver) Resolve(perms authz.Permissions, surface string) []Capability {
	key := surface + "|" + perms.Signature()

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	// Collapse concurrent identical resolutions into one computation.
	result, _, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		catalog, gen := r.catalog, r.gen
		r.mu.RUnlock()

		resolved := make([]Capability, 0, len(catalog))
		for _, entry := range catalog {
			if entry.Surface != surface {
				continue
			}
			if !perms.Has(entry.Required) {
				continue
			}
			resolved = append(resolved, entry)
		}

		r.memoize(key, resolved, gen)
		return resolved, nil
	})
	return result.([]Capability)
}

// memoize stores a resolution computed against catalog generation gen. A
// result from a catalog that was replaced mid-computation is discarded, so
// an invalidation can never be undone by an in-flight resolution.
func (r *Resolver) memoize(key string, resolved []Capability, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	r.cache[key] = resolved
	return true
}

// InvalidateAll drops every memoized resolution. Call after the catalog
// contents change.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.gen++
	r.cache = make(map[string][]Capability)
	r.mu.Unlock()
}

// SetCatalog replaces the catalog and invalidates the cache.
func (r *Resolver) SetCatalog(catalog []Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCatalogLocked(catalog)
	r.gen++
	r.cache = make(map[string][]Capability)
}

func (r *Resolver) setCatalog(catalog []Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCatalogLocked(catalog)
}

func (r *Resolver) setCatalogLocked(catalog []Capability) {
	copied := make([]Capability, len(catalog))
	copy(copied, catalog)
	for i := range copied {
		if copied[i].Label == "" {
			copied[i].Label = LabelFromKey(copied[i].Key)
		}
	}
	r.catalog = copied
}
