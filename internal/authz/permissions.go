package authz

import (
	"encoding/json"
	"sort"
	"strings"
)

// Permissions is the composed, deduplicated set of permission names for an
// identity. Membership checks are O(1); serialization and signatures are
// deterministic (sorted) so equal sets always produce equal bytes.
type Permissions map[string]struct{}

// NewPermissions builds a set from the given names, collapsing duplicates
// and dropping empty entries.
func NewPermissions(names ...string) Permissions {
	p := make(Permissions, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p[name] = struct{}{}
	}
	return p
}

// Has reports membership.
func (p Permissions) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Add inserts names into the set.
func (p Permissions) Add(names ...string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p[name] = struct{}{}
	}
}

// Names returns the members in sorted order.
func (p Permissions) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns a deterministic key for the set, used to memoize
// derived results such as resolved navigation.
func (p Permissions) Signature() string {
	return strings.Join(p.Names(), ",")
}

// Equal reports whether both sets contain exactly the same names.
func (p Permissions) Equal(other Permissions) bool {
	if len(p) != len(other) {
		return false
	}
	for name := range p {
		if _, ok := other[name]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	out := make(Permissions, len(p))
	for name := range p {
		out[name] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of names.
func (p Permissions) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Names())
}

// UnmarshalJSON decodes an array of names into the set.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*p = NewPermissions(names...)
	return nil
}
