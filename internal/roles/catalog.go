package roles

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Definition is a compiled-in role. An empty TargetKind marks a global role.
type Definition struct {
	Name        string
	SourceKind  string
	TargetKind  string
	DisplayName string
	// Priority ranks the role inside its scope; lower is more privileged.
	Priority int
	// Primary roles are mutually exclusive for one holder within one scope.
	Primary bool
}

// Scope selects catalog entries by the kind of holder and the kind of target.
// A nil or empty kind list stands for {null}.
type Scope struct {
	SourceKinds []string
	TargetKinds []string
}

// ScopeOf builds the scope of a single (source, target) pair. Pass an empty
// targetKind for global roles.
func ScopeOf(sourceKind, targetKind string) Scope {
	return Scope{SourceKinds: []string{sourceKind}, TargetKinds: []string{targetKind}}
}

// GlobalScope is the scope of roles held by sourceKind with no target.
func GlobalScope(sourceKind string) Scope {
	return ScopeOf(sourceKind, "")
}

func kindsOrNull(kinds []string) []string {
	if len(kinds) == 0 {
		return []string{""}
	}
	return kinds
}

// Catalog is the immutable table of role definitions.
type Catalog struct {
	defs []Definition
}

// NewCatalog validates defs and freezes them in declaration order.
func NewCatalog(defs []Definition) (*Catalog, error) {
	seen := make(map[string]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		d.SourceKind = strings.TrimSpace(d.SourceKind)
		d.TargetKind = strings.TrimSpace(d.TargetKind)
		if d.Name == "" || d.SourceKind == "" {
			return nil, fmt.Errorf("%w: role name and source kind are required", ErrInvalidInput)
		}
		key := d.Name + "\x00" + d.SourceKind + "\x00" + d.TargetKind
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s (%s -> %s)", ErrDuplicateRole, d.Name, d.SourceKind, displayKind(d.TargetKind))
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return &Catalog{defs: out}, nil
}

// MustCatalog is NewCatalog for compiled-in tables.
func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns a copy of the catalog in declaration order.
func (c *Catalog) Definitions() []Definition {
	return slices.Clone(c.defs)
}

// Match reports whether def belongs to scope.
func (c *Catalog) Match(def Definition, scope Scope) bool {
	return slices.Contains(kindsOrNull(scope.SourceKinds), def.SourceKind) &&
		slices.Contains(kindsOrNull(scope.TargetKinds), def.TargetKind)
}

// Find returns the definition called name within scope.
func (c *Catalog) Find(name string, scope Scope) (Definition, bool) {
	for _, d := range c.defs {
		if d.Name == name && c.Match(d, scope) {
			return d, true
		}
	}
	return Definition{}, false
}

// HighestPriority returns the most privileged definition of scope whose name
// is in names. Equal priorities resolve to the earlier declaration.
func (c *Catalog) HighestPriority(names []string, scope Scope, primaryOnly bool) (Definition, bool) {
	var (
		best  Definition
		found bool
	)
	for _, d := range c.defs {
		if primaryOnly && !d.Primary {
			continue
		}
		if !c.Match(d, scope) || !slices.Contains(names, d.Name) {
			continue
		}
		if !found || d.Priority < best.Priority {
			best, found = d, true
		}
	}
	return best, found
}

// HigherPriorityNames lists the names of scope strictly more privileged than
// name, most privileged first.
func (c *Catalog) HigherPriorityNames(name string, scope Scope) ([]string, error) {
	ref, ok := c.Find(name, scope)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return c.namesWhere(scope, func(d Definition) bool { return d.Priority < ref.Priority }), nil
}

// LowerPriorityNames lists the names of scope strictly less privileged than
// name, most privileged first.
func (c *Catalog) LowerPriorityNames(name string, scope Scope) ([]string, error) {
	ref, ok := c.Find(name, scope)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return c.namesWhere(scope, func(d Definition) bool { return d.Priority > ref.Priority }), nil
}

// PrimaryNames lists the primary roles of scope in declaration order.
func (c *Catalog) PrimaryNames(scope Scope) []string {
	var names []string
	for _, d := range c.defs {
		if d.Primary && c.Match(d, scope) {
			names = append(names, d.Name)
		}
	}
	return names
}

// TopNames returns the n most privileged names of scope.
func (c *Catalog) TopNames(scope Scope, n int) []string {
	names := c.namesWhere(scope, func(Definition) bool { return true })
	if n < len(names) {
		names = names[:n]
	}
	return names
}

// Compare returns +1 when a outranks b, -1 when b outranks a and 0 on equal
// priority.
func (c *Catalog) Compare(a, b string, scope Scope) (int, error) {
	da, ok := c.Find(a, scope)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRole, a)
	}
	db, ok := c.Find(b, scope)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRole, b)
	}
	return sign(db.Priority - da.Priority), nil
}

// CompareHighest compares the most privileged role of each side.
func (c *Catalog) CompareHighest(as, bs []string, scope Scope) (int, error) {
	da, ok := c.HighestPriority(as, scope, false)
	if !ok {
		return 0, fmt.Errorf("%w: none of %v", ErrUnknownRole, as)
	}
	db, ok := c.HighestPriority(bs, scope, false)
	if !ok {
		return 0, fmt.Errorf("%w: none of %v", ErrUnknownRole, bs)
	}
	return sign(db.Priority - da.Priority), nil
}

func (c *Catalog) namesWhere(scope Scope, keep func(Definition) bool) []string {
	var picked []Definition
	for _, d := range c.defs {
		if c.Match(d, scope) && keep(d) {
			picked = append(picked, d)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Priority < picked[j].Priority })
	names := make([]string, 0, len(picked))
	for _, d := range picked {
		names = append(names, d.Name)
	}
	return names
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func displayKind(kind string) string {
	if kind == "" {
		return "global"
	}
	return kind
}
