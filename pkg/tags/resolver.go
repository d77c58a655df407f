package tags

import (
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Resolver answers goto queries against the index. An empty result is a
// normal negative, not an error. A single match comes back as a one-element
// slice, which editors treat as a direct redirect; multiple matches are
// listed in stable (document, range start) order.
type Resolver struct {
	index *Index
}

func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index}
}

// GotoDefinition returns the definition sites for a tag identifier.
func (r *Resolver) GotoDefinition(name string) []protocol.Location {
	defs, _ := r.index.Lookup(name)
	return locations(defs)
}

// GotoReference returns the reference sites for a tag identifier.
func (r *Resolver) GotoReference(name string) []protocol.Location {
	_, refs := r.index.Lookup(name)
	return locations(refs)
}

// GotoImplementation returns the definition sites carrying the implementation
// marker, falling back to the full definition set if none are marked.
func (r *Resolver) GotoImplementation(name string) []protocol.Location {
	defs, _ := r.index.Lookup(name)
	var impls []Tag
	for _, d := range defs {
		if d.Implementation {
			impls = append(impls, d)
		}
	}
	if len(impls) == 0 {
		impls = defs
	}
	return locations(impls)
}

func locations(in []Tag) []protocol.Location {
	if len(in) == 0 {
		return nil
	}
	out := make([]protocol.Location, 0, len(in))
	for _, t := range in {
		loc := t.Location()
		// Lookup order is stable, so duplicates are adjacent.
		if len(out) > 0 && compareLocations(out[len(out)-1], loc) == 0 {
			continue
		}
		out = append(out, loc)
	}
	return out
}
