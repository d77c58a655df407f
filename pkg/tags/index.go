package tags

import (
	"slices"
	"sync"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Index is the workspace-wide mapping from tag identifier to its definition
// and reference sites. Entries are owned per document: an update replaces
// everything previously recorded for that document atomically with respect to
// readers. Update ordering for the same document is the caller's problem (the
// document store serializes mutations per identity); updates for different
// documents commute.
type Index struct {
	mu    sync.RWMutex
	byDoc map[protocol.DocumentURI][]Tag
	defs  map[string][]Tag
	refs  map[string][]Tag
}

func NewIndex() *Index {
	return &Index{
		byDoc: map[protocol.DocumentURI][]Tag{},
		defs:  map[string][]Tag{},
		refs:  map[string][]Tag{},
	}
}

// Update replaces all entries owned by uri with newTags.
func (x *Index) Update(uri protocol.DocumentURI, newTags []Tag) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.evictLocked(uri)
	if len(newTags) == 0 {
		return
	}
	x.byDoc[uri] = slices.Clone(newTags)
	for _, t := range newTags {
		if t.Role == RoleDefinition {
			x.defs[t.Name] = append(x.defs[t.Name], t)
		} else {
			x.refs[t.Name] = append(x.refs[t.Name], t)
		}
	}
}

// Remove evicts all entries owned by uri, typically on document close.
func (x *Index) Remove(uri protocol.DocumentURI) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.evictLocked(uri)
}

func (x *Index) evictLocked(uri protocol.DocumentURI) {
	old, ok := x.byDoc[uri]
	if !ok {
		return
	}
	delete(x.byDoc, uri)
	for _, t := range old {
		m := x.refs
		if t.Role == RoleDefinition {
			m = x.defs
		}
		kept := slices.DeleteFunc(m[t.Name], func(e Tag) bool { return e.URI == uri })
		if len(kept) == 0 {
			delete(m, t.Name)
		} else {
			m[t.Name] = kept
		}
	}
}

// Lookup returns the definition and reference sites for a tag identifier, in
// stable (document, range start) order. Both slices are copies; an unknown
// identifier yields empty results.
func (x *Index) Lookup(name string) (defs, refs []Tag) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return sortedTags(x.defs[name]), sortedTags(x.refs[name])
}

// DocumentTags returns the currently indexed tags owned by uri.
func (x *Index) DocumentTags(uri protocol.DocumentURI) []Tag {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.byDoc[uri])
}

// DefinitionCount reports how many definition sites exist for an identifier.
func (x *Index) DefinitionCount(name string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.defs[name])
}

// Names returns all tag identifiers with at least one definition site.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := make([]string, 0, len(x.defs))
	for name := range x.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func sortedTags(in []Tag) []Tag {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Tag) int {
		return compareLocations(a.Location(), b.Location())
	})
	return out
}
