// Package graph tracks tag and dependency relationships between cache
// keys so an invalidation can fan out from a tag or cascade from a
// parent key to everything derived from it.
package graph

import (
	"sync"
)

// Graph is an in-memory index of tag and dependency edges. All methods
// are safe for concurrent use; the single mutex is held only for map
// walks, never across I/O.
//
// Registrations are additive. Remove erases every edge touching a key
// and is called when the key is deleted from the tiers, which keeps the
// graph from outliving the data it describes.
type Graph struct {
	mu sync.Mutex

	// tagToKeys and keyToTags mirror each other.
	tagToKeys map[string][]string
	keyToTags map[string][]string

	// dependents maps a parent to the keys derived from it; parents is
	// the reverse index, kept so Remove can unhook a child cheaply.
	// Invalidating a parent cascades down dependents edges.
	dependents map[string][]string
	parents    map[string][]string
}

// Request describes one invalidation to resolve. Keys are taken as-is,
// Tags expand to every key registered under them, and Cascade extends
// the result with all transitive dependents.
type Request struct {
	Keys    []string
	Tags    []string
	Cascade bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		tagToKeys:  make(map[string][]string),
		keyToTags:  make(map[string][]string),
		dependents: make(map[string][]string),
		parents:    make(map[string][]string),
	}
}

// RegisterTags associates key with each tag. Duplicate registrations
// are no-ops.
func (g *Graph) RegisterTags(key string, tags []string) {
	if key == "" || len(tags) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, tag := range tags {
		if tag == "" {
			continue
		}
		g.tagToKeys[tag] = appendUnique(g.tagToKeys[tag], key)
		g.keyToTags[key] = appendUnique(g.keyToTags[key], tag)
	}
}

// RegisterDependencies records that each child is derived from parent:
// invalidating the parent cascades to the children. Self-edges are
// ignored; longer cycles are permitted and handled at resolve time.
func (g *Graph) RegisterDependencies(parent string, children []string) {
	if parent == "" || len(children) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, child := range children {
		if child == "" || child == parent {
			continue
		}
		g.dependents[parent] = appendUnique(g.dependents[parent], child)
		g.parents[child] = appendUnique(g.parents[child], parent)
	}
}

// Resolve expands a request into the distinct keys it names: explicit
// keys first, then tag members, then (when Cascade is set) a
// breadth-first walk down dependents edges. Each key appears at most
// once, in first-seen order, so cyclic dependencies terminate.
func (g *Graph) Resolve(req Request) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]struct{})
	result := make([]string, 0, len(req.Keys))

	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}

	for _, key := range req.Keys {
		add(key)
	}
	for _, tag := range req.Tags {
		for _, key := range g.tagToKeys[tag] {
			add(key)
		}
	}

	if req.Cascade {
		// result doubles as the BFS frontier: appending a child
		// schedules its own dependents for a later iteration.
		for i := 0; i < len(result); i++ {
			for _, child := range g.dependents[result[i]] {
				add(child)
			}
		}
	}

	return result
}

// Remove erases every edge touching key: its tag memberships, the
// edges to its children, and the edges from its parents.
func (g *Graph) Remove(key string) {
	if key == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, tag := range g.keyToTags[key] {
		g.tagToKeys[tag] = removeString(g.tagToKeys[tag], key)
		if len(g.tagToKeys[tag]) == 0 {
			delete(g.tagToKeys, tag)
		}
	}
	delete(g.keyToTags, key)

	for _, child := range g.dependents[key] {
		g.parents[child] = removeString(g.parents[child], key)
		if len(g.parents[child]) == 0 {
			delete(g.parents, child)
		}
	}
	delete(g.dependents, key)

	for _, parent := range g.parents[key] {
		g.dependents[parent] = removeString(g.dependents[parent], key)
		if len(g.dependents[parent]) == 0 {
			delete(g.dependents, parent)
		}
	}
	delete(g.parents, key)
}

// Clear drops every edge. Used when the cache is flushed.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tagToKeys = make(map[string][]string)
	g.keyToTags = make(map[string][]string)
	g.dependents = make(map[string][]string)
	g.parents = make(map[string][]string)
}

// TagLen returns the number of tags with at least one member.
func (g *Graph) TagLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tagToKeys)
}

// KeyLen returns the number of distinct keys with at least one edge.
func (g *Graph) KeyLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]struct{}, len(g.keyToTags))
	for key := range g.keyToTags {
		seen[key] = struct{}{}
	}
	for key := range g.dependents {
		seen[key] = struct{}{}
	}
	for key := range g.parents {
		seen[key] = struct{}{}
	}
	return len(seen)
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeString(slice []string, item string) []string {
	for i, s := range slice {
		if s == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
