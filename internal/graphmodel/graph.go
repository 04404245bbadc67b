package graphmodel

import "sync"

// Graph is the in-memory arena of nodes and edges assembled by one ingest
// (spec §9: "represent the Graph as arenas of nodes and edges indexed by
// stable ids"). A Graph is owned exclusively by the ingest that built it;
// it is never shared across concurrent ingests (spec §5).
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*Node
	edges map[string]*Edge // keyed by EdgeKey, deduplicates re-emitted edges

	// defIndex maps a file path to the Class/Function nodes defined in it,
	// filled by AddNode and consumed by the Reference Resolver to turn an
	// LSP-resolved location into a graph node id (spec §4.3/§4.4).
	defIndex map[string][]*Node
}

// NewGraph returns an empty arena.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		defIndex: make(map[string][]*Node),
	}
}

// AddNode inserts or overwrites a node by id and indexes it for resolution
// lookups keyed by its containing file path.
func (g *Graph) AddNode(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID] = n
	if n.Kind == KindClass || n.Kind == KindFunction {
		g.defIndex[n.Path] = append(g.defIndex[n.Path], n)
	}
}

// AddEdge inserts an edge, deduplicating on (from, to, kind).
func (g *Graph) AddEdge(e *Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[EdgeKey(e.FromID, e.ToID, string(e.Kind))] = e
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns a snapshot slice of every node currently in the arena.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns a snapshot slice of every edge currently in the arena.
func (g *Graph) Edges() []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// RemoveNode deletes a node and every edge incident to it (DETACH semantics,
// spec §3.4: "deleted ... when their file is removed" and invariant §3.3.4's
// orphan-documentation garbage collection both rely on this).
func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)
	if n.Kind == KindClass || n.Kind == KindFunction {
		defs := g.defIndex[n.Path]
		for i, d := range defs {
			if d.ID == id {
				g.defIndex[n.Path] = append(defs[:i], defs[i+1:]...)
				break
			}
		}
	}
	for key, e := range g.edges {
		if e.FromID == id || e.ToID == id {
			delete(g.edges, key)
		}
	}
}

// IncomingEdges returns every edge in the arena whose ToID is id.
func (g *Graph) IncomingEdges(id string) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*Edge
	for _, e := range g.edges {
		if e.ToID == id {
			out = append(out, e)
		}
	}
	return out
}

// NodesByKind returns a snapshot slice of every node of the given kind.
func (g *Graph) NodesByKind(kind NodeKind) []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// DefinitionsInFile returns the Class/Function nodes defined in path, used
// by the resolver to find the innermost enclosing definition whose span
// contains a resolved LSP location.
func (g *Graph) DefinitionsInFile(path string) []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Node(nil), g.defIndex[path]...)
}

// InnermostEnclosing returns the Class/Function node in path whose span
// [StartLine,EndLine] contains line and is the smallest such span (spec
// §4.4 point 3: "choose the innermost enclosing definition").
func (g *Graph) InnermostEnclosing(path string, line int) (*Node, bool) {
	defs := g.DefinitionsInFile(path)
	var best *Node
	for _, n := range defs {
		if line < n.StartLine || line > n.EndLine {
			continue
		}
		if best == nil || (n.EndLine-n.StartLine) < (best.EndLine-best.StartLine) {
			best = n
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
