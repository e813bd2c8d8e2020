package cellink

import "maps"

// Graph is a materialized instance graph. It owns every node except the
// bootstrap node, which stays with the caller.
//
// Seek and Retrace are synchronous and must not be called concurrently on
// the same graph. The broadcast store is unsynchronized: do not touch it
// from forward computations while a Scheduler is running them.
type Graph struct {
	bootstrap *Node
	// nodes holds every instance, ordered by type name then layer.
	nodes   []*Node
	byType  map[string][]*Node
	surface map[string]*Node
	board   map[string]any
}

// Bootstrap returns the caller-owned node the graph was materialized from.
func (g *Graph) Bootstrap() *Node { return g.bootstrap }

// Lookup returns the surface (layer 0) instance with the given name.
func (g *Graph) Lookup(name string) (*Node, error) {
	n, ok := g.surface[name]
	if !ok {
		return nil, &UnknownNodeError{Name: name}
	}
	return n, nil
}

// Nodes returns every instance of the graph ordered by type then layer.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Surface returns the layer 0 instance of every type, ordered by type.
func (g *Graph) Surface() []*Node {
	out := make([]*Node, 0, len(g.surface))
	for _, n := range g.nodes {
		if n.layer == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Traverse calls fn on every surface instance, ordered by type.
func (g *Graph) Traverse(fn func(n *Node)) {
	for _, n := range g.nodes {
		if n.layer == 0 {
			fn(n)
		}
	}
}

// Layers returns every layer instance of the named type, in layer order.
func (g *Graph) Layers(name string) ([]*Node, error) {
	n, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]*Node(nil), g.byType[n.Type()]...), nil
}

// Broadcasting returns the graph's shared broadcast store. The map is live:
// writes through it are visible to every node.
func (g *Graph) Broadcasting() map[string]any { return g.board }

// Broadcast merges msg into the shared broadcast store.
func (g *Graph) Broadcast(msg map[string]any) {
	maps.Copy(g.board, msg)
}

// owns reports whether n is an instance of this graph.
func (g *Graph) owns(n *Node) bool {
	return n != nil && n.graph == g
}
