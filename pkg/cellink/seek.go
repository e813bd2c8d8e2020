package cellink

import "fmt"

// Seek evaluates the named surface node and everything it depends on.
//
// Parents are driven depth-first in declared order. Each node runs its
// forward computation at most once per graph; a node whose combinator is not
// satisfied after its parents were driven is left Unvisited and never runs.
//
// Seek returns (node, true, nil) when the target ended in Success and
// (nil, false, nil) when it failed or was forbidden. An error from any
// forward computation on the way aborts evaluation and is returned. Looking
// up an unknown name returns an *UnknownNodeError.
func (g *Graph) Seek(name string) (*Node, bool, error) {
	n, err := g.Lookup(name)
	if err != nil {
		return nil, false, err
	}
	return g.SeekNode(n)
}

// SeekNode is Seek addressed by handle. Any layer of a quantum type may be
// passed.
func (g *Graph) SeekNode(n *Node) (*Node, bool, error) {
	switch {
	case n == nil || n.graph == nil:
		return nil, false, fmt.Errorf("seek: %w", ErrNotMaterialized)
	case !g.owns(n):
		return nil, false, fmt.Errorf("seek %s: %w", n, ErrForeignNode)
	}

	if err := drive(n); err != nil {
		return nil, false, err
	}
	if n.state != Success {
		return nil, false, nil
	}
	return n, true, nil
}

// drive settles n. It returns the error stored on n, or on the first
// ancestor that errored.
func drive(n *Node) error {
	switch n.state {
	case Success, Failure:
		return nil
	case Errored:
		return n.err
	}
	if n.blocked {
		return nil
	}

	outcomes := make([]outcome, len(n.parents))
	for i, p := range n.parents {
		if err := drive(p); err != nil {
			return err
		}
		outcomes[i] = p.outcome()
	}

	// Driven parents never change state, so an unready node stays unready.
	if !n.decl.kind.ready(outcomes) {
		n.blocked = true
		return nil
	}
	n.recordAlive(outcomes)
	return n.runForward()
}
