package cellink

import "fmt"

// Retrace walks upward from n looking for the instance named name.
//
// n itself matches when its surface name equals name. Otherwise n's backward
// computation decides whether to keep scanning: true recurses into every
// parent in order and returns the first match, false stops here. Backward
// computations are not memoized and may run on every call.
//
// An unknown name returns an *UnknownNodeError. Not finding a known name
// returns (nil, false, nil).
func (n *Node) Retrace(name string) (*Node, bool, error) {
	if n.graph == nil {
		return nil, false, fmt.Errorf("retrace %q from %s: %w", name, n, ErrNotMaterialized)
	}
	if _, err := n.graph.Lookup(name); err != nil {
		return nil, false, err
	}

	found, err := retrace(n, func(c *Node) bool { return c.String() == name })
	if err != nil || found == nil {
		return nil, false, err
	}
	return found, true, nil
}

// Sweep runs backward computations upward from n for their side effects,
// following parents wherever a backward computation returns true.
func (n *Node) Sweep() error {
	if n.graph == nil {
		return fmt.Errorf("sweep from %s: %w", n, ErrNotMaterialized)
	}
	_, err := retrace(n, func(*Node) bool { return false })
	return err
}

func retrace(n *Node, match func(*Node) bool) (*Node, error) {
	if match(n) {
		return n, nil
	}

	cont, err := n.callHook("backward", n.decl.backward)
	if err != nil || !cont {
		return nil, err
	}

	for _, p := range n.parents {
		found, err := retrace(p, match)
		if err != nil || found != nil {
			return found, err
		}
	}
	return nil, nil
}
