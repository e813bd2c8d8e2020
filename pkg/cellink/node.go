package cellink

import (
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

// Node is one materialized instance of a registered type: one (type, layer)
// pair of a Graph. All nodes of a graph except the bootstrap node are owned
// by the graph; nodes refer to each other and to the graph without owning
// them.
//
// A Node's forward state and value are written by Seek or by a Scheduler
// run. Reading them while a run is in progress is not synchronized.
type Node struct {
	id     string
	decl   *typeDecl
	layer  int
	layers int

	parents []*Node
	// alive is the MultiOr parent mask recorded just before forward runs.
	alive []bool

	state ForwardState
	err   error
	value any
	// blocked marks a node Seek found unready after driving its parents.
	blocked bool

	graph *Graph
}

func newNode(decl *typeDecl) *Node {
	return &Node{
		id:     uuid.NewString(),
		decl:   decl,
		layers: 1,
	}
}

// ID returns the node's process-unique identity token.
func (n *Node) ID() string { return n.id }

// Type returns the registered type name.
func (n *Node) Type() string { return n.decl.name }

// Name returns the node's surface name. Every layer of a type shares it.
func (n *Node) Name() string { return n.decl.surface }

// String returns the surface name.
func (n *Node) String() string { return n.decl.surface }

// Layer returns the node's quantum layer index.
func (n *Node) Layer() int { return n.layer }

// Layers returns how many layers the node's type resolved to.
func (n *Node) Layers() int { return n.layers }

// Kind returns the node's combinator kind.
func (n *Node) Kind() CombinatorKind { return n.decl.kind }

// IsRoot reports whether the node's type declares no parents.
func (n *Node) IsRoot() bool { return len(n.decl.groups) == 0 }

// IsQuantum reports whether the node's type resolved to more than one layer.
func (n *Node) IsQuantum() bool { return n.layers > 1 }

// State returns the node's forward state.
func (n *Node) State() ForwardState { return n.state }

// Err returns the error recorded when the node's forward computation failed
// with an error, or nil.
func (n *Node) Err() error { return n.err }

// Value returns the application payload set by the forward computation.
func (n *Node) Value() any { return n.value }

// SetValue stores the application payload. Forward computations call it on
// the node they are computing.
func (n *Node) SetValue(v any) { n.value = v }

// Graph returns the graph the node belongs to, or nil before materialization.
func (n *Node) Graph() *Graph { return n.graph }

// Parent returns the only parent of a single-parent node, or nil for roots
// and multi-parent nodes.
func (n *Node) Parent() *Node {
	if len(n.parents) != 1 {
		return nil
	}
	return n.parents[0]
}

// Parents returns the node's ordered parent list, unmasked.
func (n *Node) Parents() []*Node {
	return append([]*Node(nil), n.parents...)
}

// ParentList returns the ordered parent list as the forward computation
// should see it. For MultiOr nodes parents that did not succeed are replaced
// by nil so positions stay stable.
//
// Under Seek every parent has settled before a MultiOr node runs. Under a
// Scheduler the node is submitted as soon as one parent succeeds, so parents
// still running at that moment are hidden too and the visible list depends
// on timing.
func (n *Node) ParentList() []*Node {
	list := n.Parents()
	if n.decl.kind != MultiOr {
		return list
	}
	for i, p := range list {
		if n.alive != nil {
			if !n.alive[i] {
				list[i] = nil
			}
			continue
		}
		if p.state != Success {
			list[i] = nil
		}
	}
	return list
}

// Broadcasting returns the shared broadcast store of the node's graph, or
// nil before materialization.
func (n *Node) Broadcasting() map[string]any {
	if n.graph == nil {
		return nil
	}
	return n.graph.Broadcasting()
}

// Broadcast merges msg into the graph's broadcast store. It is a no-op
// before materialization.
func (n *Node) Broadcast(msg map[string]any) {
	if n.graph == nil {
		return
	}
	n.graph.Broadcast(msg)
}

// Seek evaluates the named node of this node's graph. See Graph.Seek.
func (n *Node) Seek(name string) (*Node, bool, error) {
	if n.graph == nil {
		return nil, false, fmt.Errorf("seek %q from %s: %w", name, n, ErrNotMaterialized)
	}
	return n.graph.Seek(name)
}

// outcome maps the forward state to what a child's combinator sees. An
// unvisited parent after being driven was forbidden, so it counts as dead.
func (n *Node) outcome() outcome {
	switch n.state {
	case Success:
		return succeeded
	case Failure:
		return failed
	default:
		return dead
	}
}

// runForward invokes the forward hook once and records the result.
// A returned error is wrapped in a *NodeError; a panic becomes a *PanicError.
func (n *Node) runForward() error {
	ok, err := n.callHook("forward", n.decl.forward)
	switch {
	case err != nil:
		n.state = Errored
		n.err = err
		return err
	case ok:
		n.state = Success
	default:
		n.state = Failure
	}
	return nil
}

// callHook runs fn with panic recovery.
func (n *Node) callHook(op string, fn func(*Node) (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Node:  n.String(),
				Layer: n.layer,
				Op:    op,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	ok, err = fn(n)
	if err != nil {
		return false, &NodeError{Node: n.String(), Layer: n.layer, Op: op, Err: err}
	}
	return ok, nil
}

// recordAlive stores the MultiOr mask for the given parent outcomes.
func (n *Node) recordAlive(parents []outcome) {
	if n.decl.kind != MultiOr {
		return
	}
	n.alive = make([]bool, len(parents))
	for i, o := range parents {
		n.alive[i] = o == succeeded
	}
}
