/*
Package cellink evaluates declarative dependency graphs.

# Overview

Node types are registered once with a combinator kind and their parent
types. From any registered type a concrete graph is materialized: every type
connected to it becomes one or more node instances wired to their parents.
The graph can then be evaluated lazily with Seek, unwound with Retrace, or
driven concurrently by a Scheduler.

# Declaring Types

	reg := cellink.NewRegistry()

	reg.MustRegister("input", cellink.Single, nil,
	    cellink.WithForward(func(n *cellink.Node) (bool, error) {
	        n.SetValue(3)
	        return true, nil
	    }))

	reg.MustRegister("square", cellink.Single, cellink.Hook("input"),
	    cellink.WithForward(func(n *cellink.Node) (bool, error) {
	        v := n.Parent().Value().(int)
	        n.SetValue(v * v)
	        return true, nil
	    }))

Parent types may be registered in any order. References are checked when a
graph is materialized.

# Combinators

  - Single runs once its one parent succeeded. A Single type without parents
    is a root.
  - MultiAnd runs once every parent succeeded.
  - MultiOr runs once any parent succeeded; ParentList hides the others.
  - Not runs once its parent ran and failed.
  - ParallelDisplay behaves like Single.

A forward computation returning false is ordinary data flow, not an error:
it blocks the node's AND/Single children and enables its Not children.

# Quantum Layers

A parent group that resolves to several parent instances makes the declaring
type quantum: it gets one instance (layer) per entry. Quantize stacks several
types into one group; At picks one explicit layer:

	reg.MustRegister("double", cellink.Single,
	    []cellink.ParentGroup{cellink.Quantize("left", "right")})  // 2 layers
	reg.MustRegister("pick", cellink.Single,
	    []cellink.ParentGroup{{cellink.At("double", 1)}})         // 1 layer

Groups of one entry are broadcast to every layer of their siblings. Any
other length disagreement between groups is an error.

# Evaluation

	g, err := reg.Build("input")
	if err != nil {
	    return err
	}
	node, ok, err := g.Seek("square")

Seek drives parents depth-first and runs each forward computation at most
once per graph. Types with no path to the bootstrap type are not part of the
graph; seeking them returns an *UnknownNodeError.

# Concurrency

Seek, Retrace and the broadcast store are single-threaded. A Scheduler runs
forward computations in a bounded worker pool:

	s := cellink.NewScheduler(cellink.WithWorkers(4))
	err := s.ForwardTo(ctx, node)

An error from one node does not stop unrelated branches; it is returned once
the run has converged.

# Error Handling

Configuration errors are typed and wrap sentinels, so both forms work:

	if errors.Is(err, cellink.ErrDuplicateName) { ... }

	var mismatch *cellink.LineageMismatchError
	if errors.As(err, &mismatch) { ... }

Errors raised by forward computations are wrapped in *NodeError; panics are
recovered into *PanicError with the stack trace.
*/
package cellink
