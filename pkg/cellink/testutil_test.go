package cellink

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Shared fixtures for the package tests.

// newTestRegistry returns a registry that logs nowhere.
func newTestRegistry() *Registry {
	return NewRegistry(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// quietScheduler returns a scheduler that logs nowhere.
func quietScheduler(opts ...SchedulerOption) *Scheduler {
	base := []SchedulerOption{
		WithSchedulerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewScheduler(append(base, opts...)...)
}

// returns is a forward computation with a fixed result.
func returns(ok bool) ForwardFunc {
	return func(*Node) (bool, error) { return ok, nil }
}

// counted wraps fn and counts its invocations.
func counted(calls *atomic.Int32, fn ForwardFunc) ForwardFunc {
	return func(n *Node) (bool, error) {
		calls.Add(1)
		return fn(n)
	}
}

// raises is a forward computation that returns err.
func raises(err error) ForwardFunc {
	return func(*Node) (bool, error) { return false, err }
}

// valueOf sets a constant payload and succeeds.
func valueOf(v int) ForwardFunc {
	return func(n *Node) (bool, error) {
		n.SetValue(v)
		return true, nil
	}
}

// arithmetic is a binary operation over the two parents' integer payloads.
func arithmetic(op func(a, b int) int) ForwardFunc {
	return func(n *Node) (bool, error) {
		parents := n.ParentList()
		n.SetValue(op(parents[0].Value().(int), parents[1].Value().(int)))
		return true, nil
	}
}

var errDivideByZero = errors.New("division by zero")

// registerArithmetic declares the arithmetic graph:
//
//	input=3, factor=5   -> multiply=15 -> square=225
//	input, denominator=3 -> divide=1, numb=12 -> subtract=-11
//	square, subtract    -> plus=214
func registerArithmetic(t *testing.T, reg *Registry) {
	t.Helper()

	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}

	must(reg.Register("input", Single, nil, WithForward(valueOf(3))))
	must(reg.Register("factor", Single, nil, WithForward(valueOf(5))))
	must(reg.Register("denominator", Single, nil, WithForward(valueOf(3))))
	must(reg.Register("numb", Single, nil, WithForward(valueOf(12))))

	must(reg.Register("multiply", MultiAnd, Hook("input", "factor"),
		WithForward(arithmetic(func(a, b int) int { return a * b }))))
	must(reg.Register("square", Single, Hook("multiply"),
		WithForward(func(n *Node) (bool, error) {
			v := n.Parent().Value().(int)
			n.SetValue(v * v)
			return true, nil
		})))
	must(reg.Register("divide", MultiAnd, Hook("input", "denominator"),
		WithForward(func(n *Node) (bool, error) {
			parents := n.ParentList()
			d := parents[1].Value().(int)
			if d == 0 {
				return false, errDivideByZero
			}
			n.SetValue(parents[0].Value().(int) / d)
			return true, nil
		})))
	must(reg.Register("subtract", MultiAnd, Hook("divide", "numb"),
		WithForward(arithmetic(func(a, b int) int { return a - b }))))
	must(reg.Register("plus", MultiAnd, Hook("square", "subtract"),
		WithForward(arithmetic(func(a, b int) int { return a + b }))))
}

// buildGraph materializes typeName from reg, failing the test on error.
func buildGraph(t *testing.T, reg *Registry, typeName string) *Graph {
	t.Helper()
	g, err := reg.Build(typeName)
	require.NoError(t, err)
	return g
}

// lookup returns the named surface node, failing the test if absent.
func lookup(t *testing.T, g *Graph, name string) *Node {
	t.Helper()
	n, err := g.Lookup(name)
	require.NoError(t, err)
	return n
}
