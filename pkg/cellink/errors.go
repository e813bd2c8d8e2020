package cellink

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for type declaration and lineage resolution.
var (
	// ErrDuplicateType indicates a type name was registered twice.
	ErrDuplicateType = errors.New("duplicate type")

	// ErrInvalidDeclaration indicates a malformed Register call.
	ErrInvalidDeclaration = errors.New("invalid type declaration")

	// ErrArity indicates the parent group count does not fit the combinator kind.
	ErrArity = errors.New("combinator arity mismatch")

	// ErrUnknownType indicates a type name that was never registered.
	ErrUnknownType = errors.New("unknown type")

	// ErrLineageMismatch indicates parent groups that resolve to different lengths.
	ErrLineageMismatch = errors.New("parent layer count mismatch")

	// ErrLayerRange indicates an explicit layer index beyond the parent's layers.
	ErrLayerRange = errors.New("parent layer out of range")

	// ErrLineageCycle indicates a type that is its own ancestor.
	ErrLineageCycle = errors.New("lineage cycle")
)

// Sentinel errors for materialization and evaluation.
var (
	// ErrDuplicateName indicates two surface instances share a name.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrUnknownNode indicates a lookup by a name that is not in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNotMaterialized indicates a node that does not belong to any graph yet.
	ErrNotMaterialized = errors.New("node is not part of a graph")

	// ErrForeignNode indicates a node handle that belongs to another graph.
	ErrForeignNode = errors.New("node belongs to another graph")

	// ErrAlreadyMaterialized indicates a bootstrap node that already owns a graph.
	ErrAlreadyMaterialized = errors.New("bootstrap node already materialized")
)

// DuplicateTypeError reports a second registration of the same type name.
type DuplicateTypeError struct {
	Type string
}

// Error implements the error interface.
func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("type %q is already registered", e.Type)
}

// Unwrap returns ErrDuplicateType for errors.Is support.
func (e *DuplicateTypeError) Unwrap() error {
	return ErrDuplicateType
}

// ArityError reports a type whose parent group count does not fit its kind.
type ArityError struct {
	Type   string
	Kind   CombinatorKind
	Groups int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("type %q: %s node cannot have %d parent groups (%s)",
		e.Type, e.Kind, e.Groups, e.Kind.arity())
}

// Unwrap returns ErrArity for errors.Is support.
func (e *ArityError) Unwrap() error {
	return ErrArity
}

// UnknownTypeError reports a reference to an unregistered type.
type UnknownTypeError struct {
	Type string
	// Child is the type that declared Type as a parent. Empty when Type was
	// requested directly (for example as a bootstrap type).
	Child string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	if e.Child != "" {
		return fmt.Sprintf("type %q declares unregistered parent %q", e.Child, e.Type)
	}
	return fmt.Sprintf("type %q is not registered", e.Type)
}

// Unwrap returns ErrUnknownType for errors.Is support.
func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownType
}

// LineageMismatchError reports parent groups of one type that cannot be
// reconciled to a common layer count.
type LineageMismatchError struct {
	Type string
	// Lengths holds the expanded length of each parent group, in group order.
	Lengths []int
}

// Error implements the error interface.
func (e *LineageMismatchError) Error() string {
	return fmt.Sprintf("type %q: parent layer numbers mismatch %v", e.Type, e.Lengths)
}

// Unwrap returns ErrLineageMismatch for errors.Is support.
func (e *LineageMismatchError) Unwrap() error {
	return ErrLineageMismatch
}

// LayerRangeError reports an explicit parent layer that does not exist.
type LayerRangeError struct {
	Type   string
	Parent string
	Layer  int
	Layers int
}

// Error implements the error interface.
func (e *LayerRangeError) Error() string {
	return fmt.Sprintf("type %q: parent %q has %d layers, layer %d requested",
		e.Type, e.Parent, e.Layers, e.Layer)
}

// Unwrap returns ErrLayerRange for errors.Is support.
func (e *LayerRangeError) Unwrap() error {
	return ErrLayerRange
}

// LineageCycleError reports a cyclic parent declaration.
type LineageCycleError struct {
	// Path lists the types on the cycle; the first and last entries are equal.
	Path []string
}

// Error implements the error interface.
func (e *LineageCycleError) Error() string {
	return fmt.Sprintf("lineage cycle: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrLineageCycle for errors.Is support.
func (e *LineageCycleError) Unwrap() error {
	return ErrLineageCycle
}

// DuplicateNameError reports surface names shared by more than one type.
type DuplicateNameError struct {
	// Names lists every colliding name once, sorted.
	Names []string
}

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicated names found in graph: %s", strings.Join(e.Names, ", "))
}

// Unwrap returns ErrDuplicateName for errors.Is support.
func (e *DuplicateNameError) Unwrap() error {
	return ErrDuplicateName
}

// UnknownNodeError reports a lookup by a name the graph does not contain.
type UnknownNodeError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("can not find node named %q in graph", e.Name)
}

// Unwrap returns ErrUnknownNode for errors.Is support.
func (e *UnknownNodeError) Unwrap() error {
	return ErrUnknownNode
}

// NodeError wraps an error raised by a node's forward or backward hook.
type NodeError struct {
	// Node is the surface name of the node.
	Node string
	// Layer is the quantum layer of the instance.
	Layer int
	// Op is the hook that failed ("forward" or "backward").
	Op string
	// Err is the underlying error from the hook.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Layer > 0 {
		return fmt.Sprintf("node %s[%d]: %s: %v", e.Node, e.Layer, e.Op, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a node hook.
type PanicError struct {
	Node  string
	Layer int
	Op    string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s[%d] panicked in %s: %v", e.Node, e.Layer, e.Op, e.Value)
}
