package cellink

// AllLayers is the layer selector meaning "every layer of the parent type".
const AllLayers = -1

// ParentRef names one parent type and the layer(s) of it to connect.
type ParentRef struct {
	Type  string
	Layer int
}

// All selects every layer of typeName. A group holding a wildcard on a quantum
// parent expands to one entry per parent layer.
func All(typeName string) ParentRef {
	return ParentRef{Type: typeName, Layer: AllLayers}
}

// At selects one explicit layer of typeName, collapsing a quantum parent.
func At(typeName string, layer int) ParentRef {
	return ParentRef{Type: typeName, Layer: layer}
}

// ParentGroup is an ordered list of parent references. Each group contributes
// exactly one parent to every instance of the declaring type; the group's
// expanded length decides how many layers the type has.
type ParentGroup []ParentRef

// Hook declares one wildcard group per type, in order. It is the common form
// for ordinary parents:
//
//	reg.Register("plus", cellink.MultiAnd, cellink.Hook("square", "subtract"))
func Hook(types ...string) []ParentGroup {
	groups := make([]ParentGroup, 0, len(types))
	for _, t := range types {
		groups = append(groups, ParentGroup{All(t)})
	}
	return groups
}

// Quantize stacks the layers of every listed type into one group, so the
// declaring type gets one layer per stacked parent layer:
//
//	reg.Register("half", cellink.Single, []cellink.ParentGroup{cellink.Quantize("a", "b")})
func Quantize(types ...string) ParentGroup {
	group := make(ParentGroup, 0, len(types))
	for _, t := range types {
		group = append(group, All(t))
	}
	return group
}

// ForwardFunc is a node's forward computation. Returning true marks the node
// as succeeded, false as failed; an error aborts evaluation.
type ForwardFunc func(n *Node) (bool, error)

// BackwardFunc is a node's backward computation. Returning true continues
// retracing into the node's parents.
type BackwardFunc func(n *Node) (bool, error)

// typeDecl is the registered, immutable declaration of a node type.
type typeDecl struct {
	name     string
	surface  string
	kind     CombinatorKind
	groups   []ParentGroup
	forward  ForwardFunc
	backward BackwardFunc
	init     func(*Node)
}

// parentTypes returns every type mentioned in the declaration's groups, in
// declaration order, without duplicates.
func (d *typeDecl) parentTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, group := range d.groups {
		for _, ref := range group {
			if !seen[ref.Type] {
				seen[ref.Type] = true
				types = append(types, ref.Type)
			}
		}
	}
	return types
}

// TypeOption configures a type at registration.
type TypeOption func(*typeDecl)

// WithName sets the type's surface name, its declared string identity used
// by Seek and Lookup. Defaults to the type name.
func WithName(name string) TypeOption {
	return func(d *typeDecl) {
		d.surface = name
	}
}

// WithForward sets the forward computation.
// Default: succeed for roots, fail otherwise.
func WithForward(fn ForwardFunc) TypeOption {
	return func(d *typeDecl) {
		d.forward = fn
	}
}

// WithBackward sets the backward computation. Default: stop retracing.
func WithBackward(fn BackwardFunc) TypeOption {
	return func(d *typeDecl) {
		d.backward = fn
	}
}

// WithInit sets a hook run once on every instance after the graph is wired.
func WithInit(fn func(n *Node)) TypeOption {
	return func(d *typeDecl) {
		d.init = fn
	}
}

func defaultForward(n *Node) (bool, error) {
	return n.IsRoot(), nil
}

func defaultBackward(*Node) (bool, error) {
	return false, nil
}
