package cellink

import (
	"fmt"
	"log/slog"

	"github.com/viibridges/cellink/pkg/cellink/registry"
)

// Registry holds node type declarations. Populate it during process
// initialization, then materialize graphs from it.
//
// Registry is safe for concurrent use. Registering or removing types while a
// graph built from it is being evaluated does not affect that graph: each
// materialization resolves its own snapshot.
type Registry struct {
	types  *registry.Registry[string, *typeDecl]
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for resolution and materialization
// diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty type registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types:  registry.New[string, *typeDecl](),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register declares a node type with its combinator kind and parent groups.
// Parent types may be registered before or after their children; references
// are checked when a graph is materialized.
//
// Returns a *DuplicateTypeError if typeName is taken, an *ArityError if the
// number of groups does not fit kind, and ErrInvalidDeclaration for empty
// names, empty groups, or negative explicit layers.
func (r *Registry) Register(typeName string, kind CombinatorKind, parentGroups []ParentGroup, opts ...TypeOption) error {
	if typeName == "" {
		return fmt.Errorf("%w: type name cannot be empty", ErrInvalidDeclaration)
	}
	if !kind.valid() {
		return fmt.Errorf("%w: type %q has unknown combinator kind %d", ErrInvalidDeclaration, typeName, int(kind))
	}

	groups := make([]ParentGroup, 0, len(parentGroups))
	for i, group := range parentGroups {
		if len(group) == 0 {
			return fmt.Errorf("%w: type %q parent group %d is empty", ErrInvalidDeclaration, typeName, i)
		}
		for _, ref := range group {
			if ref.Type == "" {
				return fmt.Errorf("%w: type %q parent group %d names an empty type", ErrInvalidDeclaration, typeName, i)
			}
			if ref.Layer < AllLayers {
				return fmt.Errorf("%w: type %q parent %q has negative layer %d", ErrInvalidDeclaration, typeName, ref.Type, ref.Layer)
			}
		}
		groups = append(groups, append(ParentGroup(nil), group...))
	}

	if !kind.acceptsGroups(len(groups)) {
		return &ArityError{Type: typeName, Kind: kind, Groups: len(groups)}
	}

	decl := &typeDecl{
		name:     typeName,
		surface:  typeName,
		kind:     kind,
		groups:   groups,
		forward:  defaultForward,
		backward: defaultBackward,
	}
	for _, opt := range opts {
		opt(decl)
	}
	if decl.surface == "" {
		return fmt.Errorf("%w: type %q has an empty surface name", ErrInvalidDeclaration, typeName)
	}
	if decl.forward == nil {
		decl.forward = defaultForward
	}
	if decl.backward == nil {
		decl.backward = defaultBackward
	}

	if !r.types.Insert(typeName, decl) {
		return &DuplicateTypeError{Type: typeName}
	}
	return nil
}

// MustRegister is like Register but panics on error. It suits package-level
// declarations in init functions.
func (r *Registry) MustRegister(typeName string, kind CombinatorKind, parentGroups []ParentGroup, opts ...TypeOption) {
	if err := r.Register(typeName, kind, parentGroups, opts...); err != nil {
		panic("cellink: " + err.Error())
	}
}

// Deregister removes a type declaration. Graphs already materialized keep
// working. Returns false if the type was not registered.
func (r *Registry) Deregister(typeName string) bool {
	return r.types.Delete(typeName)
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	return r.types.Has(typeName)
}

// Types returns the registered type names in lexical order.
func (r *Registry) Types() []string {
	return r.types.SortedKeys(func(a, b string) bool { return a < b })
}

// NewBootstrap creates the caller-owned instance a graph is materialized
// from. The node is inert until passed to Materialize.
func (r *Registry) NewBootstrap(typeName string) (*Node, error) {
	decl, ok := r.types.Get(typeName)
	if !ok {
		return nil, &UnknownTypeError{Type: typeName}
	}
	return newNode(decl), nil
}

// Build creates a bootstrap node of typeName and materializes its graph.
func (r *Registry) Build(typeName string) (*Graph, error) {
	boot, err := r.NewBootstrap(typeName)
	if err != nil {
		return nil, err
	}
	return r.Materialize(boot)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the package-level
// functions.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register declares a type in the default registry.
func Register(typeName string, kind CombinatorKind, parentGroups []ParentGroup, opts ...TypeOption) error {
	return defaultRegistry.Register(typeName, kind, parentGroups, opts...)
}

// Deregister removes a type from the default registry.
func Deregister(typeName string) bool {
	return defaultRegistry.Deregister(typeName)
}

// NewBootstrap creates a bootstrap node from the default registry.
func NewBootstrap(typeName string) (*Node, error) {
	return defaultRegistry.NewBootstrap(typeName)
}

// Materialize builds a graph around boot from the default registry.
func Materialize(boot *Node) (*Graph, error) {
	return defaultRegistry.Materialize(boot)
}

// Build creates and materializes a graph from the default registry.
func Build(typeName string) (*Graph, error) {
	return defaultRegistry.Build(typeName)
}
