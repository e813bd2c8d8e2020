package cellink

import (
	"errors"
	"sort"
)

// LayerRef is a parent reference with its layer made explicit.
type LayerRef struct {
	Type  string
	Layer int
}

// ResolvedType is a reachable type with its layer count and fully expanded
// parent groups. Every group holds exactly Layers entries: entry L of group P
// is parent P of the type's layer L.
type ResolvedType struct {
	Name   string
	Kind   CombinatorKind
	Layers int
	Groups [][]LayerRef

	decl *typeDecl
}

// Lineage maps every type reachable from a bootstrap type to its resolution.
type Lineage map[string]*ResolvedType

// Types returns the resolved type names in lexical order.
func (l Lineage) Types() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve expands the lineage reachable from bootstrapType.
//
// Reachability treats parent/child mentions as undirected edges, so siblings
// and descendants of the bootstrap type are included while unrelated
// declarations are discarded before any validation runs.
func (r *Registry) Resolve(bootstrapType string) (Lineage, error) {
	decls := r.types.Snapshot()
	if _, ok := decls[bootstrapType]; !ok {
		return nil, &UnknownTypeError{Type: bootstrapType}
	}

	reachable := reachableTypes(decls, bootstrapType)
	if err := checkParentsRegistered(decls, reachable); err != nil {
		return nil, err
	}

	res := &resolver{
		decls:    decls,
		layers:   make(map[string]int),
		groups:   make(map[string][][]LayerRef),
		visiting: make(map[string]bool),
	}

	lineage := make(Lineage, len(reachable))
	for _, name := range reachable {
		layers, err := res.layersOf(name)
		if err != nil {
			return nil, err
		}
		decl := decls[name]
		lineage[name] = &ResolvedType{
			Name:   name,
			Kind:   decl.kind,
			Layers: layers,
			Groups: res.groups[name],
			decl:   decl,
		}
	}

	r.logger.Debug("lineage resolved",
		"bootstrap", bootstrapType,
		"types", len(lineage),
		"pruned", len(decls)-len(lineage))

	return lineage, nil
}

// reachableTypes returns the names connected to start, sorted. Names of
// unregistered parents are included so they can be reported.
func reachableTypes(decls map[string]*typeDecl, start string) []string {
	neighbors := make(map[string][]string)
	for name, decl := range decls {
		for _, parent := range decl.parentTypes() {
			neighbors[name] = append(neighbors[name], parent)
			neighbors[parent] = append(neighbors[parent], name)
		}
	}

	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range neighbors[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkParentsRegistered reports every reachable reference to an
// unregistered type, joined.
func checkParentsRegistered(decls map[string]*typeDecl, reachable []string) error {
	var errs []error
	for _, name := range reachable {
		decl, ok := decls[name]
		if !ok {
			continue
		}
		for _, parent := range decl.parentTypes() {
			if _, ok := decls[parent]; !ok {
				errs = append(errs, &UnknownTypeError{Type: parent, Child: name})
			}
		}
	}
	return errors.Join(errs...)
}

// resolver memoizes layer counts and expanded groups across one Resolve call.
type resolver struct {
	decls    map[string]*typeDecl
	layers   map[string]int
	groups   map[string][][]LayerRef
	visiting map[string]bool
	stack    []string
}

func (rs *resolver) layersOf(name string) (int, error) {
	if n, ok := rs.layers[name]; ok {
		return n, nil
	}
	if rs.visiting[name] {
		return 0, rs.cycleError(name)
	}

	rs.visiting[name] = true
	rs.stack = append(rs.stack, name)
	defer func() {
		delete(rs.visiting, name)
		rs.stack = rs.stack[:len(rs.stack)-1]
	}()

	decl := rs.decls[name]
	if len(decl.groups) == 0 {
		rs.layers[name] = 1
		rs.groups[name] = nil
		return 1, nil
	}

	groups, err := rs.expand(decl)
	if err != nil {
		return 0, err
	}

	rs.layers[name] = len(groups[0])
	rs.groups[name] = groups
	return len(groups[0]), nil
}

// expand replaces wildcards with explicit layers, broadcasts single-entry
// groups and checks that all groups agree on their length.
func (rs *resolver) expand(decl *typeDecl) ([][]LayerRef, error) {
	groups := make([][]LayerRef, 0, len(decl.groups))
	lengths := make([]int, 0, len(decl.groups))
	longest := 0

	for _, group := range decl.groups {
		var expanded []LayerRef
		for _, ref := range group {
			parentLayers, err := rs.layersOf(ref.Type)
			if err != nil {
				return nil, err
			}
			if ref.Layer == AllLayers {
				for layer := 0; layer < parentLayers; layer++ {
					expanded = append(expanded, LayerRef{Type: ref.Type, Layer: layer})
				}
				continue
			}
			if ref.Layer >= parentLayers {
				return nil, &LayerRangeError{
					Type:   decl.name,
					Parent: ref.Type,
					Layer:  ref.Layer,
					Layers: parentLayers,
				}
			}
			expanded = append(expanded, LayerRef{Type: ref.Type, Layer: ref.Layer})
		}
		groups = append(groups, expanded)
		lengths = append(lengths, len(expanded))
		if len(expanded) > longest {
			longest = len(expanded)
		}
	}

	for i, group := range groups {
		switch {
		case len(group) == longest:
		case len(group) == 1:
			broadcast := make([]LayerRef, longest)
			for l := range broadcast {
				broadcast[l] = group[0]
			}
			groups[i] = broadcast
		default:
			return nil, &LineageMismatchError{Type: decl.name, Lengths: lengths}
		}
	}

	return groups, nil
}

func (rs *resolver) cycleError(name string) error {
	start := 0
	for i, t := range rs.stack {
		if t == name {
			start = i
			break
		}
	}
	path := append([]string(nil), rs.stack[start:]...)
	path = append(path, name)
	return &LineageCycleError{Path: path}
}
