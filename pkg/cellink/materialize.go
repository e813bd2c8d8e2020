package cellink

import (
	"errors"
	"fmt"
	"sort"
)

// Materialize resolves the lineage reachable from boot's type and builds the
// instance graph around it. boot becomes layer 0 of its type.
//
// Materialization either succeeds completely or leaves boot untouched:
// resolution errors, surface name collisions and init hook failures all
// abort construction.
func (r *Registry) Materialize(boot *Node) (*Graph, error) {
	if boot == nil {
		return nil, errors.New("cellink: materialize: nil bootstrap node")
	}
	if boot.graph != nil {
		return nil, fmt.Errorf("materialize %s: %w", boot, ErrAlreadyMaterialized)
	}

	lineage, err := r.Resolve(boot.Type())
	if err != nil {
		return nil, err
	}

	g := &Graph{
		bootstrap: boot,
		byType:    make(map[string][]*Node, len(lineage)),
		surface:   make(map[string]*Node, len(lineage)),
		board:     make(map[string]any),
	}

	// The bootstrap's own fields are only assigned once everything else
	// checked out; stage layer 0 of its type on a stand-in until then.
	staged := newNode(lineage[boot.Type()].decl)

	types := lineage.Types()
	for _, name := range types {
		rt := lineage[name]
		instances := make([]*Node, rt.Layers)
		for l := range instances {
			n := staged
			if name != boot.Type() || l != 0 {
				n = newNode(rt.decl)
			}
			n.layer = l
			n.layers = rt.Layers
			n.graph = g
			instances[l] = n
		}
		g.byType[name] = instances
	}

	for _, name := range types {
		rt := lineage[name]
		for l, n := range g.byType[name] {
			n.parents = make([]*Node, len(rt.Groups))
			for p, group := range rt.Groups {
				ref := group[l]
				n.parents[p] = g.byType[ref.Type][ref.Layer]
			}
		}
	}

	if err := g.indexSurface(types); err != nil {
		return nil, err
	}

	// Swap the stand-in for the bootstrap node.
	prior := *boot
	boot.decl = staged.decl
	boot.layer = staged.layer
	boot.layers = staged.layers
	boot.parents = staged.parents
	g.byType[boot.Type()][0] = boot
	g.surface[boot.String()] = boot
	for _, nodes := range g.byType {
		for _, n := range nodes {
			for i, p := range n.parents {
				if p == staged {
					n.parents[i] = boot
				}
			}
		}
	}
	for _, name := range types {
		g.nodes = append(g.nodes, g.byType[name]...)
	}
	boot.graph = g

	if err := g.initialize(); err != nil {
		*boot = prior
		return nil, err
	}

	r.logger.Debug("graph materialized",
		"bootstrap", boot.Type(),
		"types", len(types),
		"nodes", len(g.nodes))

	return g, nil
}

// indexSurface maps surface names to layer 0 instances and reports every
// name claimed by more than one type.
func (g *Graph) indexSurface(types []string) error {
	var collisions []string
	seen := make(map[string]bool)
	for _, name := range types {
		n := g.byType[name][0]
		surface := n.String()
		if _, taken := g.surface[surface]; taken {
			if !seen[surface] {
				seen[surface] = true
				collisions = append(collisions, surface)
			}
			continue
		}
		g.surface[surface] = n
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		return &DuplicateNameError{Names: collisions}
	}
	return nil
}

// initialize runs every type's init hook once per instance.
func (g *Graph) initialize() error {
	for _, n := range g.nodes {
		if n.decl.init == nil {
			continue
		}
		init := n.decl.init
		if _, err := n.callHook("init", func(n *Node) (bool, error) {
			init(n)
			return true, nil
		}); err != nil {
			return err
		}
	}
	return nil
}
