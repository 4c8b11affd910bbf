package graph

import (
	"github.com/rotisserie/eris"
)

// Process is a validated, immutable graph definition with one entry node.
type Process[S State[S]] struct {
	name  string
	entry string
	nodes map[string]*Node[S]
	order []string
}

// NewProcess checks referential integrity and returns the process. Every
// node name must be unique, the entry must exist, and every connection or
// declared decision target must name a node in the process.
func NewProcess[S State[S]](name, entry string, nodes ...*Node[S]) (*Process[S], error) {
	p := &Process[S]{name: name, entry: entry, nodes: make(map[string]*Node[S], len(nodes))}

	for _, n := range nodes {
		if n == nil || n.Name == "" {
			return nil, eris.Wrap(ErrInvalidProcess, "node without a name")
		}
		if (n.Phase == nil) == (n.Aggregator == nil) {
			return nil, eris.Wrapf(ErrInvalidProcess, "node %s must have exactly one of phase or aggregator", n.Name)
		}
		if _, dup := p.nodes[n.Name]; dup {
			return nil, eris.Wrapf(ErrInvalidProcess, "duplicate node %s", n.Name)
		}
		p.nodes[n.Name] = n
		p.order = append(p.order, n.Name)
	}

	if _, ok := p.nodes[entry]; !ok {
		return nil, eris.Wrapf(ErrNodeNotFound, "entry %s", entry)
	}

	for _, n := range nodes {
		for _, c := range n.Next {
			if _, ok := p.nodes[c.To]; !ok {
				return nil, eris.Wrapf(ErrNodeNotFound, "%s -> %s", n.Name, c.To)
			}
		}
		if n.Decision == nil {
			continue
		}
		if n.Decision.Decide == nil {
			return nil, eris.Wrapf(ErrInvalidProcess, "decision %s on %s has no Decide func", n.Decision.Name, n.Name)
		}
		for _, to := range n.Decision.Targets {
			if _, ok := p.nodes[to]; !ok {
				return nil, eris.Wrapf(ErrNodeNotFound, "decision %s -> %s", n.Decision.Name, to)
			}
		}
	}

	return p, nil
}

// Name returns the process name.
func (p *Process[S]) Name() string { return p.name }

// Entry returns the entry node name.
func (p *Process[S]) Entry() string { return p.entry }

// Nodes returns node names in definition order.
func (p *Process[S]) Nodes() []string {
	return append([]string(nil), p.order...)
}

// Node looks up a node by name.
func (p *Process[S]) Node(name string) (*Node[S], bool) {
	n, ok := p.nodes[name]
	return n, ok
}
