// Package graph runs one item through a fixed graph of named phases,
// decisions and aggregators.
package graph

import (
	"context"
	"strings"
)

// State is the per-item record threaded through a walk. Merge folds a delta
// produced by a phase into the record and returns the result.
type State[S any] interface {
	Merge(delta S) S
}

// Verification is the result of a phase precondition check.
type Verification struct {
	Verified bool     `json:"verified"`
	Messages []string `json:"messages,omitempty"`
}

// Verified returns a passing Verification.
func Verified() Verification {
	return Verification{Verified: true}
}

// Require records msg as a failure when ok is false. All failures are kept
// so a caller sees every problem at once.
func (v *Verification) Require(ok bool, msg string) {
	if ok {
		return
	}
	v.Verified = false
	v.Messages = append(v.Messages, msg)
}

func (v Verification) String() string {
	if v.Verified {
		return "verified"
	}
	return strings.Join(v.Messages, "; ")
}

// Phase is a unit of work. Verify must not have side effects. Execute
// returns a delta holding only what the phase produces.
type Phase[S any] interface {
	Verify(in S) Verification
	Execute(ctx context.Context, in S) (S, error)
}

// Transform maps a phase output and the current state to the next phase's
// input and the state carried forward.
type Transform[S any] func(out, state S) (in, next S)

// Connection is a directed edge to exactly one node.
type Connection[S any] struct {
	Name      string
	To        string
	Transform Transform[S]
}

// Connect returns a connection that passes the accumulated state through.
func Connect[S any](name, to string) Connection[S] {
	return Connection[S]{Name: name, To: to}
}

func (c Connection[S]) apply(out, state S) (S, S) {
	if c.Transform == nil {
		return state, state
	}
	return c.Transform(out, state)
}

// Termination ends a walk without error.
type Termination struct {
	Name string `json:"name"`
}

// Route is what a Decision chose: a termination or connections to follow.
type Route[S any] struct {
	Termination *Termination
	Connections []Connection[S]
}

// Terminate returns a route that ends the walk.
func Terminate[S any](name string) Route[S] {
	return Route[S]{Termination: &Termination{Name: name}}
}

// Follow returns a route over the given connections. More than one
// connection fans out.
func Follow[S any](conns ...Connection[S]) Route[S] {
	return Route[S]{Connections: conns}
}

// Decision picks a route from a node's output and the accumulated state.
// Targets lists every node Decide may connect to; it is checked when the
// process is built.
type Decision[S any] struct {
	Name    string
	Targets []string
	Decide  func(ctx context.Context, out, state S) (Route[S], error)
}

// AggregationStatus is the readiness of a join.
type AggregationStatus int

const (
	NotYetReady AggregationStatus = iota
	Ready
)

func (s AggregationStatus) String() string {
	if s == Ready {
		return "ready"
	}
	return "not_yet_ready"
}

// AggregationResult is Ready with an output, or NotYetReady.
type AggregationResult[S any] struct {
	Status AggregationStatus
	Output S
}

// ReadyWith returns a Ready result.
func ReadyWith[S any](out S) AggregationResult[S] {
	return AggregationResult[S]{Status: Ready, Output: out}
}

// Pending returns a NotYetReady result.
func Pending[S any]() AggregationResult[S] {
	return AggregationResult[S]{Status: NotYetReady}
}

// Aggregator decides whether the joined state has everything it needs.
// Aggregate must be a pure function of its argument.
type Aggregator[S any] interface {
	Aggregate(joined S) AggregationResult[S]
}

// AggregatorFunc adapts a function to Aggregator.
type AggregatorFunc[S any] func(joined S) AggregationResult[S]

// Aggregate calls f.
func (f AggregatorFunc[S]) Aggregate(joined S) AggregationResult[S] { return f(joined) }

// Node is either a phase node or an aggregator node.
type Node[S any] struct {
	Name       string
	Phase      Phase[S]
	Aggregator Aggregator[S]
	Next       []Connection[S]
	Decision   *Decision[S]
}

// NewPhase returns a phase node with static next connections.
func NewPhase[S any](name string, p Phase[S], next ...Connection[S]) *Node[S] {
	return &Node[S]{Name: name, Phase: p, Next: next}
}

// NewAggregator returns a join node. Attach a decision to route on Ready.
func NewAggregator[S any](name string, a Aggregator[S]) *Node[S] {
	return &Node[S]{Name: name, Aggregator: a}
}

// WithDecision attaches d to n, replacing any static next connections.
func (n *Node[S]) WithDecision(d Decision[S]) *Node[S] {
	n.Decision = &d
	n.Next = nil
	return n
}

func (n *Node[S]) kind() string {
	if n.Aggregator != nil {
		return "aggregator"
	}
	return "phase"
}
