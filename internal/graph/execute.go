package graph

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventType identifies a walk event.
type EventType string

const (
	EventNodeProcessed EventType = "node_processed"
	EventAggregated    EventType = "aggregated"
	EventTerminated    EventType = "terminated"
)

// Event is delivered to handlers as the walk progresses. State is the
// accumulated record after the node ran.
type Event[S any] struct {
	Type        EventType
	Node        string
	State       S
	Status      AggregationStatus
	Termination string
	Elapsed     time.Duration
}

// Handler observes walk events. Handlers run on the walking goroutine and
// may be called concurrently from fan-out branches.
type Handler[S any] func(ctx context.Context, ev Event[S])

// Option configures Execute.
type Option[S any] func(*walkOptions[S])

type walkOptions[S any] struct {
	handlers []Handler[S]
	log      *zap.Logger
}

// WithHandler registers an event handler.
func WithHandler[S any](h Handler[S]) Option[S] {
	return func(o *walkOptions[S]) { o.handlers = append(o.handlers, h) }
}

// WithLogger sets the logger used for walk diagnostics.
func WithLogger[S any](log *zap.Logger) Option[S] {
	return func(o *walkOptions[S]) { o.log = log }
}

// Outcome is where one branch of a walk stopped. Termination is empty when
// the branch ran off the end of the graph at Node.
type Outcome[S any] struct {
	Node        string
	Termination string
	State       S
}

// Result collects the outcomes of a walk.
type Result[S any] struct {
	Outcomes []Outcome[S]
	Elapsed  time.Duration
}

// Last returns the most recently recorded outcome.
func (r *Result[S]) Last() (Outcome[S], bool) {
	if r == nil || len(r.Outcomes) == 0 {
		var zero Outcome[S]
		return zero, false
	}
	return r.Outcomes[len(r.Outcomes)-1], true
}

// Execute walks initial through p from its entry node. Phase nodes are
// verified, executed, and their output merged into the state. When a node
// routes to several connections they run concurrently, each with its own
// copy of the state, and rejoin at an aggregator. The first error from any
// branch stops the walk.
func Execute[S State[S]](ctx context.Context, p *Process[S], initial S, opts ...Option[S]) (*Result[S], error) {
	w := &walk[S]{p: p, joins: make(map[string]*join[S])}
	for _, o := range opts {
		o(&w.opts)
	}
	if w.opts.log == nil {
		w.opts.log = zap.L()
	}
	w.log = w.opts.log.With(zap.String("process", p.name))

	start := time.Now()
	err := w.visit(ctx, p.entry, initial, initial)

	w.mu.Lock()
	res := &Result[S]{Outcomes: w.outcomes, Elapsed: time.Since(start)}
	w.mu.Unlock()
	return res, err
}

type walk[S State[S]] struct {
	p    *Process[S]
	opts walkOptions[S]
	log  *zap.Logger

	mu       sync.Mutex
	outcomes []Outcome[S]
	joins    map[string]*join[S]
}

func (w *walk[S]) visit(ctx context.Context, name string, in, state S) error {
	n, ok := w.p.nodes[name]
	if !ok {
		return eris.Wrapf(ErrNodeNotFound, "%s", name)
	}
	if n.Aggregator != nil {
		return w.deliver(ctx, n, in)
	}

	v := n.Phase.Verify(in)
	if !v.Verified {
		return &VerificationError{Node: name, Messages: v.Messages}
	}

	start := time.Now()
	out, err := n.Phase.Execute(ctx, in)
	if err != nil {
		return eris.Wrapf(err, "graph: %s", name)
	}
	state = state.Merge(out)
	elapsed := time.Since(start)

	w.log.Debug("graph: node processed",
		zap.String("node", name),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	w.emit(ctx, Event[S]{Type: EventNodeProcessed, Node: name, State: state, Elapsed: elapsed})

	return w.route(ctx, n, out, state)
}

func (w *walk[S]) route(ctx context.Context, n *Node[S], out, state S) error {
	conns := n.Next
	if n.Decision != nil {
		r, err := n.Decision.Decide(ctx, out, state)
		if err != nil {
			return eris.Wrapf(err, "graph: decision %s", n.Decision.Name)
		}
		if r.Termination != nil {
			w.finish(ctx, n.Name, r.Termination.Name, state)
			return nil
		}
		conns = r.Connections
	}

	switch len(conns) {
	case 0:
		w.finish(ctx, n.Name, "", state)
		return nil
	case 1:
		in, next := conns[0].apply(out, state)
		return w.visit(ctx, conns[0].To, in, next)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range conns {
		in, next := c.apply(out, state)
		g.Go(func() error {
			return w.visit(gCtx, c.To, in, next)
		})
	}
	return g.Wait()
}

func (w *walk[S]) deliver(ctx context.Context, n *Node[S], partial S) error {
	j := w.join(n.Name)
	joined, res, fired, late := j.deliver(partial, n.Aggregator)
	if late {
		w.log.Warn("graph: delivery after ready ignored", zap.String("node", n.Name))
		return nil
	}

	w.emit(ctx, Event[S]{Type: EventAggregated, Node: n.Name, State: joined, Status: res.Status})
	if !fired {
		return nil
	}
	return w.route(ctx, n, res.Output, res.Output)
}

func (w *walk[S]) join(name string) *join[S] {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.joins[name]
	if !ok {
		j = &join[S]{}
		w.joins[name] = j
	}
	return j
}

func (w *walk[S]) finish(ctx context.Context, node, termination string, state S) {
	w.mu.Lock()
	w.outcomes = append(w.outcomes, Outcome[S]{Node: node, Termination: termination, State: state})
	w.mu.Unlock()

	w.emit(ctx, Event[S]{Type: EventTerminated, Node: node, State: state, Termination: termination})
}

func (w *walk[S]) emit(ctx context.Context, ev Event[S]) {
	for _, h := range w.opts.handlers {
		h(ctx, ev)
	}
}

// join accumulates partial states for one aggregator in one walk. Merge and
// readiness are evaluated under one lock, and Ready fires once.
type join[S State[S]] struct {
	mu         sync.Mutex
	state      S
	seen       bool
	fired      bool
	deliveries int
}

func (j *join[S]) deliver(partial S, agg Aggregator[S]) (joined S, res AggregationResult[S], fired, late bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.deliveries++
	if j.fired {
		return j.state, Pending[S](), false, true
	}
	if j.seen {
		j.state = j.state.Merge(partial)
	} else {
		j.state = partial
		j.seen = true
	}

	res = agg.Aggregate(j.state)
	if res.Status == Ready {
		j.fired = true
		return j.state, res, true, false
	}
	return j.state, res, false, false
}
