package cellink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/viibridges/cellink/pkg/cellink/journal"
	"github.com/viibridges/cellink/pkg/cellink/observability"
)

// SchedulerStatus is a node's progress within one scheduler run.
type SchedulerStatus int

const (
	// StatusUnvisited nodes have not been submitted yet.
	StatusUnvisited SchedulerStatus = iota
	// StatusRunning nodes are executing in the worker pool.
	StatusRunning
	// StatusRan nodes finished their forward computation without error.
	StatusRan
	// StatusDead nodes will never run, or raised an error while running.
	StatusDead
)

// String returns the status name.
func (s SchedulerStatus) String() string {
	switch s {
	case StatusUnvisited:
		return "unvisited"
	case StatusRunning:
		return "running"
	case StatusRan:
		return "ran"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Scheduler evaluates an explicit node set concurrently. A node is submitted
// to the worker pool once its combinator is satisfied by its parents' results
// and is marked dead, without running, once it can never be satisfied.
//
// A MultiOr node is submitted once any parent succeeded; parents still
// running at that point are hidden from its ParentList.
//
// Errors raised by forward computations do not stop the run. The affected
// node is marked dead, unrelated branches keep going, and once the run has
// converged the first error (in node-set order) is returned.
//
// Submitted work is never cancelled.
type Scheduler struct {
	workers        int
	pollInterval   time.Duration
	logger         *slog.Logger
	metricsEnabled bool
	tracingEnabled bool
	runID          string
	journal        journal.Store

	mu       sync.Mutex
	lastRun  string
	statuses map[*Node]SchedulerStatus
}

// NewScheduler creates a scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		workers:      defaultWorkers,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
		statuses:     make(map[*Node]SchedulerStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates every node in nodes and returns once each has either run or
// died. Duplicate and nil entries are ignored.
//
// Parents outside the node set are not run. They count as settled with
// their current forward state: Success or Failure as ran, anything else as
// dead. Nodes already evaluated by Seek keep their result and are not run
// again.
//
// ctx carries tracing and metrics only; it does not cancel the run.
func (s *Scheduler) Run(ctx context.Context, nodes []*Node) error {
	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	r := s.newRun(runID, nodes)
	return r.execute(ctx)
}

// ForwardTo runs targets and all of their ancestors.
func (s *Scheduler) ForwardTo(ctx context.Context, targets ...*Node) error {
	return s.Run(ctx, Ancestors(targets...))
}

// RunID returns the ID of the most recent run, or "" before the first.
func (s *Scheduler) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Status returns n's status in the most recent run. Nodes that were not part
// of it report StatusUnvisited.
func (s *Scheduler) Status(n *Node) SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[n]
}

// Statuses returns the status of every node of the most recent run, keyed
// by node ID.
func (s *Scheduler) Statuses() map[string]SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]SchedulerStatus, len(s.statuses))
	for n, st := range s.statuses {
		out[n.ID()] = st
	}
	return out
}

// Ancestors returns targets and every transitive parent, each once, with
// parents ahead of their children.
func Ancestors(targets ...*Node) []*Node {
	seen := make(map[*Node]bool)
	var order []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		for _, p := range n.parents {
			visit(p)
		}
		order = append(order, n)
	}
	for _, t := range targets {
		visit(t)
	}
	return order
}

// schedulerRun is the state of one Run call. mu guards status, result and
// errs; it is never held while a forward computation runs.
type schedulerRun struct {
	s       *Scheduler
	id      string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	nodes []*Node
	index map[*Node]int

	mu     sync.Mutex
	status []SchedulerStatus
	result []outcome
	errs   []error

	wake chan struct{}
}

func (s *Scheduler) newRun(id string, nodes []*Node) *schedulerRun {
	r := &schedulerRun{
		s:       s,
		id:      id,
		logger:  observability.EnrichLogger(s.logger, id),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		index:   make(map[*Node]int, len(nodes)),
		wake:    make(chan struct{}, 1),
	}
	if s.metricsEnabled {
		r.metrics = observability.NewMetricsRecorder()
	}
	if s.tracingEnabled {
		r.spans = observability.NewSpanManager()
	}

	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := r.index[n]; dup {
			continue
		}
		r.index[n] = len(r.nodes)
		r.nodes = append(r.nodes, n)
	}
	r.status = make([]SchedulerStatus, len(r.nodes))
	r.result = make([]outcome, len(r.nodes))
	r.errs = make([]error, len(r.nodes))
	return r
}

func (r *schedulerRun) execute(ctx context.Context) error {
	ctx, span := r.spans.StartRunSpan(ctx, r.id, len(r.nodes))
	observability.LogRunStart(r.logger, r.id, len(r.nodes))
	done := observability.TimedOperation()
	start := time.Now()

	var pool errgroup.Group
	pool.SetLimit(r.s.workers)

	ticker := time.NewTicker(r.s.pollInterval)
	defer ticker.Stop()

	for {
		for _, sub := range r.ready() {
			if !pool.TryGo(func() error {
				r.work(ctx, sub)
				return nil
			}) {
				r.unsubmit(sub.i)
			}
		}

		select {
		case <-r.wake:
		case <-ticker.C:
		}

		settled, converged := r.propagate()
		for _, i := range settled {
			r.settleDead(ctx, i)
		}
		if converged {
			break
		}
	}
	_ = pool.Wait()

	r.publish()

	elapsed := time.Since(start)
	failed, err := r.firstError()
	r.metrics.RecordRun(ctx, err == nil, elapsed)
	r.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogRunError(r.logger, r.id, err, done(), failed)
		return err
	}
	ran, died := r.counts()
	observability.LogRunComplete(r.logger, r.id, done(), ran, died)
	return nil
}

// submission is a node handed to the pool with the parent outcomes that
// made it ready.
type submission struct {
	i       int
	parents []outcome
}

// ready marks every unvisited node whose combinator is satisfied as running.
func (r *schedulerRun) ready() []submission {
	r.mu.Lock()
	defer r.mu.Unlock()

	var subs []submission
	for i, n := range r.nodes {
		if r.status[i] != StatusUnvisited {
			continue
		}
		parents := r.parentOutcomes(n)
		if !n.decl.kind.ready(parents) {
			continue
		}
		r.status[i] = StatusRunning
		subs = append(subs, submission{i: i, parents: parents})
		observability.LogNodeSubmit(r.logger, n.ID(), n.String(), n.layer)
	}
	return subs
}

// unsubmit returns a node the full pool turned away to the unvisited set.
func (r *schedulerRun) unsubmit(i int) {
	r.mu.Lock()
	r.status[i] = StatusUnvisited
	r.mu.Unlock()
}

// propagate marks blocked nodes dead until nothing changes and reports
// whether every node has settled.
func (r *schedulerRun) propagate() (settled []int, converged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for changed := true; changed; {
		changed = false
		for i, n := range r.nodes {
			if r.status[i] != StatusUnvisited {
				continue
			}
			if n.decl.kind.blocked(r.parentOutcomes(n)) {
				r.status[i] = StatusDead
				r.result[i] = dead
				settled = append(settled, i)
				changed = true
			}
		}
	}

	for _, st := range r.status {
		if st == StatusUnvisited || st == StatusRunning {
			return settled, false
		}
	}
	return settled, true
}

// parentOutcomes must be called with r.mu held.
func (r *schedulerRun) parentOutcomes(n *Node) []outcome {
	outcomes := make([]outcome, len(n.parents))
	for p, parent := range n.parents {
		i, inSet := r.index[parent]
		switch {
		case !inSet:
			outcomes[p] = parent.outcome()
		case r.status[i] == StatusRan:
			outcomes[p] = r.result[i]
		case r.status[i] == StatusDead:
			outcomes[p] = dead
		default:
			outcomes[p] = pending
		}
	}
	return outcomes
}

// work runs one node's forward computation in the pool.
func (r *schedulerRun) work(ctx context.Context, sub submission) {
	n := r.nodes[sub.i]
	ctx, span := r.spans.StartNodeSpan(ctx, n.String(), n.layer)
	done := observability.TimedOperation()
	start := time.Now()

	var err error
	switch n.state {
	case Unvisited:
		n.recordAlive(sub.parents)
		err = n.runForward()
	case Errored:
		err = n.err
	}

	elapsed := time.Since(start)
	durationMs := done()
	r.spans.EndSpanWithError(span, err)
	r.metrics.RecordNodeExecution(ctx, n.String(), elapsed, err)

	r.mu.Lock()
	if err != nil {
		r.status[sub.i] = StatusDead
		r.result[sub.i] = dead
		r.errs[sub.i] = err
	} else {
		r.status[sub.i] = StatusRan
		r.result[sub.i] = n.outcome()
	}
	r.mu.Unlock()

	entry := journal.Entry{
		Node:       n.String(),
		Layer:      n.layer,
		DurationMs: durationMs,
	}
	if err != nil {
		observability.LogNodeError(r.logger, n.ID(), n.String(), n.layer, err)
		entry.Status = journal.StatusDead
		entry.Error = err.Error()
	} else {
		observability.LogNodeComplete(r.logger, n.ID(), n.String(), n.layer, durationMs, n.state == Success)
		entry.Status = journal.StatusRan
		entry.Success = n.state == Success
	}
	r.record(n, entry)

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *schedulerRun) settleDead(ctx context.Context, i int) {
	n := r.nodes[i]
	observability.LogNodeDead(r.logger, n.ID(), n.String(), n.layer)
	r.metrics.RecordNodeDead(ctx, n.String())
	r.spans.AddSpanEvent(ctx, "node.dead",
		attribute.String("node.name", n.String()),
		attribute.Int("node.layer", n.layer))
	r.record(n, journal.Entry{Node: n.String(), Layer: n.layer, Status: journal.StatusDead})
}

func (r *schedulerRun) record(n *Node, e journal.Entry) {
	if r.s.journal == nil {
		return
	}
	e.RunID = r.id
	e.NodeID = n.ID()
	if err := r.s.journal.Record(e); err != nil {
		observability.LogJournalError(r.logger, n.ID(), err)
	}
}

// publish copies the final statuses to the scheduler.
func (r *schedulerRun) publish() {
	r.mu.Lock()
	statuses := make(map[*Node]SchedulerStatus, len(r.nodes))
	for i, n := range r.nodes {
		statuses[n] = r.status[i]
	}
	r.mu.Unlock()

	r.s.mu.Lock()
	r.s.lastRun = r.id
	r.s.statuses = statuses
	r.s.mu.Unlock()
}

// firstError returns the name of the first node, in node-set order, that
// recorded an error, and that error. Later errors were already logged by work.
func (r *schedulerRun) firstError() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, err := range r.errs {
		if err != nil {
			return r.nodes[i].String(), err
		}
	}
	return "", nil
}

func (r *schedulerRun) counts() (ran, died int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.status {
		switch st {
		case StatusRan:
			ran++
		case StatusDead:
			died++
		}
	}
	return ran, died
}
