package cellink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/viibridges/cellink/pkg/cellink/config"
	"github.com/viibridges/cellink/pkg/cellink/journal"
)

var errExplode = errors.New("explode")

// TestScheduler_FailurePropagation verifies an error in one branch is
// returned while an independent branch still runs.
func TestScheduler_FailurePropagation(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("root", Single, nil))
	require.NoError(t, reg.Register("a", Single, Hook("root"), WithForward(returns(true))))
	require.NoError(t, reg.Register("b", Single, Hook("a"), WithForward(raises(errExplode))))
	require.NoError(t, reg.Register("c", Single, Hook("root"), WithForward(returns(true))))
	require.NoError(t, reg.Register("d", Single, Hook("b"), WithForward(returns(true))))
	g := buildGraph(t, reg, "root")

	s := quietScheduler(WithPollInterval(time.Millisecond))
	err := s.Run(context.Background(), g.Nodes())
	require.Error(t, err)
	assert.ErrorIs(t, err, errExplode)

	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "b", ne.Node)

	assert.Equal(t, StatusRan, s.Status(lookup(t, g, "root")))
	assert.Equal(t, StatusRan, s.Status(lookup(t, g, "a")))
	assert.Equal(t, StatusDead, s.Status(lookup(t, g, "b")))
	assert.Equal(t, StatusRan, s.Status(lookup(t, g, "c")))
	assert.Equal(t, StatusDead, s.Status(lookup(t, g, "d")))

	assert.Equal(t, Success, lookup(t, g, "c").State())
	assert.Equal(t, Errored, lookup(t, g, "b").State())
	assert.Equal(t, Unvisited, lookup(t, g, "d").State())
}

// TestScheduler_Arithmetic verifies concurrent evaluation computes the same
// values as Seek.
func TestScheduler_Arithmetic(t *testing.T) {
	reg := newTestRegistry()
	registerArithmetic(t, reg)
	g := buildGraph(t, reg, "input")
	plus := lookup(t, g, "plus")

	s := quietScheduler(WithWorkers(3))
	require.NoError(t, s.ForwardTo(context.Background(), plus))

	assert.Equal(t, 214, plus.Value())
	assert.Equal(t, StatusRan, s.Status(plus))
	assert.Len(t, s.Statuses(), len(g.Nodes()))
	for id, st := range s.Statuses() {
		assert.Equal(t, StatusRan, st, id)
	}
}

// TestScheduler_Combinators verifies readiness and dead propagation for
// failed branches.
func TestScheduler_Combinators(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("pass", Single, nil))
	require.NoError(t, reg.Register("fail", Single, nil, WithForward(returns(false))))
	require.NoError(t, reg.Register("and", MultiAnd, Hook("pass", "fail"), WithForward(returns(true))))
	require.NoError(t, reg.Register("neg", Not, Hook("fail"), WithForward(returns(true))))
	require.NoError(t, reg.Register("negpass", Not, Hook("pass"), WithForward(returns(true))))
	require.NoError(t, reg.Register("single", Single, Hook("fail"), WithForward(returns(true))))
	require.NoError(t, reg.Register("afterand", Single, Hook("and"), WithForward(returns(true))))
	require.NoError(t, reg.Register("negdead", Not, Hook("and"), WithForward(returns(true))))

	var mask []*Node
	require.NoError(t, reg.Register("or", MultiOr, Hook("fail", "pass"),
		WithForward(func(n *Node) (bool, error) {
			mask = n.ParentList()
			return true, nil
		})))
	g := buildGraph(t, reg, "pass")

	s := quietScheduler()
	require.NoError(t, s.Run(context.Background(), g.Nodes()))

	want := map[string]SchedulerStatus{
		"pass":     StatusRan,
		"fail":     StatusRan,
		"and":      StatusDead,
		"neg":      StatusRan,
		"negpass":  StatusDead,
		"single":   StatusDead,
		"afterand": StatusDead,
		"negdead":  StatusDead,
		"or":       StatusRan,
	}
	for name, st := range want {
		assert.Equal(t, st, s.Status(lookup(t, g, name)), name)
	}

	require.Len(t, mask, 2)
	assert.Nil(t, mask[0])
	assert.Same(t, lookup(t, g, "pass"), mask[1])
}

// TestScheduler_MultiOrEarlySubmit verifies a MultiOr node runs once one
// parent succeeded and sees a parent still running as nil.
func TestScheduler_MultiOrEarlySubmit(t *testing.T) {
	reg := newTestRegistry()
	release := make(chan struct{})
	var visible []*Node
	require.NoError(t, reg.Register("root", Single, nil))
	require.NoError(t, reg.Register("fast", Single, Hook("root"), WithForward(returns(true))))
	require.NoError(t, reg.Register("slow", Single, Hook("root"),
		WithForward(func(*Node) (bool, error) {
			<-release
			return true, nil
		})))
	require.NoError(t, reg.Register("or", MultiOr, Hook("fast", "slow"),
		WithForward(func(n *Node) (bool, error) {
			visible = n.ParentList()
			close(release)
			return true, nil
		})))
	g := buildGraph(t, reg, "root")

	s := quietScheduler(WithWorkers(4), WithPollInterval(time.Millisecond))
	require.NoError(t, s.Run(context.Background(), g.Nodes()))

	require.Len(t, visible, 2)
	assert.Same(t, lookup(t, g, "fast"), visible[0])
	assert.Nil(t, visible[1])
	assert.Equal(t, Success, lookup(t, g, "slow").State())
	assert.Equal(t, StatusRan, s.Status(lookup(t, g, "or")))
}

// TestScheduler_WorkerLimit verifies no more than the configured number of
// forward computations run at once.
func TestScheduler_WorkerLimit(t *testing.T) {
	reg := newTestRegistry()
	var running, peak atomic.Int32
	slow := func(*Node) (bool, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return true, nil
	}

	require.NoError(t, reg.Register("root", Single, nil))
	var leaves []string
	for _, name := range []string{"l1", "l2", "l3", "l4", "l5", "l6"} {
		require.NoError(t, reg.Register(name, Single, Hook("root"), WithForward(slow)))
		leaves = append(leaves, name)
	}
	g := buildGraph(t, reg, "root")

	s := quietScheduler(WithWorkers(2), WithPollInterval(time.Millisecond))
	require.NoError(t, s.Run(context.Background(), g.Nodes()))

	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, name := range leaves {
		assert.Equal(t, StatusRan, s.Status(lookup(t, g, name)), name)
	}
}

// TestScheduler_FirstErrorInSetOrder verifies which error is returned when
// several nodes fail.
func TestScheduler_FirstErrorInSetOrder(t *testing.T) {
	reg := newTestRegistry()
	errFirst := errors.New("first")
	errSecond := errors.New("second")
	require.NoError(t, reg.Register("x", Single, nil, WithForward(raises(errSecond))))
	require.NoError(t, reg.Register("y", Single, nil, WithForward(raises(errFirst))))
	require.NoError(t, reg.Register("z", MultiOr, Hook("x", "y")))
	g := buildGraph(t, reg, "z")

	y, x := lookup(t, g, "y"), lookup(t, g, "x")
	err := quietScheduler().Run(context.Background(), []*Node{y, x, lookup(t, g, "z")})
	assert.ErrorIs(t, err, errFirst)
	assert.NotErrorIs(t, err, errSecond)
}

// TestScheduler_SeekedNodesNotRerun verifies results from Seek are reused.
func TestScheduler_SeekedNodesNotRerun(t *testing.T) {
	reg := newTestRegistry()
	var calls atomic.Int32
	require.NoError(t, reg.Register("root", Single, nil, WithForward(counted(&calls, returns(true)))))
	require.NoError(t, reg.Register("leaf", Single, Hook("root"), WithForward(returns(true))))
	g := buildGraph(t, reg, "root")

	_, ok, err := g.Seek("root")
	require.NoError(t, err)
	require.True(t, ok)

	s := quietScheduler()
	require.NoError(t, s.Run(context.Background(), g.Nodes()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusRan, s.Status(lookup(t, g, "leaf")))
}

// TestScheduler_OutOfSetParents verifies parents outside the node set are
// judged by their current forward state.
func TestScheduler_OutOfSetParents(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("root", Single, nil))
	require.NoError(t, reg.Register("leaf", Single, Hook("root"), WithForward(returns(true))))
	g := buildGraph(t, reg, "root")
	leaf := lookup(t, g, "leaf")

	s := quietScheduler()
	require.NoError(t, s.Run(context.Background(), []*Node{leaf}))
	assert.Equal(t, StatusDead, s.Status(leaf), "unvisited parent counts as dead")

	_, _, err := g.Seek("root")
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), []*Node{leaf, leaf, nil}))
	assert.Equal(t, StatusRan, s.Status(leaf))
	assert.Len(t, s.Statuses(), 1)
}

// TestScheduler_Empty verifies an empty node set converges immediately.
func TestScheduler_Empty(t *testing.T) {
	s := quietScheduler(WithRunID("empty"))
	require.NoError(t, s.Run(context.Background(), nil))
	assert.Equal(t, "empty", s.RunID())
	assert.Empty(t, s.Statuses())
}

// TestAncestors verifies closure, deduplication and parent-first order.
func TestAncestors(t *testing.T) {
	reg := newTestRegistry()
	registerArithmetic(t, reg)
	g := buildGraph(t, reg, "input")

	order := Ancestors(lookup(t, g, "subtract"), lookup(t, g, "divide"), nil)
	var names []string
	for _, n := range order {
		names = append(names, n.String())
	}
	assert.Equal(t, []string{"input", "denominator", "divide", "numb", "subtract"}, names)
}

// TestScheduler_Journal verifies every settled node is journaled.
func TestScheduler_Journal(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("root", Single, nil))
	require.NoError(t, reg.Register("boom", Single, Hook("root"), WithForward(raises(errExplode))))
	require.NoError(t, reg.Register("after", Single, Hook("boom")))
	g := buildGraph(t, reg, "root")

	store := journal.NewMemoryStore()
	s := quietScheduler(WithJournal(store), WithRunID("run-7"))
	require.Error(t, s.Run(context.Background(), g.Nodes()))
	assert.Equal(t, "run-7", s.RunID())

	entries, err := store.List("run-7")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byNode := make(map[string]journal.Entry)
	for _, e := range entries {
		byNode[e.Node] = e
	}
	assert.Equal(t, journal.StatusRan, byNode["root"].Status)
	assert.True(t, byNode["root"].Success)
	assert.Equal(t, journal.StatusDead, byNode["boom"].Status)
	assert.Contains(t, byNode["boom"].Error, "explode")
	assert.Equal(t, journal.StatusDead, byNode["after"].Status)
	assert.Empty(t, byNode["after"].Error)
	assert.Equal(t, lookup(t, g, "root").ID(), byNode["root"].NodeID)
}

// TestScheduler_JournalFailureIgnored verifies a closed journal does not
// fail the run.
func TestScheduler_JournalFailureIgnored(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("root", Single, nil))
	g := buildGraph(t, reg, "root")

	store := journal.NewMemoryStore()
	require.NoError(t, store.Close())

	s := quietScheduler(WithJournal(store))
	assert.NoError(t, s.Run(context.Background(), g.Nodes()))
}

// TestWithConfig verifies scheduler settings load from config.
func TestWithConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte("workers: 3\npoll_interval: 2ms\nmetrics: true\ntracing: true\nrun_id: nightly\n"))
	require.NoError(t, err)

	s := NewScheduler(WithConfig(cfg))
	assert.Equal(t, 3, s.workers)
	assert.Equal(t, 2*time.Millisecond, s.pollInterval)
	assert.True(t, s.metricsEnabled)
	assert.True(t, s.tracingEnabled)
	assert.Equal(t, "nightly", s.runID)

	s = NewScheduler(WithWorkers(5), WithConfig(config.New(nil)))
	assert.Equal(t, 5, s.workers, "missing keys keep earlier options")
	assert.Equal(t, defaultPollInterval, s.pollInterval)

	s = NewScheduler(WithWorkers(0), WithPollInterval(-time.Second))
	assert.Equal(t, defaultWorkers, s.workers)
	assert.Equal(t, defaultPollInterval, s.pollInterval)
}

// TestScheduler_Tracing verifies run and node spans are emitted.
func TestScheduler_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	reg := newTestRegistry()
	require.NoError(t, reg.Register("root", Single, nil))
	require.NoError(t, reg.Register("leaf", Single, Hook("root"), WithForward(returns(true))))
	g := buildGraph(t, reg, "root")

	s := quietScheduler(WithTracing(true), WithMetrics(true))
	require.NoError(t, s.Run(context.Background(), g.Nodes()))

	names := make(map[string]bool)
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	assert.True(t, names["cellink.run"])
	assert.True(t, names["cellink.node.root"])
	assert.True(t, names["cellink.node.leaf"])
}

// TestSchedulerStatus_String verifies status names.
func TestSchedulerStatus_String(t *testing.T) {
	assert.Equal(t, "unvisited", StatusUnvisited.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "ran", StatusRan.String())
	assert.Equal(t, "dead", StatusDead.String())
	assert.Equal(t, "unknown", SchedulerStatus(9).String())
}
