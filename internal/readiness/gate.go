package readiness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/util/retry"
)

// Gate resolves readiness tokens. Each subsystem is probed at most once per
// gate; later callers share the memoized result.
type Gate struct {
	probe      Probe
	subsystems map[string]Subsystem
	budget     Budget
	metrics    *metrics.Recorder

	mu      sync.Mutex
	futures map[string]*future
}

type future struct {
	done  chan struct{}
	token graph.Token
	err   error
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithBudget sets the wait budget.
func WithBudget(b Budget) GateOption {
	return func(g *Gate) {
		g.budget = b
	}
}

// WithMetrics records gate wait times.
func WithMetrics(m *metrics.Recorder) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// NewGate creates a gate over the declared subsystems.
func NewGate(probe Probe, subsystems []Subsystem, opts ...GateOption) *Gate {
	g := &Gate{
		probe:      probe,
		subsystems: make(map[string]Subsystem, len(subsystems)),
		budget:     DefaultBudget(),
		futures:    make(map[string]*future),
	}
	for _, s := range subsystems {
		g.subsystems[s.Name] = s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Declared reports whether a subsystem is known to the gate.
func (g *Gate) Declared(name string) bool {
	_, ok := g.subsystems[name]
	return ok
}

// Names returns the declared subsystem names, sorted.
func (g *Gate) Names() []string {
	out := make([]string, 0, len(g.subsystems))
	for n := range g.subsystems {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Await returns the readiness token for a subsystem, probing on first use.
// If the subsystem does not become ready within the budget, the token is
// not ready and the error is DependencyUnresolved. The probe runs detached
// from ctx, so a cancelled caller only stops its own wait.
func (g *Gate) Await(ctx context.Context, name string) (graph.Token, error) {
	g.mu.Lock()
	f, ok := g.futures[name]
	if !ok {
		f = &future{done: make(chan struct{})}
		g.futures[name] = f

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.budget.Limit())
		go func() {
			defer cancel()
			f.token, f.err = g.resolve(rctx, name)
			close(f.done)
		}()
	}
	g.mu.Unlock()

	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return graph.Token{Subsystem: name}, graph.Unresolved(name, ctx.Err())
	}
}

// Tokens returns every token resolved so far, sorted by subsystem.
func (g *Gate) Tokens() []graph.Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []graph.Token
	for _, f := range g.futures {
		select {
		case <-f.done:
			out = append(out, f.token)
		default:
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subsystem < out[j].Subsystem })
	return out
}

func (g *Gate) resolve(ctx context.Context, name string) (graph.Token, error) {
	logger := log.FromContext(ctx).WithValues("subsystem", name)
	token := graph.Token{Subsystem: name}

	s, ok := g.subsystems[name]
	if !ok {
		return token, graph.Unresolved(name, errors.New("subsystem is not declared"))
	}

	start := time.Now()
	var last Status
	opts := append(g.budget.Options(), retry.WithNotify(func(attempt int, err error) {
		logger.V(1).Info("subsystem not ready", "attempt", attempt, "status", last.Message, "error", err)
	}))

	err := retry.Poll(ctx, func(ctx context.Context) (bool, error) {
		st, err := g.probe.Check(ctx, s)
		if err != nil {
			return false, err
		}
		last = st
		return st.Ready, nil
	}, opts...)

	g.metrics.RecordGate(name, time.Since(start).Seconds(), err == nil)

	if err != nil {
		if last.Message != "" {
			err = fmt.Errorf("%w (last status: %s)", err, last.Message)
		}
		logger.Info("subsystem did not become ready", "error", err)
		return token, graph.Unresolved(name, err)
	}

	logger.V(1).Info("subsystem ready", "status", last.Message, "waited", time.Since(start).Round(time.Millisecond))
	token.Ready = true
	return token, nil
}
